package syscalls

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sarchlab/rvemu/emu"
)

// Linux RISC-V syscall numbers used by newlib.
const (
	SysOpenat       uint64 = 56  // openat(dirfd, path, flags, mode)
	SysClose        uint64 = 57  // close(fd)
	SysLseek        uint64 = 62  // lseek(fd, offset, whence)
	SysRead         uint64 = 63  // read(fd, buf, count)
	SysWrite        uint64 = 64  // write(fd, buf, count)
	SysFstat        uint64 = 80  // fstat(fd, statbuf)
	SysExit         uint64 = 93  // exit(status)
	SysExitGroup    uint64 = 94  // exit_group(status)
	SysClockGettime uint64 = 113 // clock_gettime(clockid, tp)
	SysGettimeofday uint64 = 169 // gettimeofday(tv, tz)
	SysBrk          uint64 = 214 // brk(addr)
)

// Linux open flags and the openat directory marker.
const (
	linuxOWronly = 0x1
	linuxORdwr   = 0x2
	linuxOCreat  = 0x40
	linuxOExcl   = 0x80
	linuxOTrunc  = 0x200
	linuxOAppend = 0x400

	atFDCWD = -100
)

// maxTransfer bounds a single read or write; larger requests are short.
const maxTransfer = 1 << 20

// Newlib implements the Linux syscalls newlib's libgloss port issues.
type Newlib struct {
	fds    *FDTable
	clock  func() time.Time
	logger *slog.Logger
}

// NewNewlib creates a Newlib handler with stdio on descriptors 0-2.
func NewNewlib(stdio Stdio, opts ...Option) *Newlib {
	o := buildOptions(opts)
	return &Newlib{
		fds:    NewFDTable(stdio),
		clock:  o.clock,
		logger: o.logger,
	}
}

// FDTable returns the descriptor table.
func (h *Newlib) FDTable() *FDTable {
	return h.fds
}

// Handle implements emu.SyscallHandler.
func (h *Newlib) Handle(regs *emu.RegFile, mem *emu.Memory) emu.SyscallResult {
	num := emu.SyscallNumber(regs)

	switch num {
	case SysOpenat:
		h.openat(regs, mem)
	case SysClose:
		h.close(regs)
	case SysLseek:
		h.lseek(regs)
	case SysRead:
		h.read(regs, mem)
	case SysWrite:
		h.write(regs, mem)
	case SysFstat:
		h.fstat(regs, mem)
	case SysExit, SysExitGroup:
		code := int64(emu.SyscallArg(regs, 0))
		h.logger.Debug("exit", "code", code)
		return emu.Exit(code)
	case SysClockGettime:
		h.clockGettime(regs, mem)
	case SysGettimeofday:
		h.gettimeofday(regs, mem)
	case SysBrk:
		emu.SetSyscallReturn(regs, mem.SetBrk(emu.SyscallArg(regs, 0)))
	default:
		return unimplemented(h.logger, NameNewlib, num)
	}

	return emu.Continue()
}

func (h *Newlib) openat(regs *emu.RegFile, mem *emu.Memory) {
	dirfd := int64(emu.SyscallArg(regs, 0))
	path, err := mem.ReadCString(emu.SyscallArg(regs, 1), maxString)
	if err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}
	if dirfd != atFDCWD && !filepath.IsAbs(path) {
		emu.SetSyscallError(regs, emu.EBADF)
		return
	}

	flags := hostOpenFlags(emu.SyscallArg(regs, 2))
	mode := os.FileMode(emu.SyscallArg(regs, 3) & 0o777)

	fd, err := h.fds.Open(path, flags, mode)
	if err != nil {
		h.logger.Debug("openat failed", "path", path, "err", err)
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}

	h.logger.Debug("openat", "path", path, "fd", fd)
	emu.SetSyscallReturn(regs, fd)
}

// hostOpenFlags translates Linux open flags to the host's.
func hostOpenFlags(flags uint64) int {
	var out int
	switch flags & 0x3 {
	case linuxOWronly:
		out = os.O_WRONLY
	case linuxORdwr:
		out = os.O_RDWR
	default:
		out = os.O_RDONLY
	}
	if flags&linuxOCreat != 0 {
		out |= os.O_CREATE
	}
	if flags&linuxOExcl != 0 {
		out |= os.O_EXCL
	}
	if flags&linuxOTrunc != 0 {
		out |= os.O_TRUNC
	}
	if flags&linuxOAppend != 0 {
		out |= os.O_APPEND
	}
	return out
}

func (h *Newlib) close(regs *emu.RegFile) {
	if err := h.fds.Close(emu.SyscallArg(regs, 0)); err != nil {
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}
	emu.SetSyscallReturn(regs, 0)
}

func (h *Newlib) lseek(regs *emu.RegFile) {
	fd := emu.SyscallArg(regs, 0)
	offset := int64(emu.SyscallArg(regs, 1))
	whence := emu.SyscallArg(regs, 2)

	if whence > io.SeekEnd {
		emu.SetSyscallError(regs, emu.EINVAL)
		return
	}

	pos, err := h.fds.Seek(fd, offset, int(whence))
	if err != nil {
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}
	emu.SetSyscallReturn(regs, uint64(pos))
}

func (h *Newlib) read(regs *emu.RegFile, mem *emu.Memory) {
	fd := emu.SyscallArg(regs, 0)
	bufPtr := emu.SyscallArg(regs, 1)
	count := min(emu.SyscallArg(regs, 2), maxTransfer)

	if err := mem.CheckRange(bufPtr, count, emu.AccessWrite); err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}

	buf := make([]byte, count)
	n, err := h.fds.Read(fd, buf)
	if err != nil && !errors.Is(err, io.EOF) && n == 0 {
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}

	if err := mem.WriteBytes(bufPtr, buf[:n]); err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}
	emu.SetSyscallReturn(regs, uint64(n))
}

func (h *Newlib) write(regs *emu.RegFile, mem *emu.Memory) {
	fd := emu.SyscallArg(regs, 0)
	bufPtr := emu.SyscallArg(regs, 1)
	count := min(emu.SyscallArg(regs, 2), maxTransfer)

	if !h.fds.IsOpen(fd) {
		emu.SetSyscallError(regs, emu.EBADF)
		return
	}

	buf, err := mem.ReadBytes(bufPtr, count)
	if err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}

	n, err := h.fds.Write(fd, buf)
	if err != nil && n == 0 {
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}
	emu.SetSyscallReturn(regs, uint64(n))
}

func (h *Newlib) fstat(regs *emu.RegFile, mem *emu.Memory) {
	info, err := h.fds.Stat(emu.SyscallArg(regs, 0))
	if err != nil {
		emu.SetSyscallError(regs, errnoOf(err))
		return
	}

	if err := mem.WriteBytes(emu.SyscallArg(regs, 1), EncodeStat(info)); err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}
	emu.SetSyscallReturn(regs, 0)
}

func (h *Newlib) clockGettime(regs *emu.RegFile, mem *emu.Memory) {
	now := h.clock()

	var ts [16]byte
	binary.LittleEndian.PutUint64(ts[0:], uint64(now.Unix()))
	binary.LittleEndian.PutUint64(ts[8:], uint64(now.Nanosecond()))

	if err := mem.WriteBytes(emu.SyscallArg(regs, 1), ts[:]); err != nil {
		emu.SetSyscallError(regs, emu.EFAULT)
		return
	}
	emu.SetSyscallReturn(regs, 0)
}

func (h *Newlib) gettimeofday(regs *emu.RegFile, mem *emu.Memory) {
	tv := emu.SyscallArg(regs, 0)
	if tv != 0 {
		now := h.clock()

		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:], uint64(now.Unix()))
		binary.LittleEndian.PutUint64(buf[8:], uint64(now.Nanosecond()/1000))

		if err := mem.WriteBytes(tv, buf[:]); err != nil {
			emu.SetSyscallError(regs, emu.EFAULT)
			return
		}
	}
	emu.SetSyscallReturn(regs, 0)
}

// errnoOf maps a host error to a Linux errno.
func errnoOf(err error) int {
	switch {
	case errors.Is(err, ErrBadFD):
		return emu.EBADF
	case errors.Is(err, ErrNotSeekable):
		return emu.ESPIPE
	case errors.Is(err, fs.ErrNotExist):
		return emu.ENOENT
	case errors.Is(err, fs.ErrExist):
		return emu.EEXIST
	case errors.Is(err, fs.ErrPermission):
		return emu.EACCES
	case errors.Is(err, fs.ErrInvalid):
		return emu.EINVAL
	case errors.Is(err, syscall.EISDIR):
		return emu.EISDIR
	}
	return emu.EIO
}
