package syscalls

import (
	"log/slog"

	"github.com/sarchlab/rvemu/emu"
)

// Minilib syscall numbers.
const (
	MinilibExit    uint64 = 0  // exit(status)
	MinilibPutchar uint64 = 1  // putchar(c)
	MinilibPuts    uint64 = 2  // puts(s), without a trailing newline
	MinilibExitAlt uint64 = 93 // exit(status), Linux numbering
)

// maxString bounds guest strings read by puts and openat.
const maxString = 1 << 20

// Minilib implements the console ABI of the minimal test runtime.
type Minilib struct {
	fds    *FDTable
	logger *slog.Logger
}

// NewMinilib creates a Minilib handler writing to stdio.Stdout.
func NewMinilib(stdio Stdio, opts ...Option) *Minilib {
	o := buildOptions(opts)
	return &Minilib{
		fds:    NewFDTable(stdio),
		logger: o.logger,
	}
}

// Handle implements emu.SyscallHandler.
func (h *Minilib) Handle(regs *emu.RegFile, mem *emu.Memory) emu.SyscallResult {
	num := emu.SyscallNumber(regs)

	switch num {
	case MinilibExit, MinilibExitAlt:
		return emu.Exit(int64(emu.SyscallArg(regs, 0)))
	case MinilibPutchar:
		c := byte(emu.SyscallArg(regs, 0))
		_, _ = h.fds.Write(Stdout, []byte{c})
		return emu.Continue()
	case MinilibPuts:
		return h.puts(regs, mem)
	}

	return unimplemented(h.logger, NameMinilib, num)
}

func (h *Minilib) puts(regs *emu.RegFile, mem *emu.Memory) emu.SyscallResult {
	addr := emu.SyscallArg(regs, 0)

	s, err := mem.ReadCString(addr, maxString)
	if err != nil {
		h.logger.Warn("puts: bad string pointer", "addr", addr, "err", err)
		emu.SetSyscallError(regs, emu.EFAULT)
		return emu.Continue()
	}

	if _, err := h.fds.Write(Stdout, []byte(s)); err != nil {
		emu.SetSyscallError(regs, emu.EIO)
		return emu.Continue()
	}
	emu.SetSyscallReturn(regs, 0)
	return emu.Continue()
}
