package syscalls

import (
	"encoding/binary"
	"io/fs"
)

// StatSize is the size of struct stat on riscv64 Linux.
const StatSize = 128

// File type bits of st_mode.
const (
	modeIFIFO = 0o010000
	modeIFCHR = 0o020000
	modeIFDIR = 0o040000
	modeIFREG = 0o100000
	modeIFLNK = 0o120000
)

// Offsets into struct stat.
const (
	statMode    = 16
	statNlink   = 20
	statSize    = 48
	statBlksize = 56
	statBlocks  = 64
	statAtime   = 72
	statMtime   = 88
	statCtime   = 104
)

// EncodeStat renders info as a riscv64 Linux struct stat. Device, inode
// and owner fields are zero.
func EncodeStat(info fs.FileInfo) []byte {
	buf := make([]byte, StatSize)
	le := binary.LittleEndian

	le.PutUint32(buf[statMode:], linuxMode(info.Mode()))
	le.PutUint32(buf[statNlink:], 1)

	size := info.Size()
	le.PutUint64(buf[statSize:], uint64(size))
	le.PutUint32(buf[statBlksize:], 4096)
	le.PutUint64(buf[statBlocks:], uint64((size+511)/512))

	mtime := info.ModTime()
	for _, off := range []int{statAtime, statMtime, statCtime} {
		if mtime.IsZero() {
			break
		}
		le.PutUint64(buf[off:], uint64(mtime.Unix()))
		le.PutUint64(buf[off+8:], uint64(mtime.Nanosecond()))
	}

	return buf
}

func linuxMode(mode fs.FileMode) uint32 {
	m := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		m |= modeIFDIR
	case mode&fs.ModeCharDevice != 0:
		m |= modeIFCHR
	case mode&fs.ModeNamedPipe != 0:
		m |= modeIFIFO
	case mode&fs.ModeSymlink != 0:
		m |= modeIFLNK
	default:
		m |= modeIFREG
	}
	return m
}
