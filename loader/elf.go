// Package loader provides ELF binary loading for RISC-V 64 executables.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// Load errors. Every error returned by Load, LoadBytes and Parse matches
// exactly one of these with errors.Is.
var (
	// ErrMalformed reports an image that is not a well-formed ELF file.
	ErrMalformed = errors.New("malformed ELF image")
	// ErrUnsupported reports a well-formed ELF file this emulator cannot run.
	ErrUnsupported = errors.New("unsupported ELF image")
	// ErrAddressConflict reports segments that overlap or fall outside the
	// guest address space.
	ErrAddressConflict = errors.New("segment address conflict")
)

// MaxAddress is the exclusive upper bound of the guest address space
// (the 47-bit user half of Sv48).
const MaxAddress uint64 = 1 << 47

// PageSize is the guest page size.
const PageSize uint64 = 4096

// DefaultStackTop is the default stack top address for RISC-V Linux user
// space.
const DefaultStackTop uint64 = 0x7ffffffff000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize uint64 = 8 * 1024 * 1024

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// String renders the flags as "rwx" with dashes for missing bits.
func (f SegmentFlags) String() string {
	b := []byte("---")
	if f&SegmentFlagRead != 0 {
		b[0] = 'r'
	}
	if f&SegmentFlagWrite != 0 {
		b[1] = 'w'
	}
	if f&SegmentFlagExecute != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// End returns the exclusive end address of the segment in memory.
func (s *Segment) End() uint64 {
	return s.VirtAddr + s.MemSize
}

// Program represents a parsed ELF program ready to be mapped.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all non-empty loadable segments in address order.
	Segments []Segment

	// PHDRAddr is the guest address of the program headers, or 0 when they
	// are not part of a loaded segment.
	PHDRAddr uint64
	// PHEntSize and PHNum describe the program header table.
	PHEntSize uint64
	PHNum     uint64

	// BreakStart is the page-aligned end of the highest segment, where the
	// program break starts.
	BreakStart uint64
}

// Load parses a RISC-V 64 ELF binary from a file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// LoadBytes parses a RISC-V 64 ELF binary held in memory.
func LoadBytes(image []byte) (*Program, error) {
	return Parse(bytes.NewReader(image))
}

// Parse reads and validates a RISC-V 64 ELF executable. Parsing has no side
// effects; the returned Program is mapped by the emulator.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := validateHeader(f); err != nil {
		return nil, err
	}

	hdr, err := readHeader64(r)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		EntryPoint: f.Entry,
		PHEntSize:  uint64(hdr.Phentsize),
		PHNum:      uint64(hdr.Phnum),
	}

	for _, phdr := range f.Progs {
		switch phdr.Type {
		case elf.PT_PHDR:
			prog.PHDRAddr = phdr.Vaddr
			continue
		case elf.PT_LOAD:
		default:
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		if seg.MemSize == 0 {
			continue
		}
		if prog.PHDRAddr == 0 && phdr.Off <= hdr.Phoff &&
			hdr.Phoff+prog.PHEntSize*prog.PHNum <= phdr.Off+phdr.Filesz {
			prog.PHDRAddr = phdr.Vaddr + (hdr.Phoff - phdr.Off)
		}

		prog.Segments = append(prog.Segments, seg)
	}

	if len(prog.Segments) == 0 {
		return nil, fmt.Errorf("%w: no loadable segments", ErrMalformed)
	}

	if err := checkLayout(prog); err != nil {
		return nil, err
	}

	return prog, nil
}

func validateHeader(f *elf.File) error {
	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("%w: not a 64-bit ELF file (class: %v)", ErrUnsupported, f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("%w: not a little-endian ELF file (data: %v)", ErrUnsupported, f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return fmt.Errorf("%w: not a RISC-V ELF file (machine type: %v)", ErrUnsupported, f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return fmt.Errorf("%w: not a static executable (type: %v)", ErrUnsupported, f.Type)
	}
	return nil
}

// readHeader64 reads the raw file header for the fields debug/elf does not
// expose.
func readHeader64(r io.ReaderAt) (*elf.Header64, error) {
	var hdr elf.Header64
	sr := io.NewSectionReader(r, 0, int64(binary.Size(hdr)))
	if err := binary.Read(sr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading file header: %v", ErrMalformed, err)
	}
	return &hdr, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	if phdr.Filesz > phdr.Memsz {
		return Segment{}, fmt.Errorf("%w: segment at 0x%x has file size 0x%x > memory size 0x%x",
			ErrMalformed, phdr.Vaddr, phdr.Filesz, phdr.Memsz)
	}

	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("%w: failed to read segment at 0x%x: %v",
				ErrMalformed, phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("%w: short read for segment at 0x%x: got %d bytes, expected %d",
				ErrMalformed, phdr.Vaddr, n, phdr.Filesz)
		}
	}

	// Convert ELF flags to our segment flags
	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: phdr.Vaddr,
		Data:     data,
		MemSize:  phdr.Memsz,
		Flags:    flags,
	}, nil
}

// checkLayout sorts the segments and rejects overlaps, segments outside the
// address space, and a misaligned entry point or one outside executable
// memory.
func checkLayout(prog *Program) error {
	sort.Slice(prog.Segments, func(i, j int) bool {
		return prog.Segments[i].VirtAddr < prog.Segments[j].VirtAddr
	})

	var end uint64
	for i := range prog.Segments {
		seg := &prog.Segments[i]
		if seg.VirtAddr >= MaxAddress || seg.MemSize > MaxAddress-seg.VirtAddr {
			return fmt.Errorf("%w: segment [0x%x, +0x%x) outside the address space",
				ErrAddressConflict, seg.VirtAddr, seg.MemSize)
		}
		if i > 0 && seg.VirtAddr < end {
			return fmt.Errorf("%w: segment at 0x%x overlaps the previous segment ending at 0x%x",
				ErrAddressConflict, seg.VirtAddr, end)
		}
		end = seg.End()
	}
	prog.BreakStart = (end + PageSize - 1) &^ (PageSize - 1)

	if prog.EntryPoint&3 != 0 {
		return fmt.Errorf("%w: entry point 0x%x is not 4-byte aligned",
			ErrMalformed, prog.EntryPoint)
	}

	for _, seg := range prog.Segments {
		if seg.Flags&SegmentFlagExecute != 0 &&
			prog.EntryPoint >= seg.VirtAddr && prog.EntryPoint < seg.End() {
			return nil
		}
	}
	return fmt.Errorf("%w: entry point 0x%x is not in an executable segment",
		ErrMalformed, prog.EntryPoint)
}
