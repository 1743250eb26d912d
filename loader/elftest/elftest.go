// Package elftest builds small ELF images for tests.
package elftest

import (
	"debug/elf"
	"encoding/binary"
	"os"
)

const (
	headerSize  = 64
	phdrSize    = 56
	header32Len = 52
)

// Segment is a program header and the bytes it maps.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr uint64
	Data  []byte
	// MemSize defaults to the file size when zero.
	MemSize uint64
	// Headers places the segment at file offset 0 so that it maps the ELF
	// and program headers. Vaddr is then the address of the file header and
	// Data starts right after the program header table.
	Headers bool
	// FileSize overrides the recorded file size when non-zero.
	FileSize uint64
}

// Image describes an ELF file. Zero fields default to a little-endian
// 64-bit RISC-V static executable.
type Image struct {
	Class    elf.Class
	Data     elf.Data
	Machine  elf.Machine
	Type     elf.Type
	Entry    uint64
	Segments []Segment
}

// HeadersSize is the size of the file header plus n program headers.
func HeadersSize(n int) uint64 {
	return headerSize + uint64(n)*phdrSize
}

// Code returns an image with a single read-execute segment holding code at
// base and the entry point at base.
func Code(base uint64, code []byte) *Image {
	return &Image{
		Entry: base,
		Segments: []Segment{{
			Type:  elf.PT_LOAD,
			Flags: elf.PF_R | elf.PF_X,
			Vaddr: base,
			Data:  code,
		}},
	}
}

// Words encodes little-endian instruction words.
func Words(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

// Build serializes the image.
func (img *Image) Build() []byte {
	class := img.Class
	if class == elf.ELFCLASSNONE {
		class = elf.ELFCLASS64
	}
	data := img.Data
	if data == elf.ELFDATANONE {
		data = elf.ELFDATA2LSB
	}
	machine := img.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_RISCV
	}
	typ := img.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}

	var order binary.ByteOrder = binary.LittleEndian
	if data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}

	ident := func(b []byte) {
		copy(b, elf.ELFMAG)
		b[elf.EI_CLASS] = byte(class)
		b[elf.EI_DATA] = byte(data)
		b[elf.EI_VERSION] = byte(elf.EV_CURRENT)
		b[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)
	}

	if class == elf.ELFCLASS32 {
		b := make([]byte, header32Len)
		ident(b)
		order.PutUint16(b[16:], uint16(typ))
		order.PutUint16(b[18:], uint16(machine))
		order.PutUint32(b[20:], uint32(elf.EV_CURRENT))
		order.PutUint32(b[24:], uint32(img.Entry))
		order.PutUint16(b[40:], header32Len)
		order.PutUint16(b[42:], 32)
		order.PutUint16(b[46:], 40)
		return b
	}

	n := len(img.Segments)
	hdrs := HeadersSize(n)

	// A Headers segment owns the bytes right after the program headers;
	// the others follow it.
	fileEnd := hdrs
	for _, seg := range img.Segments {
		if seg.Headers {
			fileEnd += uint64(len(seg.Data))
		}
	}
	offsets := make([]uint64, n)
	for i, seg := range img.Segments {
		if seg.Headers {
			continue
		}
		offsets[i] = fileEnd
		fileEnd += uint64(len(seg.Data))
	}

	out := make([]byte, fileEnd)
	ident(out)
	order.PutUint16(out[16:], uint16(typ))
	order.PutUint16(out[18:], uint16(machine))
	order.PutUint32(out[20:], uint32(elf.EV_CURRENT))
	order.PutUint64(out[24:], img.Entry)
	order.PutUint64(out[32:], headerSize)
	order.PutUint64(out[40:], 0)
	order.PutUint16(out[52:], headerSize)
	order.PutUint16(out[54:], phdrSize)
	order.PutUint16(out[56:], uint16(n))
	order.PutUint16(out[58:], 64)

	for i, seg := range img.Segments {
		filesz := uint64(len(seg.Data))
		if seg.Headers {
			copy(out[hdrs:], seg.Data)
			filesz += hdrs
		} else {
			copy(out[offsets[i]:], seg.Data)
		}
		if seg.FileSize != 0 {
			filesz = seg.FileSize
		}
		memsz := seg.MemSize
		if memsz == 0 {
			memsz = filesz
		}

		ph := out[headerSize+uint64(i)*phdrSize:]
		order.PutUint32(ph[0:], uint32(seg.Type))
		order.PutUint32(ph[4:], uint32(seg.Flags))
		order.PutUint64(ph[8:], offsets[i])
		order.PutUint64(ph[16:], seg.Vaddr)
		order.PutUint64(ph[24:], seg.Vaddr)
		order.PutUint64(ph[32:], filesz)
		order.PutUint64(ph[40:], memsz)
		order.PutUint64(ph[48:], 0x1000)
	}

	return out
}

// WriteFile serializes the image to path.
func (img *Image) WriteFile(path string) error {
	return os.WriteFile(path, img.Build(), 0o644)
}
