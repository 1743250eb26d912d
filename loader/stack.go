package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrArgumentsTooLarge is returned when the initial stack image does not fit
// in the stack.
var ErrArgumentsTooLarge = errors.New("arguments and environment too large")

// Auxiliary vector entry types.
const (
	AuxNull       uint64 = 0
	AuxPHDR       uint64 = 3
	AuxPHENT      uint64 = 4
	AuxPHNUM      uint64 = 5
	AuxPageSize   uint64 = 6
	AuxEntryPoint uint64 = 9
	AuxRandom     uint64 = 25
)

// Aux is one auxiliary vector entry.
type Aux struct {
	Type  uint64
	Value uint64
}

// Auxv returns the auxiliary vector describing the program, without the
// AT_RANDOM and AT_NULL entries that BuildStack appends.
func (p *Program) Auxv() []Aux {
	auxv := make([]Aux, 0, 5)
	if p.PHDRAddr != 0 {
		auxv = append(auxv,
			Aux{Type: AuxPHDR, Value: p.PHDRAddr},
			Aux{Type: AuxPHENT, Value: p.PHEntSize},
			Aux{Type: AuxPHNUM, Value: p.PHNum},
		)
	}
	auxv = append(auxv,
		Aux{Type: AuxPageSize, Value: PageSize},
		Aux{Type: AuxEntryPoint, Value: p.EntryPoint},
	)
	return auxv
}

// StackLayout describes the initial process stack.
type StackLayout struct {
	// Top is the exclusive upper end of the stack.
	Top uint64
	// Limit is the maximum image size in bytes; zero means unlimited.
	Limit uint64

	Args []string
	Env  []string
	Auxv []Aux

	// Random is the 16 bytes AT_RANDOM points to.
	Random [16]byte
}

// BuildStack lays out the System V initial stack below Top and returns the
// resulting stack pointer and the bytes of [sp, Top).
//
// From sp upward the image holds argc, the argv pointers and a NULL, the envp
// pointers and a NULL, and the auxiliary vector terminated by AT_NULL. The
// argument and environment strings follow at the top, then the AT_RANDOM
// bytes. sp is 16-byte aligned.
func BuildStack(layout StackLayout) (uint64, []byte, error) {
	var strSize uint64
	for _, s := range layout.Args {
		strSize += uint64(len(s)) + 1
	}
	for _, s := range layout.Env {
		strSize += uint64(len(s)) + 1
	}

	const randomSize = 16
	auxv := append(append([]Aux(nil), layout.Auxv...),
		Aux{Type: AuxRandom}, Aux{Type: AuxNull})

	words := 1 + uint64(len(layout.Args)) + 1 + uint64(len(layout.Env)) + 1 +
		2*uint64(len(auxv))
	tail := alignUp(strSize+randomSize, 16)
	size := alignUp(words*8, 16) + tail

	if size > layout.Top || (layout.Limit != 0 && size > layout.Limit) {
		return 0, nil, fmt.Errorf("%w: initial stack needs %d bytes", ErrArgumentsTooLarge, size)
	}

	sp := layout.Top - size
	image := make([]byte, size)

	// Strings and random bytes sit at the top of the image.
	strBase := sp + size - tail
	off := size - tail
	pos := off
	put := func(s string) uint64 {
		addr := sp + pos
		copy(image[pos:], s)
		pos += uint64(len(s)) + 1
		return addr
	}

	argv := make([]uint64, len(layout.Args))
	for i, s := range layout.Args {
		argv[i] = put(s)
	}
	envp := make([]uint64, len(layout.Env))
	for i, s := range layout.Env {
		envp[i] = put(s)
	}
	randomAddr := strBase + strSize
	copy(image[pos:], layout.Random[:])
	auxv[len(auxv)-2].Value = randomAddr

	w := uint64(0)
	putWord := func(v uint64) {
		binary.LittleEndian.PutUint64(image[w:], v)
		w += 8
	}

	putWord(uint64(len(layout.Args)))
	for _, p := range argv {
		putWord(p)
	}
	putWord(0)
	for _, p := range envp {
		putWord(p)
	}
	putWord(0)
	for _, a := range auxv {
		putWord(a.Type)
		putWord(a.Value)
	}

	return sp, image, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
