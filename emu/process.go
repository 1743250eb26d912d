package emu

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/loader"
)

// StackTop is the exclusive upper end of the guest stack.
const StackTop = loader.DefaultStackTop

// LoadFile parses the ELF file at path and loads it.
func (e *Emulator) LoadFile(path string) error {
	prog, err := loader.Load(path)
	if err != nil {
		return err
	}
	return e.LoadProgram(prog)
}

// LoadELF parses an in-memory ELF image and loads it.
func (e *Emulator) LoadELF(image []byte) error {
	prog, err := loader.LoadBytes(image)
	if err != nil {
		return err
	}
	return e.LoadProgram(prog)
}

// LoadProgram maps prog into a fresh address space, builds the initial
// stack, and points the PC at the entry point. On error the emulator is
// left unchanged.
func (e *Emulator) LoadProgram(prog *loader.Program) error {
	switch e.state {
	case StateBuilt, StateLoaded:
	case StateRunning:
		return ErrRunning
	default:
		return ErrTerminated
	}

	mem, sp, err := e.buildAddressSpace(prog)
	if err != nil {
		e.loadLogger.Debug("load failed", "err", err)
		return err
	}

	e.regFile.Reset()
	e.regFile.PC = prog.EntryPoint
	e.regFile.WriteReg(RegSP, sp)

	e.csr.Reset()
	_ = e.csr.Write(CSRMISA, misa(e.Extensions()))

	e.attachMemory(mem)
	if e.cache != nil {
		e.cache.Reset()
	}

	e.program = prog
	e.instructionCount = 0
	e.exitCode = 0
	e.fault = nil
	e.state = StateLoaded

	e.loadLogger.Debug("program loaded",
		"entry", fmt.Sprintf("0x%x", prog.EntryPoint),
		"sp", fmt.Sprintf("0x%x", sp),
		"brk", fmt.Sprintf("0x%x", prog.BreakStart))

	return nil
}

func (e *Emulator) buildAddressSpace(prog *loader.Program) (*Memory, uint64, error) {
	mem := NewMemory()

	for i, seg := range prog.Segments {
		name := fmt.Sprintf("segment%d", i)
		if _, err := mem.Map(name, seg.VirtAddr, seg.MemSize, segmentPerm(seg.Flags)); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", loader.ErrAddressConflict, err)
		}
		if err := mem.Preload(seg.VirtAddr, seg.Data); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", loader.ErrMalformed, err)
		}

		e.loadLogger.Debug("mapped segment",
			"name", name,
			"base", fmt.Sprintf("0x%x", seg.VirtAddr),
			"size", seg.MemSize,
			"perm", seg.Flags.String())
	}

	stackBase := StackTop - e.cfg.stackSize
	if _, err := mem.Map("stack", stackBase, e.cfg.stackSize, PermRead|PermWrite); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", loader.ErrAddressConflict, err)
	}

	brkLimit := stackBase
	if prog.BreakStart > brkLimit {
		brkLimit = prog.BreakStart
	}
	mem.InitBrk(prog.BreakStart, brkLimit)

	layout := loader.StackLayout{
		Top:   StackTop,
		Limit: e.cfg.stackSize,
		Args:  e.cfg.args,
		Env:   e.cfg.env,
		Auxv:  prog.Auxv(),
	}
	if _, err := io.ReadFull(e.cfg.random, layout.Random[:]); err != nil {
		return nil, 0, fmt.Errorf("reading AT_RANDOM bytes: %w", err)
	}

	sp, image, err := loader.BuildStack(layout)
	if err != nil {
		return nil, 0, err
	}
	if err := mem.Preload(sp, image); err != nil {
		return nil, 0, err
	}

	return mem, sp, nil
}

func segmentPerm(flags loader.SegmentFlags) Perm {
	var perm Perm
	if flags&loader.SegmentFlagRead != 0 {
		perm |= PermRead
	}
	if flags&loader.SegmentFlagWrite != 0 {
		perm |= PermWrite
	}
	if flags&loader.SegmentFlagExecute != 0 {
		perm |= PermExec
	}
	return perm
}

// misa returns the misa value for RV64 with the single-letter extensions
// set.
func misa(exts []insts.ExtensionID) uint64 {
	v := uint64(2) << 62
	for _, id := range exts {
		name := strings.ToUpper(id.String())
		if len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z' {
			v |= 1 << (name[0] - 'A')
		}
	}
	return v
}
