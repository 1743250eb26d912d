package emu

import (
	"fmt"

	"github.com/sarchlab/rvemu/insts"
)

// FaultKind classifies an abnormal stop of the run loop.
type FaultKind uint8

// Fault kinds.
const (
	FaultDecode FaultKind = iota + 1
	FaultMemory
	FaultMisalignedTarget
	FaultIllegal
	FaultBreakpoint
	FaultSyscallUnimplemented
	FaultInstructionLimit
)

func (k FaultKind) String() string {
	switch k {
	case FaultDecode:
		return "decode fault"
	case FaultMemory:
		return "memory fault"
	case FaultMisalignedTarget:
		return "misaligned jump target"
	case FaultIllegal:
		return "illegal instruction"
	case FaultBreakpoint:
		return "breakpoint"
	case FaultSyscallUnimplemented:
		return "unimplemented syscall"
	case FaultInstructionLimit:
		return "instruction limit reached"
	}
	return "unknown fault"
}

// Fault describes why the run loop stopped without an exit syscall.
// Fields that do not apply to Kind are zero.
type Fault struct {
	Kind FaultKind

	// PC is the address of the faulting instruction.
	PC uint64
	// Word is the raw instruction word, when it was fetched.
	Word uint32
	// Inst is the decoded instruction, when decoding succeeded.
	Inst *insts.Instruction

	// Addr and Access describe memory faults and misaligned targets.
	Addr   uint64
	Access Access

	// Syscall is the number of an unimplemented syscall.
	Syscall uint64

	// Err is the underlying error, if any.
	Err error
}

// Error implements error.
func (f *Fault) Error() string {
	switch f.Kind {
	case FaultDecode:
		return fmt.Sprintf("%s: unknown instruction 0x%08x at pc 0x%x", f.Kind, f.Word, f.PC)
	case FaultMemory:
		return fmt.Sprintf("%s at pc 0x%x: %v", f.Kind, f.PC, f.Err)
	case FaultMisalignedTarget:
		return fmt.Sprintf("%s 0x%x from pc 0x%x", f.Kind, f.Addr, f.PC)
	case FaultSyscallUnimplemented:
		return fmt.Sprintf("%s %d at pc 0x%x", f.Kind, f.Syscall, f.PC)
	case FaultIllegal:
		if f.Err != nil {
			return fmt.Sprintf("%s 0x%08x at pc 0x%x: %v", f.Kind, f.Word, f.PC, f.Err)
		}
		return fmt.Sprintf("%s 0x%08x at pc 0x%x", f.Kind, f.Word, f.PC)
	}
	return fmt.Sprintf("%s at pc 0x%x", f.Kind, f.PC)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}
