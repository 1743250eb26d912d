package emu

import "github.com/sarchlab/rvemu/insts"

// OutcomeKind says how the PC advances after an instruction.
type OutcomeKind uint8

// Outcome kinds.
const (
	// OutcomeNext continues at PC+4.
	OutcomeNext OutcomeKind = iota
	// OutcomeJump continues at Outcome.Target.
	OutcomeJump
	// OutcomeTrap leaves the PC on the instruction and reports a trap.
	OutcomeTrap
)

// TrapCause identifies a synchronous trap raised by an executor.
type TrapCause uint8

// Trap causes.
const (
	TrapEcall TrapCause = iota + 1
	TrapEbreak
)

// Outcome is the result of executing one instruction.
type Outcome struct {
	Kind   OutcomeKind
	Target uint64
	Trap   TrapCause
}

// Next is the outcome of an instruction that falls through.
func Next() Outcome {
	return Outcome{Kind: OutcomeNext}
}

// JumpTo is the outcome of a taken control transfer.
func JumpTo(target uint64) Outcome {
	return Outcome{Kind: OutcomeJump, Target: target}
}

// Trap is the outcome of an instruction that raises a trap.
func Trap(cause TrapCause) Outcome {
	return Outcome{Kind: OutcomeTrap, Trap: cause}
}

// ExecFunc executes one decoded instruction against a hart. It must not
// modify the PC; the PC update is carried by the returned Outcome.
type ExecFunc func(h *Hart, inst *insts.Instruction) (Outcome, error)

// Hart is the architectural state an executor operates on, together with
// the execution units that implement the base operations.
type Hart struct {
	Regs *RegFile
	Mem  *Memory
	CSR  *CSRFile

	ALU    *ALU
	LSU    *LoadStoreUnit
	Branch *BranchUnit

	// FenceI is called when the hart executes an instruction-fetch fence.
	FenceI func()
}

// NewHart wires execution units to the given state.
func NewHart(regs *RegFile, mem *Memory, csr *CSRFile) *Hart {
	return &Hart{
		Regs:   regs,
		Mem:    mem,
		CSR:    csr,
		ALU:    NewALU(regs),
		LSU:    NewLoadStoreUnit(regs, mem),
		Branch: NewBranchUnit(regs),
	}
}
