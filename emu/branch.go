package emu

import (
	"fmt"

	"github.com/sarchlab/rvemu/insts"
)

// MisalignedTargetError reports a control transfer to an address that is
// not 4-byte aligned.
type MisalignedTargetError struct {
	Target uint64
}

// Error implements error.
func (e *MisalignedTargetError) Error() string {
	return fmt.Sprintf("misaligned jump target 0x%x", e.Target)
}

// BranchUnit implements RV64I control transfers. None of its operations
// touch the PC; they return the target and the caller commits it.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// CheckCondition evaluates the condition of a conditional branch.
func (b *BranchUnit) CheckCondition(op insts.Op, rs1, rs2 uint8) bool {
	x := b.regFile.ReadReg(rs1)
	y := b.regFile.ReadReg(rs2)

	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int64(x) < int64(y)
	case insts.OpBGE:
		return int64(x) >= int64(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	default:
		return false
	}
}

// Branch returns whether a conditional branch is taken and its target.
func (b *BranchUnit) Branch(op insts.Op, rs1, rs2 uint8, pc uint64, offset int64) (bool, uint64, error) {
	if !b.CheckCondition(op, rs1, rs2) {
		return false, 0, nil
	}

	target := pc + uint64(offset)
	if err := checkTarget(target); err != nil {
		return false, 0, err
	}
	return true, target, nil
}

// JAL links pc+4 into rd and returns pc+offset.
func (b *BranchUnit) JAL(rd uint8, pc uint64, offset int64) (uint64, error) {
	target := pc + uint64(offset)
	if err := checkTarget(target); err != nil {
		return 0, err
	}

	b.regFile.WriteReg(rd, pc+4)
	return target, nil
}

// JALR links pc+4 into rd and returns (rs1+offset) with bit 0 cleared. The
// target is computed before rd is written, so rd may equal rs1.
func (b *BranchUnit) JALR(rd, rs1 uint8, pc uint64, offset int64) (uint64, error) {
	target := (b.regFile.ReadReg(rs1) + uint64(offset)) &^ 1
	if err := checkTarget(target); err != nil {
		return 0, err
	}

	b.regFile.WriteReg(rd, pc+4)
	return target, nil
}

func checkTarget(target uint64) error {
	if target&0x3 != 0 {
		return &MisalignedTargetError{Target: target}
	}
	return nil
}
