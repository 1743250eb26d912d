package emu

import "github.com/sarchlab/rvemu/insts"

// ALU implements RV64I integer arithmetic and logic operations.
// All arithmetic wraps in two's complement; no operation traps.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// RegReg performs rd = rs1 op rs2 for R-type operations.
func (a *ALU) RegReg(op insts.Op, rd, rs1, rs2 uint8) {
	x := a.regFile.ReadReg(rs1)
	y := a.regFile.ReadReg(rs2)

	switch op {
	case insts.OpADDW, insts.OpSUBW, insts.OpSLLW, insts.OpSRLW, insts.OpSRAW:
		a.regFile.WriteReg32(rd, Compute32(op, uint32(x), uint32(y)))
	default:
		a.regFile.WriteReg(rd, Compute64(op, x, y))
	}
}

// RegImm performs rd = rs1 op imm for I-type arithmetic operations.
func (a *ALU) RegImm(op insts.Op, rd, rs1 uint8, imm int64) {
	x := a.regFile.ReadReg(rs1)

	switch op {
	case insts.OpADDIW:
		a.regFile.WriteReg32(rd, Compute32(insts.OpADDW, uint32(x), uint32(imm)))
	case insts.OpSLLIW:
		a.regFile.WriteReg32(rd, Compute32(insts.OpSLLW, uint32(x), uint32(imm)))
	case insts.OpSRLIW:
		a.regFile.WriteReg32(rd, Compute32(insts.OpSRLW, uint32(x), uint32(imm)))
	case insts.OpSRAIW:
		a.regFile.WriteReg32(rd, Compute32(insts.OpSRAW, uint32(x), uint32(imm)))
	default:
		a.regFile.WriteReg(rd, Compute64(immToReg(op), x, uint64(imm)))
	}
}

// Upper handles LUI and AUIPC.
func (a *ALU) Upper(op insts.Op, rd uint8, pc uint64, imm int64) {
	if op == insts.OpAUIPC {
		a.regFile.WriteReg(rd, pc+uint64(imm))
		return
	}
	a.regFile.WriteReg(rd, uint64(imm))
}

// immToReg maps an immediate operation to its register-register form.
func immToReg(op insts.Op) insts.Op {
	switch op {
	case insts.OpADDI:
		return insts.OpADD
	case insts.OpSLTI:
		return insts.OpSLT
	case insts.OpSLTIU:
		return insts.OpSLTU
	case insts.OpXORI:
		return insts.OpXOR
	case insts.OpORI:
		return insts.OpOR
	case insts.OpANDI:
		return insts.OpAND
	case insts.OpSLLI:
		return insts.OpSLL
	case insts.OpSRLI:
		return insts.OpSRL
	case insts.OpSRAI:
		return insts.OpSRA
	}
	return op
}

// Compute64 evaluates a 64-bit register-register operation. Shift amounts
// use the low 6 bits of y.
func Compute64(op insts.Op, x, y uint64) uint64 {
	switch op {
	case insts.OpADD:
		return x + y
	case insts.OpSUB:
		return x - y
	case insts.OpSLL:
		return x << (y & 0x3f)
	case insts.OpSLT:
		return boolToReg(int64(x) < int64(y))
	case insts.OpSLTU:
		return boolToReg(x < y)
	case insts.OpXOR:
		return x ^ y
	case insts.OpSRL:
		return x >> (y & 0x3f)
	case insts.OpSRA:
		return uint64(int64(x) >> (y & 0x3f))
	case insts.OpOR:
		return x | y
	case insts.OpAND:
		return x & y
	}
	return 0
}

// Compute32 evaluates a W-form operation on the low 32 bits. Shift amounts
// use the low 5 bits of y. The caller sign-extends the result.
func Compute32(op insts.Op, x, y uint32) uint32 {
	switch op {
	case insts.OpADDW:
		return x + y
	case insts.OpSUBW:
		return x - y
	case insts.OpSLLW:
		return x << (y & 0x1f)
	case insts.OpSRLW:
		return x >> (y & 0x1f)
	case insts.OpSRAW:
		return uint32(int32(x) >> (y & 0x1f))
	}
	return 0
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
