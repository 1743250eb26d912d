package insts

// EncodeR assembles an R-type word.
func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint8) uint32 {
	return uint32(funct7&0x7f)<<25 | uint32(rs2&0x1f)<<20 | uint32(rs1&0x1f)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1f)<<7 | uint32(opcode&0x7f)
}

// EncodeI assembles an I-type word. Only the low 12 bits of imm are used.
func EncodeI(opcode, rd, funct3, rs1 uint8, imm int64) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1&0x1f)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1f)<<7 | uint32(opcode&0x7f)
}

// EncodeS assembles an S-type word.
func EncodeS(opcode, funct3, rs1, rs2 uint8, imm int64) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | uint32(rs2&0x1f)<<20 | uint32(rs1&0x1f)<<15 |
		uint32(funct3&0x7)<<12 | (u&0x1f)<<7 | uint32(opcode&0x7f)
}

// EncodeB assembles a B-type word. imm is a byte offset; bit 0 is dropped.
func EncodeB(opcode, funct3, rs1, rs2 uint8, imm int64) uint32 {
	u := uint32(imm)
	return (u>>12&0x1)<<31 | (u>>5&0x3f)<<25 | uint32(rs2&0x1f)<<20 |
		uint32(rs1&0x1f)<<15 | uint32(funct3&0x7)<<12 |
		(u>>1&0xf)<<8 | (u>>11&0x1)<<7 | uint32(opcode&0x7f)
}

// EncodeU assembles a U-type word. imm is the full value; its low 12 bits
// are dropped.
func EncodeU(opcode, rd uint8, imm int64) uint32 {
	return uint32(imm)&0xfffff000 | uint32(rd&0x1f)<<7 | uint32(opcode&0x7f)
}

// EncodeJ assembles a J-type word. imm is a byte offset; bit 0 is dropped.
func EncodeJ(opcode, rd uint8, imm int64) uint32 {
	u := uint32(imm)
	return (u>>20&0x1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&0x1)<<20 |
		(u>>12&0xff)<<12 | uint32(rd&0x1f)<<7 | uint32(opcode&0x7f)
}

// Encode reassembles the instruction word from the decoded fields.
func Encode(inst *Instruction) uint32 {
	switch inst.Format {
	case FormatR:
		return EncodeR(inst.Opcode, inst.Rd, inst.Funct3, inst.Rs1, inst.Rs2, inst.Funct7)
	case FormatI:
		return encodeI(inst)
	case FormatS:
		return EncodeS(inst.Opcode, inst.Funct3, inst.Rs1, inst.Rs2, inst.Imm)
	case FormatB:
		return EncodeB(inst.Opcode, inst.Funct3, inst.Rs1, inst.Rs2, inst.Imm)
	case FormatU:
		return EncodeU(inst.Opcode, inst.Rd, inst.Imm)
	case FormatJ:
		return EncodeJ(inst.Opcode, inst.Rd, inst.Imm)
	}
	return inst.Raw
}

func encodeI(inst *Instruction) uint32 {
	switch inst.Op {
	case OpSLLI, OpSRLI, OpSRAI:
		imm := int64(inst.Funct7)<<5 | inst.Imm&0x3f
		return EncodeI(inst.Opcode, inst.Rd, inst.Funct3, inst.Rs1, imm)
	case OpSLLIW, OpSRLIW, OpSRAIW:
		imm := int64(inst.Funct7)<<5 | inst.Imm&0x1f
		return EncodeI(inst.Opcode, inst.Rd, inst.Funct3, inst.Rs1, imm)
	}

	if inst.Ext == ExtZicsr {
		return EncodeI(inst.Opcode, inst.Rd, inst.Funct3, inst.Rs1, int64(inst.CSR))
	}

	return EncodeI(inst.Opcode, inst.Rd, inst.Funct3, inst.Rs1, inst.Imm)
}
