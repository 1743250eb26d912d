package insts

import "fmt"

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op          // Operation
	Format Format      // Encoding format
	Ext    ExtensionID // Extension whose decoder produced the instruction
	Raw    uint32      // Original instruction word

	Opcode uint8 // bits [6:0]
	Rd     uint8 // Destination register
	Rs1    uint8 // First source register (zero-extended uimm for CSR*I)
	Rs2    uint8 // Second source register
	Funct3 uint8 // bits [14:12]
	Funct7 uint8 // bits [31:25]; funct6<<1 for 64-bit shift-immediates

	// Imm is the sign-extended immediate for I, S, B, U and J formats.
	// For shift-immediates it holds the shift amount.
	Imm int64

	// CSR is the unsigned 12-bit CSR number of Zicsr instructions.
	CSR uint16
}

// String renders the instruction in a compact assembler-like form.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		switch {
		case i.Op.IsLoad() || i.Op == OpJALR:
			return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
		case i.Op == OpECALL || i.Op == OpEBREAK || i.Op == OpMRET ||
			i.Op == OpFENCE || i.Op == OpFENCEI:
			return i.Op.String()
		case i.Ext == ExtZicsr:
			return fmt.Sprintf("%s x%d, 0x%03x, %d", i.Op, i.Rd, i.CSR, i.Rs1)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint64(i.Imm)>>12&0xfffff)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	}
	return fmt.Sprintf("unknown 0x%08x", i.Raw)
}

// Field extraction helpers shared by the decoder modules.

func opcodeOf(word uint32) uint8 { return uint8(word & 0x7f) }
func rdOf(word uint32) uint8     { return uint8((word >> 7) & 0x1f) }
func funct3Of(word uint32) uint8 { return uint8((word >> 12) & 0x7) }
func rs1Of(word uint32) uint8    { return uint8((word >> 15) & 0x1f) }
func rs2Of(word uint32) uint8    { return uint8((word >> 20) & 0x1f) }
func funct7Of(word uint32) uint8 { return uint8(word >> 25) }

// immI extracts imm[11:0] from bits [31:20], sign-extended from bit 11.
func immI(word uint32) int64 {
	return int64(int32(word) >> 20)
}

// immS extracts imm[11:5|4:0] from bits [31:25] and [11:7].
func immS(word uint32) int64 {
	hi := int32(word) >> 25 << 5
	lo := int32((word >> 7) & 0x1f)
	return int64(hi | lo)
}

// immB extracts imm[12|10:5|4:1|11], sign-extended from bit 12.
func immB(word uint32) int64 {
	imm := int32(word) >> 31 << 12
	imm |= int32((word>>7)&0x1) << 11
	imm |= int32((word>>25)&0x3f) << 5
	imm |= int32((word>>8)&0xf) << 1
	return int64(imm)
}

// immU extracts imm[31:12] with the low 12 bits zero, sign-extended from bit 31.
func immU(word uint32) int64 {
	return int64(int32(word & 0xfffff000))
}

// immJ extracts imm[20|10:1|11|19:12], sign-extended from bit 20.
func immJ(word uint32) int64 {
	imm := int32(word) >> 31 << 20
	imm |= int32((word>>12)&0xff) << 12
	imm |= int32((word>>20)&0x1) << 11
	imm |= int32((word>>21)&0x3ff) << 1
	return int64(imm)
}
