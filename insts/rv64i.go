package insts

// Major opcodes (bits [6:0]).
const (
	OpcodeLoad    uint8 = 0b0000011
	OpcodeMiscMem uint8 = 0b0001111
	OpcodeOpImm   uint8 = 0b0010011
	OpcodeAUIPC   uint8 = 0b0010111
	OpcodeOpImm32 uint8 = 0b0011011
	OpcodeStore   uint8 = 0b0100011
	OpcodeOp      uint8 = 0b0110011
	OpcodeLUI     uint8 = 0b0110111
	OpcodeOp32    uint8 = 0b0111011
	OpcodeBranch  uint8 = 0b1100011
	OpcodeJALR    uint8 = 0b1100111
	OpcodeJAL     uint8 = 0b1101111
	OpcodeSystem  uint8 = 0b1110011
)

// Exact encodings of the environment instructions.
const (
	WordECALL  uint32 = 0x00000073
	WordEBREAK uint32 = 0x00100073
)

var (
	branchOps = [8]Op{OpBEQ, OpBNE, OpUnknown, OpUnknown, OpBLT, OpBGE, OpBLTU, OpBGEU}
	loadOps   = [8]Op{OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU, OpUnknown}
	storeOps  = [8]Op{OpSB, OpSH, OpSW, OpSD, OpUnknown, OpUnknown, OpUnknown, OpUnknown}
	opImmOps  = [8]Op{OpADDI, OpSLLI, OpSLTI, OpSLTIU, OpXORI, OpSRLI, OpORI, OpANDI}
	opOps     = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
)

// RV64IDecoder decodes the RV64I base integer instruction set.
type RV64IDecoder struct{}

// NewRV64IDecoder creates a new RV64I decoder.
func NewRV64IDecoder() *RV64IDecoder {
	return &RV64IDecoder{}
}

// Extension returns ExtI.
func (d *RV64IDecoder) Extension() ExtensionID {
	return ExtI
}

// Decode decodes an RV64I instruction word.
func (d *RV64IDecoder) Decode(word uint32, _ uint64) (*Instruction, bool) {
	inst := &Instruction{
		Ext:    ExtI,
		Raw:    word,
		Opcode: opcodeOf(word),
		Funct3: funct3Of(word),
	}

	var ok bool
	switch inst.Opcode {
	case OpcodeLUI, OpcodeAUIPC:
		ok = d.decodeU(word, inst)
	case OpcodeJAL:
		ok = d.decodeJ(word, inst)
	case OpcodeJALR:
		ok = d.decodeJALR(word, inst)
	case OpcodeBranch:
		ok = d.decodeBranch(word, inst)
	case OpcodeLoad:
		ok = d.decodeLoad(word, inst)
	case OpcodeStore:
		ok = d.decodeStore(word, inst)
	case OpcodeOpImm:
		ok = d.decodeOpImm(word, inst)
	case OpcodeOp:
		ok = d.decodeOp(word, inst)
	case OpcodeOpImm32:
		ok = d.decodeOpImm32(word, inst)
	case OpcodeOp32:
		ok = d.decodeOp32(word, inst)
	case OpcodeMiscMem:
		ok = d.decodeFence(word, inst)
	case OpcodeSystem:
		ok = d.decodeSystem(word, inst)
	}

	if !ok {
		return nil, false
	}
	return inst, true
}

func (d *RV64IDecoder) decodeU(word uint32, inst *Instruction) bool {
	inst.Format = FormatU
	inst.Rd = rdOf(word)
	inst.Imm = immU(word)
	inst.Funct3 = 0
	if inst.Opcode == OpcodeLUI {
		inst.Op = OpLUI
	} else {
		inst.Op = OpAUIPC
	}
	return true
}

func (d *RV64IDecoder) decodeJ(word uint32, inst *Instruction) bool {
	inst.Format = FormatJ
	inst.Op = OpJAL
	inst.Rd = rdOf(word)
	inst.Imm = immJ(word)
	inst.Funct3 = 0
	return true
}

func (d *RV64IDecoder) decodeJALR(word uint32, inst *Instruction) bool {
	if inst.Funct3 != 0 {
		return false
	}
	d.fillI(word, inst)
	inst.Op = OpJALR
	return true
}

func (d *RV64IDecoder) decodeBranch(word uint32, inst *Instruction) bool {
	op := branchOps[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	inst.Format = FormatB
	inst.Op = op
	inst.Rs1 = rs1Of(word)
	inst.Rs2 = rs2Of(word)
	inst.Imm = immB(word)
	return true
}

func (d *RV64IDecoder) decodeLoad(word uint32, inst *Instruction) bool {
	op := loadOps[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	d.fillI(word, inst)
	inst.Op = op
	return true
}

func (d *RV64IDecoder) decodeStore(word uint32, inst *Instruction) bool {
	op := storeOps[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	inst.Format = FormatS
	inst.Op = op
	inst.Rs1 = rs1Of(word)
	inst.Rs2 = rs2Of(word)
	inst.Imm = immS(word)
	return true
}

// decodeOpImm handles OP-IMM. The 64-bit shifts take a 6-bit shamt, so only
// funct6 (bits [31:26]) selects the operation.
func (d *RV64IDecoder) decodeOpImm(word uint32, inst *Instruction) bool {
	d.fillI(word, inst)
	inst.Op = opImmOps[inst.Funct3]

	if inst.Op != OpSLLI && inst.Op != OpSRLI {
		return true
	}

	funct6 := uint8(word >> 26)
	inst.Funct7 = funct6 << 1
	inst.Imm = int64((word >> 20) & 0x3f)

	switch {
	case inst.Op == OpSLLI && funct6 == 0b000000:
	case inst.Op == OpSRLI && funct6 == 0b000000:
	case inst.Op == OpSRLI && funct6 == 0b010000:
		inst.Op = OpSRAI
	default:
		return false
	}
	return true
}

func (d *RV64IDecoder) decodeOp(word uint32, inst *Instruction) bool {
	d.fillR(word, inst)

	switch inst.Funct7 {
	case 0b0000000:
		inst.Op = opOps[inst.Funct3]
	case 0b0100000:
		switch inst.Funct3 {
		case 0b000:
			inst.Op = OpSUB
		case 0b101:
			inst.Op = OpSRA
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// decodeOpImm32 handles OP-IMM-32. W shifts take a 5-bit shamt.
func (d *RV64IDecoder) decodeOpImm32(word uint32, inst *Instruction) bool {
	d.fillI(word, inst)

	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpADDIW
		return true
	case 0b001, 0b101:
	default:
		return false
	}

	inst.Funct7 = funct7Of(word)
	inst.Imm = int64((word >> 20) & 0x1f)

	switch {
	case inst.Funct3 == 0b001 && inst.Funct7 == 0b0000000:
		inst.Op = OpSLLIW
	case inst.Funct3 == 0b101 && inst.Funct7 == 0b0000000:
		inst.Op = OpSRLIW
	case inst.Funct3 == 0b101 && inst.Funct7 == 0b0100000:
		inst.Op = OpSRAIW
	default:
		return false
	}
	return true
}

func (d *RV64IDecoder) decodeOp32(word uint32, inst *Instruction) bool {
	d.fillR(word, inst)

	switch {
	case inst.Funct7 == 0b0000000 && inst.Funct3 == 0b000:
		inst.Op = OpADDW
	case inst.Funct7 == 0b0100000 && inst.Funct3 == 0b000:
		inst.Op = OpSUBW
	case inst.Funct7 == 0b0000000 && inst.Funct3 == 0b001:
		inst.Op = OpSLLW
	case inst.Funct7 == 0b0000000 && inst.Funct3 == 0b101:
		inst.Op = OpSRLW
	case inst.Funct7 == 0b0100000 && inst.Funct3 == 0b101:
		inst.Op = OpSRAW
	default:
		return false
	}
	return true
}

// decodeFence accepts FENCE with any fm/pred/succ; the reserved rd and rs1
// fields are ignored.
func (d *RV64IDecoder) decodeFence(word uint32, inst *Instruction) bool {
	if inst.Funct3 != 0 {
		return false
	}
	d.fillI(word, inst)
	inst.Op = OpFENCE
	return true
}

func (d *RV64IDecoder) decodeSystem(word uint32, inst *Instruction) bool {
	switch word {
	case WordECALL:
		inst.Op = OpECALL
	case WordEBREAK:
		inst.Op = OpEBREAK
	default:
		return false
	}
	d.fillI(word, inst)
	return true
}

func (d *RV64IDecoder) fillI(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Rd = rdOf(word)
	inst.Rs1 = rs1Of(word)
	inst.Imm = immI(word)
}

func (d *RV64IDecoder) fillR(word uint32, inst *Instruction) {
	inst.Format = FormatR
	inst.Rd = rdOf(word)
	inst.Rs1 = rs1Of(word)
	inst.Rs2 = rs2Of(word)
	inst.Funct7 = funct7Of(word)
}
