package insts

// WordMRET is the exact encoding of MRET.
const WordMRET uint32 = 0x30200073

var csrOps = [8]Op{OpUnknown, OpCSRRW, OpCSRRS, OpCSRRC, OpUnknown, OpCSRRWI, OpCSRRSI, OpCSRRCI}

// ZicsrDecoder decodes the Zicsr extension and MRET.
type ZicsrDecoder struct{}

// NewZicsrDecoder creates a new Zicsr decoder.
func NewZicsrDecoder() *ZicsrDecoder {
	return &ZicsrDecoder{}
}

// Extension returns ExtZicsr.
func (d *ZicsrDecoder) Extension() ExtensionID {
	return ExtZicsr
}

// Decode decodes a CSR access or MRET word.
func (d *ZicsrDecoder) Decode(word uint32, _ uint64) (*Instruction, bool) {
	if opcodeOf(word) != OpcodeSystem {
		return nil, false
	}

	inst := &Instruction{
		Format: FormatI,
		Ext:    ExtZicsr,
		Raw:    word,
		Opcode: OpcodeSystem,
		Rd:     rdOf(word),
		Rs1:    rs1Of(word),
		Funct3: funct3Of(word),
		CSR:    uint16(word >> 20),
	}
	inst.Imm = int64(inst.CSR)

	if word == WordMRET {
		inst.Op = OpMRET
		return inst, true
	}

	inst.Op = csrOps[inst.Funct3]
	if inst.Op == OpUnknown {
		return nil, false
	}
	return inst, true
}
