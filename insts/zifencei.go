package insts

// ZifenceiDecoder decodes the Zifencei extension.
type ZifenceiDecoder struct{}

// NewZifenceiDecoder creates a new Zifencei decoder.
func NewZifenceiDecoder() *ZifenceiDecoder {
	return &ZifenceiDecoder{}
}

// Extension returns ExtZifencei.
func (d *ZifenceiDecoder) Extension() ExtensionID {
	return ExtZifencei
}

// Decode decodes FENCE.I. The imm, rs1 and rd fields are reserved and
// ignored.
func (d *ZifenceiDecoder) Decode(word uint32, _ uint64) (*Instruction, bool) {
	if opcodeOf(word) != OpcodeMiscMem || funct3Of(word) != 0b001 {
		return nil, false
	}

	return &Instruction{
		Op:     OpFENCEI,
		Format: FormatI,
		Ext:    ExtZifencei,
		Raw:    word,
		Opcode: OpcodeMiscMem,
		Rd:     rdOf(word),
		Rs1:    rs1Of(word),
		Funct3: 0b001,
		Imm:    immI(word),
	}, true
}
