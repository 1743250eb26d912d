package insts

import "fmt"

// Op represents a RISC-V operation.
type Op uint16

// RV64I operations.
const (
	OpUnknown Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpFENCE
	OpECALL
	OpEBREAK

	// Zifencei
	OpFENCEI

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	OpMRET

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "unknown",
	OpLUI:     "lui",
	OpAUIPC:   "auipc",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpBLT:     "blt",
	OpBGE:     "bge",
	OpBLTU:    "bltu",
	OpBGEU:    "bgeu",
	OpLB:      "lb",
	OpLH:      "lh",
	OpLW:      "lw",
	OpLD:      "ld",
	OpLBU:     "lbu",
	OpLHU:     "lhu",
	OpLWU:     "lwu",
	OpSB:      "sb",
	OpSH:      "sh",
	OpSW:      "sw",
	OpSD:      "sd",
	OpADDI:    "addi",
	OpSLTI:    "slti",
	OpSLTIU:   "sltiu",
	OpXORI:    "xori",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpSLLI:    "slli",
	OpSRLI:    "srli",
	OpSRAI:    "srai",
	OpADD:     "add",
	OpSUB:     "sub",
	OpSLL:     "sll",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpXOR:     "xor",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpOR:      "or",
	OpAND:     "and",
	OpADDIW:   "addiw",
	OpSLLIW:   "slliw",
	OpSRLIW:   "srliw",
	OpSRAIW:   "sraiw",
	OpADDW:    "addw",
	OpSUBW:    "subw",
	OpSLLW:    "sllw",
	OpSRLW:    "srlw",
	OpSRAW:    "sraw",
	OpFENCE:   "fence",
	OpECALL:   "ecall",
	OpEBREAK:  "ebreak",
	OpFENCEI:  "fence.i",
	OpCSRRW:   "csrrw",
	OpCSRRS:   "csrrs",
	OpCSRRC:   "csrrc",
	OpCSRRWI:  "csrrwi",
	OpCSRRSI:  "csrrsi",
	OpCSRRCI:  "csrrci",
	OpMRET:    "mret",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if o < numOps && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

// IsLoad reports whether the operation reads data memory.
func (o Op) IsLoad() bool {
	return o >= OpLB && o <= OpLWU
}

// IsStore reports whether the operation writes data memory.
func (o Op) IsStore() bool {
	return o >= OpSB && o <= OpSD
}

// IsBranch reports whether the operation is a conditional branch.
func (o Op) IsBranch() bool {
	return o >= OpBEQ && o <= OpBGEU
}

// Format represents a RISC-V instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatI              // short immediate, loads, jalr, system
	FormatS              // stores
	FormatB              // conditional branches
	FormatU              // long immediate
	FormatJ              // jal
)

// String returns the single-letter name of the format.
func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	default:
		return "?"
	}
}
