package insts

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Disassemble renders a 32-bit instruction word in GNU assembler syntax.
// Words the disassembler does not know are shown as a .word directive.
func Disassemble(word uint32) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := riscv64asm.Decode(buf[:])
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	return riscv64asm.GNUSyntax(inst)
}

// DisassembleInstruction renders a decoded instruction, falling back to the
// decoder's own rendering when the word is not known to the disassembler.
func DisassembleInstruction(inst *Instruction) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], inst.Raw)

	decoded, err := riscv64asm.Decode(buf[:])
	if err != nil {
		return inst.String()
	}
	return riscv64asm.GNUSyntax(decoded)
}
