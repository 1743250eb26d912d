// Package insts provides RISC-V instruction definitions and decoding.
//
// Decoding is split into per-extension decoder modules. Each module
// recognizes the instruction words of one ISA extension and declines
// everything else; a Chain offers a word to its modules in registration
// order. Supported modules:
//   - RV64I: the 64-bit base integer instruction set
//   - Zicsr: control and status register access, plus MRET
//   - Zifencei: instruction-fetch fence
//
// Usage:
//
//	chain := insts.NewChain(insts.NewRV64IDecoder(), insts.NewZicsrDecoder())
//	inst, err := chain.Decode(0x00550513, 0x10000) // addi a0, a0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
