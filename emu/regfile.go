// Package emu provides functional RISC-V 64 userland emulation.
package emu

import "fmt"

// ABI register numbers.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegGP   uint8 = 3
	RegTP   uint8 = 4
	RegT0   uint8 = 5
	RegS0   uint8 = 8
	RegA0   uint8 = 10
	RegA1   uint8 = 11
	RegA2   uint8 = 12
	RegA3   uint8 = 13
	RegA4   uint8 = 14
	RegA5   uint8 = 15
	RegA6   uint8 = 16
	RegA7   uint8 = 17
)

var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of an integer register.
func RegName(reg uint8) string {
	if reg < 32 {
		return abiNames[reg]
	}
	return fmt.Sprintf("x%d", reg)
}

// RegFile represents the RV64 integer register file.
// It contains 32 general-purpose registers (x0-x31) and the program counter.
type RegFile struct {
	// X holds the integer registers. X[0] is hardwired to zero; it is
	// never written through WriteReg.
	X [32]uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg reads a register value. Register 0 and out-of-range registers
// read as 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// ReadReg32 reads the lower 32 bits of a register.
func (r *RegFile) ReadReg32(reg uint8) uint32 {
	return uint32(r.ReadReg(reg))
}

// WriteReg32 writes a 32-bit result sign-extended to 64 bits, as all RV64
// W-form instructions do.
func (r *RegFile) WriteReg32(reg uint8, value uint32) {
	r.WriteReg(reg, uint64(int64(int32(value))))
}

// Reset clears all registers and the PC.
func (r *RegFile) Reset() {
	*r = RegFile{}
}
