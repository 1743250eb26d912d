package emu

import "github.com/sarchlab/rvemu/insts"

// LoadStoreUnit implements RV64I load and store operations. Accesses must
// be naturally aligned.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// AccessSize returns the width in bytes of a load or store operation.
func AccessSize(op insts.Op) uint64 {
	switch op {
	case insts.OpLB, insts.OpLBU, insts.OpSB:
		return 1
	case insts.OpLH, insts.OpLHU, insts.OpSH:
		return 2
	case insts.OpLW, insts.OpLWU, insts.OpSW:
		return 4
	case insts.OpLD, insts.OpSD:
		return 8
	}
	return 0
}

// EffectiveAddress computes rs1 + imm.
func (lsu *LoadStoreUnit) EffectiveAddress(rs1 uint8, imm int64) uint64 {
	return lsu.regFile.ReadReg(rs1) + uint64(imm)
}

func (lsu *LoadStoreUnit) checkAlign(addr, size uint64, access Access) error {
	if addr&(size-1) != 0 {
		return &MemoryFault{Addr: addr, Size: size, Access: access, Reason: ErrMisaligned}
	}
	return nil
}

// Load performs rd = mem[rs1 + imm] with the extension the operation
// prescribes. rd is unchanged on a fault.
func (lsu *LoadStoreUnit) Load(op insts.Op, rd, rs1 uint8, imm int64) error {
	addr := lsu.EffectiveAddress(rs1, imm)
	size := AccessSize(op)
	if err := lsu.checkAlign(addr, size, AccessRead); err != nil {
		return err
	}

	var value uint64
	switch op {
	case insts.OpLB, insts.OpLBU:
		v, err := lsu.memory.Read8(addr)
		if err != nil {
			return err
		}
		if op == insts.OpLB {
			value = uint64(int64(int8(v)))
		} else {
			value = uint64(v)
		}
	case insts.OpLH, insts.OpLHU:
		v, err := lsu.memory.Read16(addr)
		if err != nil {
			return err
		}
		if op == insts.OpLH {
			value = uint64(int64(int16(v)))
		} else {
			value = uint64(v)
		}
	case insts.OpLW, insts.OpLWU:
		v, err := lsu.memory.Read32(addr)
		if err != nil {
			return err
		}
		if op == insts.OpLW {
			value = uint64(int64(int32(v)))
		} else {
			value = uint64(v)
		}
	case insts.OpLD:
		v, err := lsu.memory.Read64(addr)
		if err != nil {
			return err
		}
		value = v
	}

	lsu.regFile.WriteReg(rd, value)
	return nil
}

// Store performs mem[rs1 + imm] = rs2, truncated to the access width.
func (lsu *LoadStoreUnit) Store(op insts.Op, rs1, rs2 uint8, imm int64) error {
	addr := lsu.EffectiveAddress(rs1, imm)
	size := AccessSize(op)
	if err := lsu.checkAlign(addr, size, AccessWrite); err != nil {
		return err
	}

	value := lsu.regFile.ReadReg(rs2)
	switch op {
	case insts.OpSB:
		return lsu.memory.Write8(addr, uint8(value))
	case insts.OpSH:
		return lsu.memory.Write16(addr, uint16(value))
	case insts.OpSW:
		return lsu.memory.Write32(addr, uint32(value))
	default:
		return lsu.memory.Write64(addr, value)
	}
}
