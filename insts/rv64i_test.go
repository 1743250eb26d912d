package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/insts"
)

var _ = Describe("RV64IDecoder", func() {
	var decoder *insts.RV64IDecoder

	BeforeEach(func() {
		decoder = insts.NewRV64IDecoder()
	})

	decode := func(word uint32) *insts.Instruction {
		inst, ok := decoder.Decode(word, 0x10000)
		ExpectWithOffset(1, ok).To(BeTrue(), "word 0x%08x should decode", word)
		return inst
	}

	It("should report the I extension", func() {
		Expect(decoder.Extension()).To(Equal(insts.ExtI))
	})

	Describe("I-type", func() {
		// addi x0, x0, 0 (canonical nop)
		It("should decode 0x00000013 as ADDI x0, x0, 0", func() {
			inst := decode(0x00000013)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(int64(0)))
		})

		// addi a0, a0, 5
		It("should decode 0x00550513 as ADDI x10, x10, 5", func() {
			inst := decode(0x00550513)

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Rd).To(Equal(uint8(10)))
			Expect(inst.Rs1).To(Equal(uint8(10)))
			Expect(inst.Imm).To(Equal(int64(5)))
		})

		DescribeTable("immediate sign extension at the boundaries",
			func(word uint32, imm int64) {
				Expect(decode(word).Imm).To(Equal(imm))
			},
			Entry("addi x1, x0, -1", uint32(0xfff00093), int64(-1)),
			Entry("addi x1, x0, 2047", uint32(0x7ff00093), int64(2047)),
			Entry("addi x1, x0, -2048", uint32(0x80000093), int64(-2048)),
		)

		// ld a0, 16(sp)
		It("should decode LD with its offset", func() {
			inst := decode(0x01013503)

			Expect(inst.Op).To(Equal(insts.OpLD))
			Expect(inst.Rd).To(Equal(uint8(10)))
			Expect(inst.Rs1).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(int64(16)))
		})

		It("should reject load funct3 111", func() {
			_, ok := decoder.Decode(insts.EncodeI(insts.OpcodeLoad, 1, 0b111, 2, 0), 0)
			Expect(ok).To(BeFalse())
		})

		It("should reject JALR with non-zero funct3", func() {
			_, ok := decoder.Decode(insts.EncodeI(insts.OpcodeJALR, 1, 0b001, 2, 0), 0)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("shift immediates", func() {
		// slli a0, a0, 63
		It("should accept a 6-bit shamt for SLLI", func() {
			inst := decode(0x03f51513)

			Expect(inst.Op).To(Equal(insts.OpSLLI))
			Expect(inst.Imm).To(Equal(int64(63)))
		})

		// srai a0, a0, 40
		It("should decode SRAI from funct6 010000", func() {
			inst := decode(0x42855513)

			Expect(inst.Op).To(Equal(insts.OpSRAI))
			Expect(inst.Imm).To(Equal(int64(40)))
		})

		It("should decline SLLI with an unknown funct6", func() {
			_, ok := decoder.Decode(0x04051513, 0)
			Expect(ok).To(BeFalse())
		})

		// sraiw a0, a0, 3
		It("should decode SRAIW with a 5-bit shamt", func() {
			inst := decode(0x4035551b)

			Expect(inst.Op).To(Equal(insts.OpSRAIW))
			Expect(inst.Imm).To(Equal(int64(3)))
		})

		It("should decline SLLIW with shamt bit 5 set", func() {
			_, ok := decoder.Decode(0x0205151b, 0)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("R-type", func() {
		DescribeTable("register operations",
			func(word uint32, op insts.Op) {
				inst := decode(word)
				Expect(inst.Op).To(Equal(op))
				Expect(inst.Format).To(Equal(insts.FormatR))
				Expect(inst.Rd).To(Equal(uint8(10)))
				Expect(inst.Rs1).To(Equal(uint8(11)))
				Expect(inst.Rs2).To(Equal(uint8(12)))
			},
			Entry("add", uint32(0x00c58533), insts.OpADD),
			Entry("sub", uint32(0x40c58533), insts.OpSUB),
			Entry("sra", uint32(0x40c5d533), insts.OpSRA),
			Entry("and", uint32(0x00c5f533), insts.OpAND),
			Entry("addw", uint32(0x00c5853b), insts.OpADDW),
			Entry("subw", uint32(0x40c5853b), insts.OpSUBW),
			Entry("sraw", uint32(0x40c5d53b), insts.OpSRAW),
		)

		It("should decline M-extension words", func() {
			// mul a0, a1, a2
			_, ok := decoder.Decode(0x02c58533, 0)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("S-type", func() {
		// sd sp, 8(ra)
		It("should decode SD", func() {
			inst := decode(0x0020b423)

			Expect(inst.Op).To(Equal(insts.OpSD))
			Expect(inst.Format).To(Equal(insts.FormatS))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(int64(8)))
		})

		It("should sign-extend a split immediate of -1", func() {
			inst := decode(0xfe002fa3)

			Expect(inst.Op).To(Equal(insts.OpSW))
			Expect(inst.Imm).To(Equal(int64(-1)))
		})
	})

	Describe("B-type", func() {
		It("should decode BEQ x0, x0, 8", func() {
			inst := decode(0x00000463)

			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Format).To(Equal(insts.FormatB))
			Expect(inst.Imm).To(Equal(int64(8)))
		})

		It("should sign-extend the most negative offset", func() {
			Expect(decode(0x80000063).Imm).To(Equal(int64(-4096)))
		})

		It("should decline branch funct3 010", func() {
			_, ok := decoder.Decode(insts.EncodeB(insts.OpcodeBranch, 0b010, 1, 2, 8), 0)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("U-type", func() {
		// lui t0, 0x12345
		It("should decode LUI", func() {
			inst := decode(0x123452b7)

			Expect(inst.Op).To(Equal(insts.OpLUI))
			Expect(inst.Format).To(Equal(insts.FormatU))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Imm).To(Equal(int64(0x12345000)))
		})

		It("should sign-extend from bit 31", func() {
			Expect(decode(0x800002b7).Imm).To(Equal(int64(-0x80000000)))
		})

		It("should decode AUIPC", func() {
			Expect(decode(0x00001517).Op).To(Equal(insts.OpAUIPC))
		})
	})

	Describe("J-type", func() {
		// jal ra, 16
		It("should decode JAL with a forward offset", func() {
			inst := decode(0x010000ef)

			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.Format).To(Equal(insts.FormatJ))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int64(16)))
		})

		// j -4
		It("should decode JAL with a backward offset", func() {
			Expect(decode(0xffdff06f).Imm).To(Equal(int64(-4)))
		})

		It("should reach the extremes of the 21-bit range", func() {
			Expect(decode(insts.EncodeJ(insts.OpcodeJAL, 0, -1<<20)).Imm).To(Equal(int64(-1 << 20)))
			Expect(decode(insts.EncodeJ(insts.OpcodeJAL, 0, 1<<20-2)).Imm).To(Equal(int64(1<<20 - 2)))
		})
	})

	Describe("system", func() {
		It("should decode ECALL and EBREAK only as exact words", func() {
			Expect(decode(0x00000073).Op).To(Equal(insts.OpECALL))
			Expect(decode(0x00100073).Op).To(Equal(insts.OpEBREAK))

			_, ok := decoder.Decode(0x00000873, 0)
			Expect(ok).To(BeFalse())
			_, ok = decoder.Decode(0x10500073, 0) // wfi
			Expect(ok).To(BeFalse())
		})

		It("should decode FENCE", func() {
			Expect(decode(0x0ff0000f).Op).To(Equal(insts.OpFENCE))
		})

		It("should leave CSR words to Zicsr", func() {
			_, ok := decoder.Decode(0xf1402573, 0)
			Expect(ok).To(BeFalse())
		})
	})

	It("should decline unknown major opcodes", func() {
		_, ok := decoder.Decode(0x00000007, 0) // flw
		Expect(ok).To(BeFalse())
		_, ok = decoder.Decode(0xffffffff, 0)
		Expect(ok).To(BeFalse())
	})
})
