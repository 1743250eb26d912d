package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/insts"
)

var _ = Describe("ALU", func() {
	var (
		regs *emu.RegFile
		alu  *emu.ALU
	)

	BeforeEach(func() {
		regs = &emu.RegFile{}
		alu = emu.NewALU(regs)
	})

	DescribeTable("Compute64",
		func(op insts.Op, x, y, want uint64) {
			Expect(emu.Compute64(op, x, y)).To(Equal(want))
		},
		Entry("add wraps", insts.OpADD, uint64(math.MaxUint64), uint64(2), uint64(1)),
		Entry("sub wraps", insts.OpSUB, uint64(0), uint64(1), uint64(math.MaxUint64)),
		Entry("sll uses six bits", insts.OpSLL, uint64(1), uint64(65), uint64(2)),
		Entry("srl", insts.OpSRL, uint64(0x8000000000000000), uint64(63), uint64(1)),
		Entry("sra keeps the sign", insts.OpSRA, uint64(0x8000000000000000), uint64(63), uint64(math.MaxUint64)),
		Entry("slt signed", insts.OpSLT, uint64(math.MaxUint64), uint64(0), uint64(1)),
		Entry("sltu unsigned", insts.OpSLTU, uint64(math.MaxUint64), uint64(0), uint64(0)),
		Entry("xor", insts.OpXOR, uint64(0xff00), uint64(0x0ff0), uint64(0xf0f0)),
		Entry("or", insts.OpOR, uint64(0xf0), uint64(0x0f), uint64(0xff)),
		Entry("and", insts.OpAND, uint64(0xf0), uint64(0x3c), uint64(0x30)),
	)

	DescribeTable("Compute32",
		func(op insts.Op, x, y, want uint32) {
			Expect(emu.Compute32(op, x, y)).To(Equal(want))
		},
		Entry("addw wraps", insts.OpADDW, uint32(0x7fffffff), uint32(1), uint32(0x80000000)),
		Entry("sllw uses five bits", insts.OpSLLW, uint32(1), uint32(33), uint32(2)),
		Entry("sraw keeps the sign", insts.OpSRAW, uint32(0x80000000), uint32(31), uint32(0xffffffff)),
		Entry("srlw", insts.OpSRLW, uint32(0x80000000), uint32(31), uint32(1)),
	)

	It("should sign-extend W results", func() {
		regs.WriteReg(1, 0x7fffffff)
		regs.WriteReg(2, 1)
		alu.RegReg(insts.OpADDW, 3, 1, 2)
		Expect(regs.ReadReg(3)).To(Equal(uint64(0xffffffff80000000)))
	})

	It("should apply immediates", func() {
		regs.WriteReg(1, 5)
		alu.RegImm(insts.OpADDI, 2, 1, -6)
		Expect(regs.ReadReg(2)).To(Equal(uint64(math.MaxUint64)))

		alu.RegImm(insts.OpSLTIU, 3, 0, -1)
		Expect(regs.ReadReg(3)).To(Equal(uint64(1)))

		alu.RegImm(insts.OpADDIW, 4, 2, 0)
		Expect(regs.ReadReg(4)).To(Equal(uint64(math.MaxUint64)))
	})

	It("should not write x0", func() {
		regs.WriteReg(1, 5)
		alu.RegImm(insts.OpADDI, 0, 1, 1)
		Expect(regs.ReadReg(0)).To(BeZero())
	})

	It("should compute upper immediates", func() {
		alu.Upper(insts.OpLUI, 1, 0x1000, -4096)
		Expect(regs.ReadReg(1)).To(Equal(uint64(0xfffffffffffff000)))

		alu.Upper(insts.OpAUIPC, 2, 0x1000, 0x2000)
		Expect(regs.ReadReg(2)).To(Equal(uint64(0x3000)))
	})
})

var _ = Describe("LoadStoreUnit", func() {
	var (
		regs *emu.RegFile
		mem  *emu.Memory
		lsu  *emu.LoadStoreUnit
	)

	BeforeEach(func() {
		regs = &emu.RegFile{}
		mem = emu.NewMemory()
		_, err := mem.Map("data", 0x1000, 0x1000, emu.PermRead|emu.PermWrite)
		Expect(err).NotTo(HaveOccurred())
		lsu = emu.NewLoadStoreUnit(regs, mem)
		regs.WriteReg(1, 0x1000)
	})

	DescribeTable("loads extend by width and signedness",
		func(op insts.Op, want uint64) {
			Expect(mem.Write64(0x1008, 0x8081828384858687)).To(Succeed())
			Expect(lsu.Load(op, 2, 1, 8)).To(Succeed())
			Expect(regs.ReadReg(2)).To(Equal(want))
		},
		Entry("lb", insts.OpLB, uint64(0xffffffffffffff87)),
		Entry("lbu", insts.OpLBU, uint64(0x87)),
		Entry("lh", insts.OpLH, uint64(0xffffffffffff8687)),
		Entry("lhu", insts.OpLHU, uint64(0x8687)),
		Entry("lw", insts.OpLW, uint64(0xffffffff84858687)),
		Entry("lwu", insts.OpLWU, uint64(0x84858687)),
		Entry("ld", insts.OpLD, uint64(0x8081828384858687)),
	)

	It("should truncate stores to the access width", func() {
		regs.WriteReg(2, 0x1122334455667788)
		Expect(lsu.Store(insts.OpSH, 1, 2, 0x10)).To(Succeed())
		v, _ := mem.Read64(0x1010)
		Expect(v).To(Equal(uint64(0x7788)))
	})

	It("should fault on misaligned accesses", func() {
		err := lsu.Load(insts.OpLW, 2, 1, 2)
		Expect(err).To(MatchError(emu.ErrMisaligned))

		err = lsu.Store(insts.OpSD, 1, 2, 4)
		Expect(err).To(MatchError(emu.ErrMisaligned))
	})

	It("should leave rd unchanged on a fault", func() {
		regs.WriteReg(2, 99)
		err := lsu.Load(insts.OpLD, 2, 1, 0x1000)
		Expect(err).To(MatchError(emu.ErrUnmapped))
		Expect(regs.ReadReg(2)).To(Equal(uint64(99)))
	})

	It("should report access sizes", func() {
		Expect(emu.AccessSize(insts.OpSB)).To(Equal(uint64(1)))
		Expect(emu.AccessSize(insts.OpLHU)).To(Equal(uint64(2)))
		Expect(emu.AccessSize(insts.OpSW)).To(Equal(uint64(4)))
		Expect(emu.AccessSize(insts.OpLD)).To(Equal(uint64(8)))
	})
})

var _ = Describe("BranchUnit", func() {
	var (
		regs *emu.RegFile
		bu   *emu.BranchUnit
	)

	BeforeEach(func() {
		regs = &emu.RegFile{}
		bu = emu.NewBranchUnit(regs)
		regs.WriteReg(1, math.MaxUint64) // -1
		regs.WriteReg(2, 1)
	})

	DescribeTable("conditions",
		func(op insts.Op, taken bool) {
			Expect(bu.CheckCondition(op, 1, 2)).To(Equal(taken))
		},
		Entry("beq", insts.OpBEQ, false),
		Entry("bne", insts.OpBNE, true),
		Entry("blt signed", insts.OpBLT, true),
		Entry("bge signed", insts.OpBGE, false),
		Entry("bltu unsigned", insts.OpBLTU, false),
		Entry("bgeu unsigned", insts.OpBGEU, true),
	)

	It("should compute branch targets", func() {
		taken, target, err := bu.Branch(insts.OpBNE, 1, 2, 0x1000, -8)
		Expect(err).NotTo(HaveOccurred())
		Expect(taken).To(BeTrue())
		Expect(target).To(Equal(uint64(0xff8)))
	})

	It("should link after JAL", func() {
		target, err := bu.JAL(emu.RegRA, 0x1000, 0x100)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(uint64(0x1100)))
		Expect(regs.ReadReg(emu.RegRA)).To(Equal(uint64(0x1004)))
	})

	It("should clear bit 0 of JALR targets", func() {
		regs.WriteReg(5, 0x2001)
		target, err := bu.JALR(emu.RegRA, 5, 0x1000, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(uint64(0x2000)))
	})

	It("should read rs1 before writing rd in JALR", func() {
		regs.WriteReg(5, 0x2000)
		target, err := bu.JALR(5, 5, 0x1000, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(uint64(0x2004)))
		Expect(regs.ReadReg(5)).To(Equal(uint64(0x1004)))
	})

	It("should reject misaligned targets without linking", func() {
		regs.WriteReg(5, 0x2002)
		_, err := bu.JALR(emu.RegRA, 5, 0x1000, 0)

		var misaligned *emu.MisalignedTargetError
		Expect(err).To(BeAssignableToTypeOf(misaligned))
		Expect(err.(*emu.MisalignedTargetError).Target).To(Equal(uint64(0x2002)))
		Expect(regs.ReadReg(emu.RegRA)).To(Equal(uint64(math.MaxUint64)))
	})
})

var _ = Describe("CSRFile", func() {
	var (
		count uint64
		csr   *emu.CSRFile
	)

	BeforeEach(func() {
		count = 0
		csr = emu.NewCSRFile(func() uint64 { return count })
	})

	It("should read the counters from the retired count", func() {
		count = 17
		Expect(csr.Read(emu.CSRCycle)).To(Equal(uint64(17)))
		Expect(csr.Read(emu.CSRInstret)).To(Equal(uint64(17)))
		Expect(csr.Read(emu.CSRTime)).To(Equal(uint64(17)))
	})

	It("should store machine CSRs", func() {
		Expect(csr.Write(emu.CSRMScratch, 0xabc)).To(Succeed())
		Expect(csr.Read(emu.CSRMScratch)).To(Equal(uint64(0xabc)))

		csr.Reset()
		Expect(csr.Read(emu.CSRMScratch)).To(BeZero())
	})

	It("should reject writes to read-only CSRs", func() {
		Expect(emu.IsReadOnly(emu.CSRCycle)).To(BeTrue())
		Expect(emu.IsReadOnly(emu.CSRMScratch)).To(BeFalse())
		Expect(csr.Write(emu.CSRCycle, 1)).To(MatchError(emu.ErrReadOnlyCSR))
	})

	It("should read mhartid as zero", func() {
		Expect(csr.Read(emu.CSRMHartID)).To(BeZero())
		Expect(emu.CSRName(emu.CSRMEPC)).To(Equal("mepc"))
	})
})
