package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/insts"
)

var _ = Describe("Extensions", func() {
	It("should parse names case-insensitively", func() {
		id, err := insts.ParseExtension("zicsr")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(insts.ExtZicsr))
		Expect(id.String()).To(Equal("Zicsr"))
	})

	It("should reject unknown names", func() {
		_, err := insts.ParseExtension("Zbb")
		Expect(err).To(MatchError(ContainSubstring("Zbb")))
	})

	It("should parse comma and underscore separated lists", func() {
		ids, err := insts.ParseExtensions("I, M_Zifencei")
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]insts.ExtensionID{insts.ExtI, insts.ExtM, insts.ExtZifencei}))
	})

	It("should reject an empty list", func() {
		_, err := insts.ParseExtensions(" , ")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Disassemble", func() {
	It("should render known words in GNU syntax", func() {
		Expect(insts.Disassemble(0x00550513)).To(ContainSubstring("addi"))
		Expect(insts.Disassemble(0x00000073)).To(ContainSubstring("ecall"))
	})

	It("should render unknown words as data", func() {
		Expect(insts.Disassemble(0xffffffff)).To(Equal(".word 0xffffffff"))
	})

	It("should render decoded instructions", func() {
		inst, ok := insts.NewRV64IDecoder().Decode(0x00c58533, 0)
		Expect(ok).To(BeTrue())
		Expect(insts.DisassembleInstruction(inst)).To(ContainSubstring("add"))
		Expect(inst.String()).To(Equal("add x10, x11, x12"))
	})
})
