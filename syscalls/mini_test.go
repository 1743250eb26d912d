package syscalls_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/syscalls"
)

var _ = Describe("Mini", func() {
	It("should exit with a0 on syscall 0", func() {
		regs, mem := newGuest()
		res := call(syscalls.NewMini(), regs, mem, syscalls.MiniExit, 7)
		Expect(res).To(Equal(emu.Exit(7)))
	})

	It("should report every other number as unimplemented", func() {
		regs, mem := newGuest()
		res := call(syscalls.NewMini(), regs, mem, 93, 7)
		Expect(res).To(Equal(emu.Unimplemented(93)))
	})
})

var _ = Describe("Minilib", func() {
	var (
		out  *bytes.Buffer
		h    *syscalls.Minilib
		regs *emu.RegFile
		mem  *emu.Memory
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		h = syscalls.NewMinilib(syscalls.Stdio{Stdout: out})
		regs, mem = newGuest()
	})

	It("should exit on syscall 0 and 93", func() {
		Expect(call(h, regs, mem, syscalls.MinilibExit, 3)).To(Equal(emu.Exit(3)))
		Expect(call(h, regs, mem, syscalls.MinilibExitAlt, 4)).To(Equal(emu.Exit(4)))
	})

	It("should print a character", func() {
		res := call(h, regs, mem, syscalls.MinilibPutchar, 'A')
		Expect(res.Action).To(Equal(emu.SyscallContinue))
		Expect(out.String()).To(Equal("A"))
	})

	It("should print a string without a newline", func() {
		putString(mem, dataBase, "hello")
		res := call(h, regs, mem, syscalls.MinilibPuts, dataBase)

		Expect(res.Action).To(Equal(emu.SyscallContinue))
		Expect(out.String()).To(Equal("hello"))
		Expect(regs.ReadReg(emu.RegA0)).To(BeZero())
	})

	It("should return -EFAULT for a bad string pointer", func() {
		res := call(h, regs, mem, syscalls.MinilibPuts, 0x500)

		Expect(res.Action).To(Equal(emu.SyscallContinue))
		Expect(regs.ReadReg(emu.RegA0)).To(Equal(errno(emu.EFAULT)))
		Expect(out.Len()).To(BeZero())
	})

	It("should report unknown numbers as unimplemented", func() {
		Expect(call(h, regs, mem, 64)).To(Equal(emu.Unimplemented(64)))
	})
})

var _ = Describe("Lookup", func() {
	DescribeTable("should build known handlers",
		func(name string) {
			h, err := syscalls.Lookup(name, syscalls.Stdio{})
			Expect(err).NotTo(HaveOccurred())
			Expect(h).NotTo(BeNil())
		},
		Entry("mini", "mini"),
		Entry("minilib", "minilib"),
		Entry("newlib", "newlib"),
		Entry("mixed case", "Newlib"),
	)

	It("should report glibc as unsupported", func() {
		_, err := syscalls.Lookup("glibc", syscalls.Stdio{})
		Expect(err).To(MatchError(syscalls.ErrUnsupportedHandler))
	})

	It("should reject unknown names", func() {
		_, err := syscalls.Lookup("bsd", syscalls.Stdio{})
		Expect(err).To(MatchError(syscalls.ErrUnknownHandler))
		Expect(err.Error()).To(ContainSubstring("mini, minilib, newlib"))
	})
})
