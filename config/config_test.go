package config_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/config"
	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/loader/elftest"
	"github.com/sarchlab/rvemu/logging"
	"github.com/sarchlab/rvemu/syscalls"
)

var _ = Describe("RunConfig", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should provide valid defaults", func() {
		c := config.DefaultRunConfig()
		Expect(c.Validate()).To(Succeed())
		Expect(c.ISA).To(Equal("I,Zicsr,Zifencei"))
		Expect(c.Syscall).To(Equal("newlib"))
		Expect(c.StackSizeBytes()).To(Equal(uint64(8 * 1024 * 1024)))
		Expect(c.DecodeCache.Enabled).To(BeTrue())
	})

	It("should round-trip through a file", func() {
		c := config.DefaultRunConfig()
		c.ISA = "I"
		c.MaxInstructions = 1000
		c.DecodeCache.Enabled = false
		c.Trace = true

		path := filepath.Join(dir, "run.json")
		Expect(c.SaveConfig(path)).To(Succeed())

		loaded, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(c))
	})

	It("should keep defaults for fields missing from the file", func() {
		path := filepath.Join(dir, "partial.json")
		Expect(os.WriteFile(path, []byte(`{"syscall": "mini", "decode_cache": {"size": 4096}}`), 0644)).To(Succeed())

		c, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Syscall).To(Equal("mini"))
		Expect(c.ISA).To(Equal("I,Zicsr,Zifencei"))
		Expect(c.DecodeCache.Size).To(Equal(4096))
		Expect(c.DecodeCache.Associativity).To(Equal(4))
		Expect(c.Validate()).To(Succeed())
	})

	It("should report unreadable and malformed files", func() {
		_, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
		Expect(err).To(MatchError(os.ErrNotExist))

		path := filepath.Join(dir, "bad.json")
		Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())
		_, err = config.LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("failed to parse run config")))
	})

	DescribeTable("should reject invalid values",
		func(mutate func(c *config.RunConfig), msg string) {
			c := config.DefaultRunConfig()
			mutate(c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("unknown extension", func(c *config.RunConfig) { c.ISA = "I,Q" }, "isa"),
		Entry("empty isa", func(c *config.RunConfig) { c.ISA = "" }, "isa"),
		Entry("unknown syscall library", func(c *config.RunConfig) { c.Syscall = "glibc" }, "syscall"),
		Entry("zero stack", func(c *config.RunConfig) { c.StackSizeKB = 0 }, "stack_size_kb"),
		Entry("unaligned stack", func(c *config.RunConfig) { c.StackSizeKB = 6 }, "stack_size_kb"),
		Entry("bad cache geometry", func(c *config.RunConfig) { c.DecodeCache.BlockSize = 48 }, "decode_cache"),
		Entry("bad log level", func(c *config.RunConfig) { c.LogLevel = "loud" }, "log_level"),
	)

	It("should ignore the cache geometry when the cache is disabled", func() {
		c := config.DefaultRunConfig()
		c.DecodeCache = config.DecodeCacheConfig{}
		Expect(c.Validate()).To(Succeed())
	})

	It("should clone without sharing state", func() {
		c := config.DefaultRunConfig()
		clone := c.Clone()
		clone.DecodeCache.Size = 1
		clone.ISA = "I"
		Expect(c.DecodeCache.Size).To(Equal(64 * 1024))
		Expect(c.ISA).To(Equal("I,Zicsr,Zifencei"))
	})

	It("should parse the log level", func() {
		c := config.DefaultRunConfig()
		c.LogLevel = "trace"
		level, err := c.Level()
		Expect(err).NotTo(HaveOccurred())
		Expect(level).To(Equal(logging.LevelTrace))
	})

	Describe("NewBuilder", func() {
		It("should build an emulator that runs a program", func() {
			c := config.DefaultRunConfig()
			c.Syscall = "mini"
			c.StackSizeKB = 64

			b, err := c.NewBuilder(syscalls.Stdio{}, nil)
			Expect(err).NotTo(HaveOccurred())
			e, err := b.Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Extensions()).To(Equal([]insts.ExtensionID{insts.ExtI, insts.ExtZicsr, insts.ExtZifencei}))

			img := elftest.Code(0x10000, elftest.Words(
				insts.EncodeI(insts.OpcodeOpImm, emu.RegA0, 0, 0, 4),
				insts.EncodeI(insts.OpcodeOpImm, emu.RegA7, 0, 0, 0),
				insts.WordECALL,
			))
			Expect(e.LoadELF(img.Build())).To(Succeed())
			code, err := e.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(4)))

			_, ok := e.DecodeCacheStats()
			Expect(ok).To(BeTrue())
		})

		It("should honor the instruction limit and disabled cache", func() {
			c := config.DefaultRunConfig()
			c.ISA = "I"
			c.StackSizeKB = 64
			c.MaxInstructions = 3
			c.DecodeCache.Enabled = false

			var logs bytes.Buffer
			b, err := c.NewBuilder(syscalls.Stdio{}, logging.New(&logs, logging.LevelDebug))
			Expect(err).NotTo(HaveOccurred())
			e, err := b.Build()
			Expect(err).NotTo(HaveOccurred())

			img := elftest.Code(0x10000, elftest.Words(insts.EncodeJ(insts.OpcodeJAL, 0, 0)))
			Expect(e.LoadELF(img.Build())).To(Succeed())
			_, err = e.Run()

			var fault *emu.Fault
			Expect(err).To(BeAssignableToTypeOf(fault))
			Expect(err.(*emu.Fault).Kind).To(Equal(emu.FaultInstructionLimit))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))

			_, ok := e.DecodeCacheStats()
			Expect(ok).To(BeFalse())
			Expect(logs.String()).To(ContainSubstring("module=emu"))
		})

		It("should refuse an invalid configuration", func() {
			c := config.DefaultRunConfig()
			c.Syscall = "nope"
			_, err := c.NewBuilder(syscalls.Stdio{}, nil)
			Expect(err).To(HaveOccurred())
		})
	})
})
