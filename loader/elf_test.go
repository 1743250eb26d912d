package loader_test

import (
	"debug/elf"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/loader"
	"github.com/sarchlab/rvemu/loader/elftest"
)

var _ = Describe("ELF Loader", func() {
	// addi a0, x0, 42; ecall
	code := elftest.Words(0x02a00513, 0x00000073)

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
		})

		It("should load a file from disk", func() {
			path := filepath.Join(tempDir, "test.elf")
			Expect(elftest.Code(0x10000, code).WriteFile(path)).To(Succeed())

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0x10000)))
		})

		It("should report a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.elf"))
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(os.ErrNotExist))
			Expect(err.Error()).To(ContainSubstring("failed to open"))
		})
	})

	Describe("LoadBytes", func() {
		Context("with a valid RISC-V executable", func() {
			It("should extract the entry point and segment", func() {
				prog, err := loader.LoadBytes(elftest.Code(0x10000, code).Build())
				Expect(err).NotTo(HaveOccurred())

				Expect(prog.EntryPoint).To(Equal(uint64(0x10000)))
				Expect(prog.Segments).To(HaveLen(1))
				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint64(0x10000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.MemSize).To(Equal(uint64(len(code))))
				Expect(seg.Flags).To(Equal(loader.SegmentFlagRead | loader.SegmentFlagExecute))
				Expect(seg.Flags.String()).To(Equal("r-x"))
			})

			It("should start the break at the next page boundary", func() {
				prog, err := loader.LoadBytes(elftest.Code(0x10000, code).Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.BreakStart).To(Equal(uint64(0x11000)))
			})
		})

		Context("with multiple segments", func() {
			var img *elftest.Image

			BeforeEach(func() {
				img = &elftest.Image{
					Entry: 0x10000,
					Segments: []elftest.Segment{
						{
							Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W,
							Vaddr: 0x20000, Data: []byte{1, 2, 3, 4}, MemSize: 0x2000,
						},
						{
							Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X,
							Vaddr: 0x10000, Data: code,
						},
						{Type: elf.PT_NOTE, Flags: elf.PF_R, Vaddr: 0x30000, Data: []byte{9}},
					},
				}
			})

			It("should return loadable segments sorted by address", func() {
				prog, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(2))
				Expect(prog.Segments[0].VirtAddr).To(Equal(uint64(0x10000)))
				Expect(prog.Segments[1].VirtAddr).To(Equal(uint64(0x20000)))
			})

			It("should keep the BSS size of a data segment", func() {
				prog, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
				data := prog.Segments[1]
				Expect(data.Data).To(Equal([]byte{1, 2, 3, 4}))
				Expect(data.MemSize).To(Equal(uint64(0x2000)))
				Expect(data.Flags.String()).To(Equal("rw-"))
				Expect(prog.BreakStart).To(Equal(uint64(0x22000)))
			})

			It("should skip empty loadable segments", func() {
				img.Segments = append(img.Segments, elftest.Segment{
					Type: elf.PT_LOAD, Flags: elf.PF_R, Vaddr: 0x40000,
				})
				prog, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(2))
			})
		})

		Context("with mapped program headers", func() {
			It("should locate the headers inside the first segment", func() {
				img := &elftest.Image{
					Entry: 0x10000 + elftest.HeadersSize(1),
					Segments: []elftest.Segment{{
						Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X,
						Vaddr: 0x10000, Data: code, Headers: true,
					}},
				}

				prog, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.PHDRAddr).To(Equal(uint64(0x10040)))
				Expect(prog.PHEntSize).To(Equal(uint64(56)))
				Expect(prog.PHNum).To(Equal(uint64(1)))
			})

			It("should prefer an explicit PT_PHDR", func() {
				img := elftest.Code(0x10000, code)
				img.Segments = append(img.Segments, elftest.Segment{
					Type: elf.PT_PHDR, Flags: elf.PF_R, Vaddr: 0x8040, Data: nil,
				})

				prog, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.PHDRAddr).To(Equal(uint64(0x8040)))
				Expect(prog.PHNum).To(Equal(uint64(2)))
			})
		})

		Context("with malformed input", func() {
			It("should reject a non-ELF file", func() {
				_, err := loader.LoadBytes([]byte("not an elf file"))
				Expect(err).To(MatchError(loader.ErrMalformed))
			})

			It("should reject an empty file", func() {
				_, err := loader.LoadBytes(nil)
				Expect(err).To(MatchError(loader.ErrMalformed))
			})

			It("should reject truncated segment data", func() {
				img := elftest.Code(0x10000, code)
				img.Segments[0].FileSize = 0x1000
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrMalformed))
			})

			It("should reject a file size larger than the memory size", func() {
				img := elftest.Code(0x10000, code)
				img.Segments[0].MemSize = 4
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrMalformed))
			})

			It("should reject a file without loadable segments", func() {
				img := &elftest.Image{
					Entry: 0x10000,
					Segments: []elftest.Segment{
						{Type: elf.PT_NOTE, Flags: elf.PF_R, Vaddr: 0x10000, Data: code},
					},
				}
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrMalformed))
				Expect(err.Error()).To(ContainSubstring("no loadable segments"))
			})

			It("should reject an entry point outside executable memory", func() {
				img := elftest.Code(0x10000, code)
				img.Entry = 0x50000
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrMalformed))
			})

			It("should reject an entry point that is not 4-byte aligned", func() {
				img := elftest.Code(0x10000, code)
				img.Entry = 0x10002
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrMalformed))
				Expect(err.Error()).To(ContainSubstring("aligned"))
			})
		})

		Context("with unsupported input", func() {
			It("should reject an x86-64 file", func() {
				img := elftest.Code(0x10000, code)
				img.Machine = elf.EM_X86_64
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrUnsupported))
				Expect(err.Error()).To(ContainSubstring("not a RISC-V"))
			})

			It("should reject a 32-bit file", func() {
				img := &elftest.Image{Class: elf.ELFCLASS32, Entry: 0x10000}
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrUnsupported))
				Expect(err.Error()).To(ContainSubstring("not a 64-bit"))
			})

			It("should reject a big-endian file", func() {
				img := elftest.Code(0x10000, code)
				img.Data = elf.ELFDATA2MSB
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrUnsupported))
			})

			It("should reject a position-independent executable", func() {
				img := elftest.Code(0x10000, code)
				img.Type = elf.ET_DYN
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrUnsupported))
			})
		})

		Context("with conflicting addresses", func() {
			It("should reject overlapping segments", func() {
				img := elftest.Code(0x10000, code)
				img.Segments = append(img.Segments, elftest.Segment{
					Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W,
					Vaddr: 0x10004, Data: []byte{0, 0, 0, 0},
				})
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrAddressConflict))
			})

			It("should accept adjacent segments", func() {
				img := elftest.Code(0x10000, code)
				img.Segments = append(img.Segments, elftest.Segment{
					Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W,
					Vaddr: 0x10008, Data: []byte{0, 0, 0, 0},
				})
				_, err := loader.LoadBytes(img.Build())
				Expect(err).NotTo(HaveOccurred())
			})

			It("should reject a segment beyond the address space", func() {
				img := elftest.Code(0x10000, code)
				img.Segments = append(img.Segments, elftest.Segment{
					Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W,
					Vaddr: loader.MaxAddress - 2, Data: []byte{0, 0, 0, 0},
				})
				_, err := loader.LoadBytes(img.Build())
				Expect(err).To(MatchError(loader.ErrAddressConflict))
			})
		})
	})

	Describe("Auxv", func() {
		It("should describe the entry point and page size", func() {
			prog, err := loader.LoadBytes(elftest.Code(0x10000, code).Build())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Auxv()).To(Equal([]loader.Aux{
				{Type: loader.AuxPageSize, Value: loader.PageSize},
				{Type: loader.AuxEntryPoint, Value: 0x10000},
			}))
		})

		It("should include the program headers when they are mapped", func() {
			img := &elftest.Image{
				Entry: 0x10000 + elftest.HeadersSize(1),
				Segments: []elftest.Segment{{
					Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X,
					Vaddr: 0x10000, Data: code, Headers: true,
				}},
			}
			prog, err := loader.LoadBytes(img.Build())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Auxv()).To(ContainElements(
				loader.Aux{Type: loader.AuxPHDR, Value: 0x10040},
				loader.Aux{Type: loader.AuxPHENT, Value: 56},
				loader.Aux{Type: loader.AuxPHNUM, Value: 1},
			))
		})
	})
})
