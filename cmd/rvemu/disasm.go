package main

import (
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/loader"
)

func newDisasmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <program.elf>",
		Short: "Disassemble the executable segments of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.disasm(args[0])
		},
	}
}

func (a *app) disasm(path string) error {
	prog, err := loader.Load(path)
	if err != nil {
		return err
	}

	for _, seg := range prog.Segments {
		if seg.Flags&loader.SegmentFlagExecute == 0 {
			continue
		}

		fmt.Fprintf(a.stdout, "segment 0x%x (%s):\n", seg.VirtAddr, seg.Flags)
		for off := 0; off+4 <= len(seg.Data); off += 4 {
			word := binary.LittleEndian.Uint32(seg.Data[off:])
			addr := seg.VirtAddr + uint64(off)

			marker := " "
			if addr == prog.EntryPoint {
				marker = ">"
			}
			fmt.Fprintf(a.stdout, "%s %8x:  %08x  %s\n", marker, addr, word, insts.Disassemble(word))
		}
	}
	return nil
}
