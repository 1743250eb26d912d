package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/loader"
	"github.com/sarchlab/rvemu/syscalls"
)

var auxNames = map[uint64]string{
	loader.AuxPHDR:       "AT_PHDR",
	loader.AuxPHENT:      "AT_PHENT",
	loader.AuxPHNUM:      "AT_PHNUM",
	loader.AuxPageSize:   "AT_PAGESZ",
	loader.AuxEntryPoint: "AT_ENTRY",
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <program.elf>",
		Short: "Show the entry point and memory layout of an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.info(args[0])
		},
	}
}

func (a *app) info(path string) error {
	logger, err := a.newLogger()
	if err != nil {
		return err
	}

	e, err := emu.NewBuilder().
		AddExtension(emu.AvailableExtensions()...).
		SyscallHandler(syscalls.NewMini()).
		Logger(logger).
		Build()
	if err != nil {
		return err
	}
	if err := e.LoadFile(path); err != nil {
		return err
	}

	fmt.Fprint(a.stdout, layoutTree(path, e.Program(), e).String())
	return nil
}

// layoutTree renders the program header facts and the mapped regions of a
// loaded emulator.
func layoutTree(path string, prog *loader.Program, e *emu.Emulator) treeprint.Tree {
	tree := treeprint.NewWithRoot(path)
	tree.AddMetaNode("entry", fmt.Sprintf("0x%x", prog.EntryPoint))
	tree.AddMetaNode("brk", fmt.Sprintf("0x%x", prog.BreakStart))
	tree.AddMetaNode("sp", fmt.Sprintf("0x%x", e.RegFile().ReadReg(emu.RegSP)))

	regions := tree.AddBranch("regions")
	for _, r := range e.Memory().Regions() {
		regions.AddMetaNode(r.Perm.String(),
			fmt.Sprintf("%-10s 0x%012x-0x%012x %d bytes", r.Name, r.Base, r.End(), r.Size))
	}

	auxv := tree.AddBranch("auxv")
	for _, aux := range prog.Auxv() {
		name, ok := auxNames[aux.Type]
		if !ok {
			name = fmt.Sprintf("AT_%d", aux.Type)
		}
		auxv.AddMetaNode(name, fmt.Sprintf("0x%x", aux.Value))
	}

	return tree
}
