package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvemu/config"
	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/logging"
	"github.com/sarchlab/rvemu/syscalls"
)

type runOptions struct {
	configPath      string
	isa             string
	syscall         string
	stackSizeKB     uint64
	maxInstructions uint64
	trace           bool
	cpuProfile      string
	memProfile      string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	defaults := config.DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "run <program.elf> [-- args...]",
		Short: "Run a RISC-V 64 executable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVar(&opts.configPath, "config", "", "path to run configuration JSON file")
	flags.StringVar(&opts.isa, "isa", defaults.ISA, "comma separated ISA extensions")
	flags.StringVar(&opts.syscall, "syscall", defaults.Syscall,
		"syscall library: mini, minilib, newlib")
	flags.Uint64Var(&opts.stackSizeKB, "stack-size", defaults.StackSizeKB, "stack size in KiB")
	flags.Uint64Var(&opts.maxInstructions, "max-instructions", 0,
		"stop after this many instructions (0 means no limit)")
	flags.BoolVar(&opts.trace, "trace", false, "log every executed instruction")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile to file")
	flags.StringVar(&opts.memProfile, "memprofile", "", "write a memory profile to file")

	return cmd
}

// runConfig merges the config file with the flags set on the command line.
func (a *app) runConfig(cmd *cobra.Command, opts *runOptions) (*config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("isa") {
		cfg.ISA = opts.isa
	}
	if flags.Changed("syscall") {
		cfg.Syscall = opts.syscall
	}
	if flags.Changed("stack-size") {
		cfg.StackSizeKB = opts.stackSizeKB
	}
	if flags.Changed("max-instructions") {
		cfg.MaxInstructions = opts.maxInstructions
	}
	if flags.Changed("trace") {
		cfg.Trace = opts.trace
	}

	switch {
	case a.logLevel != "":
		cfg.LogLevel = a.logLevel
	case a.verbose:
		cfg.LogLevel = "debug"
	}
	if cfg.Trace {
		cfg.LogLevel = "trace"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) run(cmd *cobra.Command, opts *runOptions, args []string) error {
	cfg, err := a.runConfig(cmd, opts)
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := logging.New(a.stderr, level)

	programPath := args[0]
	guestArgs := args[1:]
	if len(guestArgs) > 0 && guestArgs[0] == "--" {
		guestArgs = guestArgs[1:]
	}

	stdio := syscalls.Stdio{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr}
	builder, err := cfg.NewBuilder(stdio, logger)
	if err != nil {
		return err
	}

	emulator, err := builder.
		Args(append([]string{programPath}, guestArgs...)...).
		Build()
	if err != nil {
		return err
	}

	if err := emulator.LoadFile(programPath); err != nil {
		return fmt.Errorf("loading %s: %w", programPath, err)
	}

	logging.Module(logger, logging.ModuleCLI).Debug("running",
		"program", programPath,
		"isa", cfg.ISA,
		"syscall", cfg.Syscall)

	if opts.cpuProfile != "" {
		stop, err := startCPUProfile(opts.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	start := time.Now()
	exitCode, err := emulator.Run()
	elapsed := time.Since(start)

	if opts.memProfile != "" {
		if perr := writeHeapProfile(opts.memProfile); perr != nil {
			return perr
		}
	}

	if a.verbose {
		a.printStats(emulator, elapsed)
	}

	var fault *emu.Fault
	if errors.As(err, &fault) {
		a.printFault(emulator, fault)
		return &exitError{code: 1}
	}
	if err != nil {
		return err
	}

	if code := int(exitCode & 0xff); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func (a *app) printStats(e *emu.Emulator, elapsed time.Duration) {
	count := e.InstructionCount()
	fmt.Fprintf(a.stderr, "Instructions executed: %d\n", count)
	fmt.Fprintf(a.stderr, "Elapsed time: %v\n", elapsed)
	if count > 0 && elapsed > 0 {
		fmt.Fprintf(a.stderr, "Instructions/second: %.0f\n", float64(count)/elapsed.Seconds())
	}
	if stats, ok := e.DecodeCacheStats(); ok {
		fmt.Fprintf(a.stderr, "Decode cache: %d hits, %d misses, %d flushes\n",
			stats.Hits, stats.Misses, stats.Flushes)
	}
}

// printFault writes a report of the fault and the register state.
func (a *app) printFault(e *emu.Emulator, f *emu.Fault) {
	w := a.stderr
	fmt.Fprintf(w, "fault: %v\n", f)
	fmt.Fprintf(w, "  pc:    0x%016x\n", f.PC)
	if f.Inst != nil {
		fmt.Fprintf(w, "  inst:  %s\n", insts.DisassembleInstruction(f.Inst))
	}
	if f.Kind == emu.FaultMemory {
		fmt.Fprintf(w, "  addr:  0x%016x (%s)\n", f.Addr, f.Access)
	}
	fmt.Fprintf(w, "  after: %d instructions\n", e.InstructionCount())
	writeRegisters(w, e.RegFile())
}

func writeRegisters(w io.Writer, regs *emu.RegFile) {
	for i := uint8(0); i < 32; i++ {
		fmt.Fprintf(w, "  %-4s 0x%016x", emu.RegName(i), regs.ReadReg(i))
		if i%4 == 3 {
			fmt.Fprintln(w)
		}
	}
}

// newLogger is used by the commands that do not take a run configuration.
func (a *app) newLogger() (*slog.Logger, error) {
	name := a.logLevel
	if name == "" && a.verbose {
		name = "debug"
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.Module(logging.New(a.stderr, level), logging.ModuleCLI), nil
}
