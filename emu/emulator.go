package emu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/rvemu/icache"
	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/loader"
	"github.com/sarchlab/rvemu/logging"
)

// Lifecycle errors.
var (
	// ErrNotLoaded is returned when stepping an emulator with no program.
	ErrNotLoaded = errors.New("no program loaded")
	// ErrTerminated is returned when using an emulator whose program has
	// exited or faulted.
	ErrTerminated = errors.New("program has terminated")
	// ErrRunning is returned when loading into an emulator that has
	// already started executing.
	ErrRunning = errors.New("program is running")
)

// State is the lifecycle state of an Emulator.
type State uint8

// Emulator states. Configuration happens on the Builder, before Built.
const (
	StateBuilt State = iota
	StateLoaded
	StateRunning
	StateExited
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// StepStatus says whether execution can continue after a step.
type StepStatus uint8

// Step statuses.
const (
	StepContinue StepStatus = iota
	StepExited
	StepFaulted
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	Status StepStatus

	// ExitCode is the exit status if Status is StepExited.
	ExitCode int64

	// Fault is set if Status is StepFaulted.
	Fault *Fault
}

type config struct {
	extensions      []*Extension
	handler         SyscallHandler
	stackSize       uint64
	maxInstructions uint64
	trace           bool
	args            []string
	env             []string
	random          io.Reader
}

// Emulator executes RISC-V 64 user programs functionally.
type Emulator struct {
	cfg config

	regFile *RegFile
	memory  *Memory
	csr     *CSRFile
	hart    *Hart

	chain     *insts.Chain
	executors map[insts.Op]ExecFunc
	cache     *icache.Cache

	logger     *slog.Logger
	loadLogger *slog.Logger

	state            State
	program          *loader.Program
	instructionCount uint64
	exitCode         int64
	fault            *Fault
}

func newEmulator(cfg config, cache *icache.Cache, logger *slog.Logger) *Emulator {
	e := &Emulator{
		cfg:        cfg,
		regFile:    &RegFile{},
		memory:     NewMemory(),
		chain:      insts.NewChain(),
		executors:  make(map[insts.Op]ExecFunc),
		cache:      cache,
		logger:     logger,
		loadLogger: logger,
		state:      StateBuilt,
	}
	e.csr = NewCSRFile(func() uint64 { return e.instructionCount })

	for _, ext := range cfg.extensions {
		e.chain.Add(ext.Decoder)
		for op, fn := range ext.Executors {
			if _, taken := e.executors[op]; !taken {
				e.executors[op] = fn
			}
		}
	}

	e.attachMemory(e.memory)
	return e
}

// attachMemory wires the execution units and the decode cache to mem.
func (e *Emulator) attachMemory(mem *Memory) {
	e.memory = mem
	e.hart = NewHart(e.regFile, mem, e.csr)
	e.hart.FenceI = e.flushDecodeCache
	mem.SetExecWriteHook(e.invalidateDecodeCache)
}

func (e *Emulator) flushDecodeCache() {
	if e.cache != nil {
		e.cache.Flush()
	}
}

func (e *Emulator) invalidateDecodeCache(addr, size uint64) {
	if e.cache != nil {
		e.cache.Invalidate(addr, size)
	}
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// CSR returns the emulator's control and status registers.
func (e *Emulator) CSR() *CSRFile {
	return e.csr
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// State returns the lifecycle state.
func (e *Emulator) State() State {
	return e.state
}

// Extensions returns the enabled extensions in decode order.
func (e *Emulator) Extensions() []insts.ExtensionID {
	return e.chain.Extensions()
}

// Program returns the loaded program, or nil.
func (e *Emulator) Program() *loader.Program {
	return e.program
}

// ExitCode returns the exit status once the program has exited.
func (e *Emulator) ExitCode() int64 {
	return e.exitCode
}

// Fault returns the fault that stopped the program, or nil.
func (e *Emulator) Fault() *Fault {
	return e.fault
}

// DecodeCacheStats returns the decode cache statistics. ok is false when
// the cache is disabled.
func (e *Emulator) DecodeCacheStats() (stats icache.Statistics, ok bool) {
	if e.cache == nil {
		return icache.Statistics{}, false
	}
	return e.cache.Stats(), true
}

// Run executes instructions until the program exits or faults. It returns
// the exit code, or a *Fault.
func (e *Emulator) Run() (int64, error) {
	for {
		res, err := e.Step()
		if err != nil {
			return 0, err
		}

		switch res.Status {
		case StepExited:
			return res.ExitCode, nil
		case StepFaulted:
			return 0, res.Fault
		}
	}
}

// Step executes a single instruction.
func (e *Emulator) Step() (StepResult, error) {
	switch e.state {
	case StateBuilt:
		return StepResult{}, ErrNotLoaded
	case StateExited, StateFaulted:
		return StepResult{}, ErrTerminated
	}

	e.state = StateRunning
	res := e.step()

	switch res.Status {
	case StepExited:
		e.state = StateExited
		e.exitCode = res.ExitCode
		e.logger.Debug("program exited",
			"code", res.ExitCode,
			"instructions", e.instructionCount)
	case StepFaulted:
		e.state = StateFaulted
		e.fault = res.Fault
		e.logger.Warn("program faulted",
			"kind", res.Fault.Kind.String(),
			"pc", fmt.Sprintf("0x%x", res.Fault.PC),
			"err", res.Fault.Error())
	}

	return res, nil
}

func faulted(f *Fault) StepResult {
	return StepResult{Status: StepFaulted, Fault: f}
}

func (e *Emulator) step() StepResult {
	pc := e.regFile.PC

	if e.cfg.maxInstructions > 0 && e.instructionCount >= e.cfg.maxInstructions {
		return faulted(&Fault{Kind: FaultInstructionLimit, PC: pc})
	}

	// 1. Fetch and decode, through the decode cache when enabled
	inst, fault := e.fetch(pc)
	if fault != nil {
		return faulted(fault)
	}

	if e.cfg.trace {
		logging.Trace(e.logger, "exec",
			"pc", fmt.Sprintf("0x%x", pc),
			"word", fmt.Sprintf("0x%08x", inst.Raw),
			"inst", insts.DisassembleInstruction(inst))
	}

	// 2. Execute
	exec, ok := e.executors[inst.Op]
	if !ok {
		return faulted(&Fault{
			Kind: FaultIllegal, PC: pc, Word: inst.Raw, Inst: inst,
			Err: fmt.Errorf("%w: no executor for %s", ErrIllegalInstruction, inst.Op),
		})
	}

	outcome, err := exec(e.hart, inst)
	if err != nil {
		return faulted(executeFault(err, pc, inst))
	}

	// 3. Commit the PC
	switch outcome.Kind {
	case OutcomeNext:
		e.regFile.PC = pc + 4
	case OutcomeJump:
		e.regFile.PC = outcome.Target
	case OutcomeTrap:
		res, done := e.trap(outcome.Trap, pc, inst)
		if done {
			return res
		}
	}

	e.instructionCount++
	return StepResult{Status: StepContinue}
}

func (e *Emulator) fetch(pc uint64) (*insts.Instruction, *Fault) {
	// The decode cache indexes words, so a misaligned pc would alias.
	if pc&3 != 0 {
		return nil, &Fault{Kind: FaultMemory, PC: pc, Addr: pc, Access: AccessExec,
			Err: &MemoryFault{Addr: pc, Size: 4, Access: AccessExec, Reason: ErrMisaligned}}
	}

	if e.cache != nil {
		if inst, ok := e.cache.Lookup(pc); ok {
			return inst, nil
		}
	}

	word, err := e.memory.Fetch32(pc)
	if err != nil {
		return nil, &Fault{Kind: FaultMemory, PC: pc, Addr: pc, Access: AccessExec, Err: err}
	}

	inst, err := e.chain.Decode(word, pc)
	if err != nil {
		return nil, &Fault{Kind: FaultDecode, PC: pc, Word: word, Err: err}
	}

	if e.cache != nil {
		e.cache.Fill(pc, inst)
	}
	return inst, nil
}

// trap handles ECALL and EBREAK. done is true when the step ends with res.
func (e *Emulator) trap(cause TrapCause, pc uint64, inst *insts.Instruction) (res StepResult, done bool) {
	if cause == TrapEbreak {
		return faulted(&Fault{Kind: FaultBreakpoint, PC: pc, Word: inst.Raw, Inst: inst}), true
	}

	result := e.cfg.handler.Handle(e.regFile, e.memory)
	switch result.Action {
	case SyscallContinue:
		e.regFile.PC = pc + 4
		return StepResult{}, false
	case SyscallExit:
		e.instructionCount++
		return StepResult{Status: StepExited, ExitCode: result.ExitCode}, true
	default:
		return faulted(&Fault{
			Kind: FaultSyscallUnimplemented, PC: pc, Word: inst.Raw, Inst: inst,
			Syscall: result.Number,
		}), true
	}
}

// executeFault classifies an executor error.
func executeFault(err error, pc uint64, inst *insts.Instruction) *Fault {
	f := &Fault{PC: pc, Word: inst.Raw, Inst: inst, Err: err}

	var memFault *MemoryFault
	var targetErr *MisalignedTargetError
	switch {
	case errors.As(err, &memFault):
		f.Kind = FaultMemory
		f.Addr = memFault.Addr
		f.Access = memFault.Access
	case errors.As(err, &targetErr):
		f.Kind = FaultMisalignedTarget
		f.Addr = targetErr.Target
	default:
		f.Kind = FaultIllegal
	}
	return f
}
