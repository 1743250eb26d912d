package syscalls

import (
	"log/slog"

	"github.com/sarchlab/rvemu/emu"
)

// Mini syscall numbers.
const (
	MiniExit uint64 = 0 // exit(status)
)

// Mini implements a single syscall, exit, for test programs.
type Mini struct {
	logger *slog.Logger
}

// NewMini creates a Mini handler.
func NewMini(opts ...Option) *Mini {
	o := buildOptions(opts)
	return &Mini{logger: o.logger}
}

// Handle implements emu.SyscallHandler.
func (h *Mini) Handle(regs *emu.RegFile, _ *emu.Memory) emu.SyscallResult {
	num := emu.SyscallNumber(regs)
	if num == MiniExit {
		code := int64(emu.SyscallArg(regs, 0))
		h.logger.Debug("exit", "code", code)
		return emu.Exit(code)
	}
	return unimplemented(h.logger, NameMini, num)
}
