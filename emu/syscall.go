package emu

// Linux error codes used by syscall handlers.
const (
	ENOENT = 2  // No such file or directory
	EIO    = 5  // I/O error
	EBADF  = 9  // Bad file descriptor
	EACCES = 13 // Permission denied
	EFAULT = 14 // Bad address
	EEXIST = 17 // File exists
	EISDIR = 21 // Is a directory
	EINVAL = 22 // Invalid argument
	ESPIPE = 29 // Illegal seek
	ENOSYS = 38 // Function not implemented
)

// SyscallAction tells the run loop what to do after a syscall.
type SyscallAction uint8

// Syscall actions.
const (
	// SyscallContinue resumes execution at the instruction after ECALL.
	SyscallContinue SyscallAction = iota
	// SyscallExit stops the run loop with SyscallResult.ExitCode.
	SyscallExit
	// SyscallUnimplemented stops the run loop with a fault.
	SyscallUnimplemented
)

func (a SyscallAction) String() string {
	switch a {
	case SyscallContinue:
		return "continue"
	case SyscallExit:
		return "exit"
	case SyscallUnimplemented:
		return "unimplemented"
	}
	return "unknown"
}

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	Action SyscallAction

	// ExitCode is the exit status when Action is SyscallExit.
	ExitCode int64

	// Number is the syscall number when Action is SyscallUnimplemented.
	Number uint64
}

// Continue returns a result that resumes execution.
func Continue() SyscallResult {
	return SyscallResult{Action: SyscallContinue}
}

// Exit returns a result that terminates the program with code.
func Exit(code int64) SyscallResult {
	return SyscallResult{Action: SyscallExit, ExitCode: code}
}

// Unimplemented returns a result that reports syscall number as unsupported.
func Unimplemented(number uint64) SyscallResult {
	return SyscallResult{Action: SyscallUnimplemented, Number: number}
}

// SyscallHandler services environment calls.
//
// Handle is invoked once per executed ECALL with the PC still pointing at
// the ECALL. The calling convention is fixed:
//   - Syscall number in a7 (x17)
//   - Arguments in a0-a5 (x10-x15)
//   - Return value in a0
//
// Numbering is entirely the handler's business.
type SyscallHandler interface {
	Handle(regs *RegFile, mem *Memory) SyscallResult
}

// SyscallHandlerFunc adapts a function to the SyscallHandler interface.
type SyscallHandlerFunc func(regs *RegFile, mem *Memory) SyscallResult

// Handle calls f(regs, mem).
func (f SyscallHandlerFunc) Handle(regs *RegFile, mem *Memory) SyscallResult {
	return f(regs, mem)
}

// SyscallNumber returns the syscall number register (a7).
func SyscallNumber(regs *RegFile) uint64 {
	return regs.ReadReg(RegA7)
}

// SyscallArg returns argument i (0-5) of the current syscall.
func SyscallArg(regs *RegFile, i int) uint64 {
	if i < 0 || i > 5 {
		return 0
	}
	return regs.ReadReg(RegA0 + uint8(i))
}

// SetSyscallReturn writes the syscall return value to a0.
func SetSyscallReturn(regs *RegFile, value uint64) {
	regs.WriteReg(RegA0, value)
}

// SetSyscallError sets a0 to -errno (as two's complement).
func SetSyscallError(regs *RegFile, errno int) {
	regs.WriteReg(RegA0, uint64(-int64(errno)))
}
