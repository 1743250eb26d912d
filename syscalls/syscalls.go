// Package syscalls provides syscall handlers for the emulator.
//
// Each handler owns its numbering: Mini and Minilib implement tiny test
// ABIs, Newlib implements the Linux RISC-V numbers used by newlib and
// libgloss.
package syscalls

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/logging"
)

// Lookup errors.
var (
	// ErrUnknownHandler is returned for names no handler is known by.
	ErrUnknownHandler = errors.New("unknown syscall handler")
	// ErrUnsupportedHandler is returned for known ABIs that are not
	// implemented.
	ErrUnsupportedHandler = errors.New("unsupported syscall handler")
)

// Handler names accepted by Lookup.
const (
	NameMini    = "mini"
	NameMinilib = "minilib"
	NameNewlib  = "newlib"
	NameGlibc   = "glibc"
)

// Names lists the handlers Lookup can build.
func Names() []string {
	return []string{NameMini, NameMinilib, NameNewlib}
}

type options struct {
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a handler.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the time source of the clock syscalls.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: logging.Discard(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Module(o.logger, logging.ModuleSyscalls)
	return o
}

// Lookup builds the handler with the given name.
func Lookup(name string, stdio Stdio, opts ...Option) (emu.SyscallHandler, error) {
	switch strings.ToLower(name) {
	case NameMini:
		return NewMini(opts...), nil
	case NameMinilib:
		return NewMinilib(stdio, opts...), nil
	case NameNewlib:
		return NewNewlib(stdio, opts...), nil
	case NameGlibc:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHandler, name)
	}
	return nil, fmt.Errorf("%w: %q (available: %s)",
		ErrUnknownHandler, name, strings.Join(Names(), ", "))
}

func unimplemented(logger *slog.Logger, abi string, number uint64) emu.SyscallResult {
	logger.Debug("unimplemented syscall", "abi", abi, "number", number)
	return emu.Unimplemented(number)
}
