package emu

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/rvemu/icache"
	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/loader"
	"github.com/sarchlab/rvemu/logging"
)

// Configuration errors. All of them wrap ErrConfig.
var (
	ErrConfig                  = errors.New("invalid emulator configuration")
	ErrNoExtensions            = fmt.Errorf("%w: no ISA extensions", ErrConfig)
	ErrDuplicateExtension      = fmt.Errorf("%w: duplicate ISA extension", ErrConfig)
	ErrExtensionUnavailable    = fmt.Errorf("%w: ISA extension not available", ErrConfig)
	ErrNoSyscallHandler        = fmt.Errorf("%w: no syscall handler", ErrConfig)
	ErrMultipleSyscallHandlers = fmt.Errorf("%w: more than one syscall handler", ErrConfig)
	ErrInvalidStackSize        = fmt.Errorf("%w: stack size must be a positive multiple of the page size", ErrConfig)
	ErrInvalidDecodeCache      = fmt.Errorf("%w: invalid decode cache geometry", ErrConfig)
)

// Builder collects the configuration of an Emulator. The zero value is not
// usable; call NewBuilder.
type Builder struct {
	extensions      []insts.ExtensionID
	handlers        []SyscallHandler
	stackSize       uint64
	maxInstructions uint64
	cache           *icache.Config
	logger          *slog.Logger
	trace           bool
	args            []string
	env             []string
	random          io.Reader
}

// NewBuilder returns a builder with an 8MB stack, the default decode cache
// and no instruction limit.
func NewBuilder() *Builder {
	cfg := icache.DefaultConfig()
	return &Builder{
		stackSize: loader.DefaultStackSize,
		cache:     &cfg,
	}
}

// AddExtension appends ISA extensions. The decoder chain tries them in the
// order they were added.
func (b *Builder) AddExtension(ids ...insts.ExtensionID) *Builder {
	b.extensions = append(b.extensions, ids...)
	return b
}

// SyscallHandler sets the handler for environment calls. Exactly one
// handler must be set.
func (b *Builder) SyscallHandler(h SyscallHandler) *Builder {
	b.handlers = append(b.handlers, h)
	return b
}

// StackSize sets the stack size in bytes.
func (b *Builder) StackSize(size uint64) *Builder {
	b.stackSize = size
	return b
}

// MaxInstructions limits the number of executed instructions. Zero means
// no limit.
func (b *Builder) MaxInstructions(n uint64) *Builder {
	b.maxInstructions = n
	return b
}

// DecodeCache sets the decoded-instruction cache geometry.
func (b *Builder) DecodeCache(cfg icache.Config) *Builder {
	b.cache = &cfg
	return b
}

// NoDecodeCache disables the decoded-instruction cache.
func (b *Builder) NoDecodeCache() *Builder {
	b.cache = nil
	return b
}

// Logger sets the logger. The default discards everything.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Trace enables per-instruction trace records.
func (b *Builder) Trace(enabled bool) *Builder {
	b.trace = enabled
	return b
}

// Args sets the program arguments, argv[0] included.
func (b *Builder) Args(args ...string) *Builder {
	b.args = append([]string(nil), args...)
	return b
}

// Env sets the program environment as KEY=VALUE strings.
func (b *Builder) Env(env ...string) *Builder {
	b.env = append([]string(nil), env...)
	return b
}

// RandomSource sets where the 16 AT_RANDOM bytes come from at each load.
// The default is crypto/rand.
func (b *Builder) RandomSource(r io.Reader) *Builder {
	b.random = r
	return b
}

// Build validates the configuration and creates an Emulator in the Built
// state.
func (b *Builder) Build() (*Emulator, error) {
	if len(b.extensions) == 0 {
		return nil, ErrNoExtensions
	}

	seen := make(map[insts.ExtensionID]bool, len(b.extensions))
	exts := make([]*Extension, 0, len(b.extensions))
	for _, id := range b.extensions {
		if seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateExtension, id)
		}
		seen[id] = true

		ext, ok := LookupExtension(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtensionUnavailable, id)
		}
		exts = append(exts, ext)
	}

	switch len(b.handlers) {
	case 0:
		return nil, ErrNoSyscallHandler
	case 1:
		if b.handlers[0] == nil {
			return nil, ErrNoSyscallHandler
		}
	default:
		return nil, ErrMultipleSyscallHandlers
	}

	if b.stackSize == 0 || b.stackSize%PageSize != 0 ||
		b.stackSize > loader.DefaultStackTop {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStackSize, b.stackSize)
	}

	var cache *icache.Cache
	if b.cache != nil {
		c, err := icache.New(*b.cache)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDecodeCache, err)
		}
		cache = c
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	random := b.random
	if random == nil {
		random = rand.Reader
	}

	e := newEmulator(config{
		extensions:      exts,
		handler:         b.handlers[0],
		stackSize:       b.stackSize,
		maxInstructions: b.maxInstructions,
		trace:           b.trace,
		args:            b.args,
		env:             b.env,
		random:          random,
	}, cache, logging.Module(logger, logging.ModuleEmu))
	e.loadLogger = logging.Module(logger, logging.ModuleLoader)

	e.logger.Debug("emulator built",
		"extensions", e.Extensions(),
		"stack_size", b.stackSize,
		"max_instructions", b.maxInstructions,
		"decode_cache", cache != nil)

	return e, nil
}
