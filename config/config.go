// Package config holds the run configuration of the emulator, loadable from
// a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/sarchlab/rvemu/emu"
	"github.com/sarchlab/rvemu/icache"
	"github.com/sarchlab/rvemu/insts"
	"github.com/sarchlab/rvemu/logging"
	"github.com/sarchlab/rvemu/syscalls"
)

// DecodeCacheConfig configures the decoded-instruction cache.
type DecodeCacheConfig struct {
	// Enabled turns the cache on. Default: true.
	Enabled bool `json:"enabled"`

	// Size is the number of bytes of guest code covered. Default: 64KB.
	Size int `json:"size"`

	// Associativity is the number of ways. Default: 4.
	Associativity int `json:"associativity"`

	// BlockSize is the number of bytes of guest code per block. Default: 64.
	BlockSize int `json:"block_size"`
}

// Geometry returns the cache geometry.
func (d DecodeCacheConfig) Geometry() icache.Config {
	return icache.Config{
		Size:          d.Size,
		Associativity: d.Associativity,
		BlockSize:     d.BlockSize,
	}
}

// RunConfig holds the settings used to build and run an emulator.
type RunConfig struct {
	// ISA is the comma separated extension list. Default: "I,Zicsr,Zifencei".
	ISA string `json:"isa"`

	// Syscall names the syscall library. Default: "newlib".
	Syscall string `json:"syscall"`

	// StackSizeKB is the guest stack size in KiB. Default: 8192.
	StackSizeKB uint64 `json:"stack_size_kb"`

	// MaxInstructions stops the program after this many retired
	// instructions. Zero means no limit.
	MaxInstructions uint64 `json:"max_instructions"`

	DecodeCache DecodeCacheConfig `json:"decode_cache"`

	// LogLevel is one of trace, debug, info, warn, error. Default: "info".
	LogLevel string `json:"log_level"`

	// Trace logs every executed instruction at trace level.
	Trace bool `json:"trace"`
}

// DefaultRunConfig returns the default configuration.
func DefaultRunConfig() *RunConfig {
	cache := icache.DefaultConfig()
	return &RunConfig{
		ISA:         "I,Zicsr,Zifencei",
		Syscall:     syscalls.NameNewlib,
		StackSizeKB: 8192,
		DecodeCache: DecodeCacheConfig{
			Enabled:       true,
			Size:          cache.Size,
			Associativity: cache.Associativity,
			BlockSize:     cache.BlockSize,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads a RunConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file: %w", err)
	}

	config := DefaultRunConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a RunConfig to a JSON file.
func (c *RunConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run config file: %w", err)
	}

	return nil
}

// Validate checks that every field holds a usable value.
func (c *RunConfig) Validate() error {
	if _, err := insts.ParseExtensions(c.ISA); err != nil {
		return fmt.Errorf("isa: %w", err)
	}
	if !slices.Contains(syscalls.Names(), strings.ToLower(c.Syscall)) {
		return fmt.Errorf("syscall must be one of %s", strings.Join(syscalls.Names(), ", "))
	}
	if c.StackSizeKB == 0 {
		return fmt.Errorf("stack_size_kb must be > 0")
	}
	if c.StackSizeBytes()%emu.PageSize != 0 {
		return fmt.Errorf("stack_size_kb must be a multiple of %d", emu.PageSize/1024)
	}
	if c.DecodeCache.Enabled {
		if err := c.DecodeCache.Geometry().Validate(); err != nil {
			return fmt.Errorf("decode_cache: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Clone returns a copy of the RunConfig.
func (c *RunConfig) Clone() *RunConfig {
	clone := *c
	return &clone
}

// StackSizeBytes returns the stack size in bytes.
func (c *RunConfig) StackSizeBytes() uint64 {
	return c.StackSizeKB * 1024
}

// Level returns the parsed log level.
func (c *RunConfig) Level() (slog.Level, error) {
	return logging.ParseLevel(c.LogLevel)
}

// NewBuilder validates the configuration and returns an emulator builder
// set up from it. The syscall library is bound to stdio. Program arguments
// and environment are left to the caller.
func (c *RunConfig) NewBuilder(stdio syscalls.Stdio, logger *slog.Logger) (*emu.Builder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	exts, err := insts.ParseExtensions(c.ISA)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.Discard()
	}

	handler, err := syscalls.Lookup(c.Syscall, stdio, syscalls.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	b := emu.NewBuilder().
		AddExtension(exts...).
		SyscallHandler(handler).
		StackSize(c.StackSizeBytes()).
		MaxInstructions(c.MaxInstructions).
		Logger(logger).
		Trace(c.Trace)

	if c.DecodeCache.Enabled {
		b.DecodeCache(c.DecodeCache.Geometry())
	} else {
		b.NoDecodeCache()
	}

	return b, nil
}
