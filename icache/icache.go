// Package icache caches decoded instructions by fetch address using Akita
// cache components.
//
// Each cache block covers BlockSize bytes of guest code and holds one slot
// per 4-byte instruction. Tags and replacement are managed by an Akita
// directory with an LRU victim finder.
package icache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rvemu/insts"
)

// Config holds cache geometry.
type Config struct {
	// Size in bytes of guest code covered by the cache.
	Size int `json:"size"`
	// Associativity (number of ways).
	Associativity int `json:"associativity"`
	// BlockSize in bytes of guest code per block.
	BlockSize int `json:"block_size"`
}

// DefaultConfig returns a 64KB, 4-way cache with 64B blocks.
func DefaultConfig() Config {
	return Config{
		Size:          64 * 1024,
		Associativity: 4,
		BlockSize:     64,
	}
}

// Validate checks that the geometry describes a realizable cache.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("decode cache size, associativity and block size must be > 0")
	}
	if c.BlockSize%4 != 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("decode cache block size %d must be a power of two multiple of 4", c.BlockSize)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("decode cache size %d must be a multiple of associativity*block size", c.Size)
	}
	return nil
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Fills         uint64
	Evictions     uint64
	Invalidations uint64
	Flushes       uint64
}

// Cache is a set-associative decoded-instruction cache.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Decoded instructions - indexed by (setID * associativity + wayID),
	// one slot per instruction word in the block
	slots [][]*insts.Instruction

	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	slots := make([][]*insts.Instruction, totalBlocks)
	for i := range slots {
		slots[i] = make([]*insts.Instruction, config.BlockSize/4)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		slots: slots,
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr &^ uint64(c.config.BlockSize-1)
}

func (c *Cache) slotIndex(addr uint64) int {
	return int(addr&uint64(c.config.BlockSize-1)) / 4
}

// blockIndex computes the index into slots for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Lookup returns the cached instruction decoded at pc.
func (c *Cache) Lookup(pc uint64) (*insts.Instruction, bool) {
	c.stats.Lookups++

	block := c.directory.Lookup(0, c.blockAddr(pc))
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return nil, false
	}

	inst := c.slots[c.blockIndex(block)][c.slotIndex(pc)]
	if inst == nil {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block) // Update LRU
	return inst, true
}

// Fill stores the instruction decoded at pc, allocating a block on miss.
func (c *Cache) Fill(pc uint64, inst *insts.Instruction) {
	blockAddr := c.blockAddr(pc)

	block := c.directory.Lookup(0, blockAddr)
	if block == nil || !block.IsValid {
		block = c.directory.FindVictim(blockAddr)
		if block == nil {
			return
		}
		if block.IsValid {
			c.stats.Evictions++
		}

		slots := c.slots[c.blockIndex(block)]
		for i := range slots {
			slots[i] = nil
		}

		block.Tag = blockAddr
		block.IsValid = true
		block.IsDirty = false
	}

	c.slots[c.blockIndex(block)][c.slotIndex(pc)] = inst
	c.stats.Fills++
	c.directory.Visit(block)
}

// Invalidate drops every instruction cached in [addr, addr+size).
func (c *Cache) Invalidate(addr, size uint64) {
	if size == 0 {
		return
	}

	bs := uint64(c.config.BlockSize)
	end := addr + size
	for blockAddr := c.blockAddr(addr); blockAddr < end; blockAddr += bs {
		block := c.directory.Lookup(0, blockAddr)
		if block != nil && block.IsValid {
			block.IsValid = false
			c.stats.Invalidations++
		}
		if blockAddr+bs < blockAddr {
			break
		}
	}
}

// Flush invalidates every block.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
			block.IsDirty = false
		}
	}
	c.stats.Flushes++
}

// Reset invalidates all blocks and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
