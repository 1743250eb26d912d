package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sarchlab/rvemu/loader"
)

// MaxAddress is the exclusive upper bound of the guest address space.
const MaxAddress = loader.MaxAddress

// PageSize is the guest page size used for the stack and the program break.
const PageSize = loader.PageSize

// Memory errors.
var (
	ErrUnmapped   = errors.New("address not mapped")
	ErrPermission = errors.New("access not permitted")
	ErrMisaligned = errors.New("misaligned access")
	ErrOverlap    = errors.New("region overlaps an existing mapping")
	ErrOutOfRange = errors.New("region outside the guest address space")
)

// Perm is a set of region access permissions.
type Perm uint8

// Region permissions.
const (
	PermRead  Perm = 1 << 0
	PermWrite Perm = 1 << 1
	PermExec  Perm = 1 << 2
)

// String renders the permissions as "rwx" with dashes for missing bits.
func (p Perm) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit Perm
		c   byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExec, 'x'}} {
		if p&f.bit != 0 {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Access is the kind of a memory access.
type Access uint8

// Access kinds.
const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExec:
		return "execute"
	}
	return "unknown"
}

func (a Access) perm() Perm {
	switch a {
	case AccessWrite:
		return PermWrite
	case AccessExec:
		return PermExec
	}
	return PermRead
}

// MemoryFault describes a rejected guest memory access.
type MemoryFault struct {
	Addr   uint64
	Size   uint64
	Access Access
	Reason error // ErrUnmapped, ErrPermission or ErrMisaligned
}

// Error implements error.
func (f *MemoryFault) Error() string {
	return fmt.Sprintf("%s of %d bytes at 0x%x: %v", f.Access, f.Size, f.Addr, f.Reason)
}

// Unwrap returns the fault reason.
func (f *MemoryFault) Unwrap() error {
	return f.Reason
}

// Region is a contiguous mapped range of guest memory.
type Region struct {
	Name string
	Base uint64
	Size uint64
	Perm Perm

	data []byte
}

// End returns the exclusive end address of the region.
func (r *Region) End() uint64 {
	return r.Base + r.Size
}

func (r *Region) contains(addr, size uint64) bool {
	return addr >= r.Base && size <= r.Size && addr-r.Base <= r.Size-size
}

// Memory is the guest address space: a sorted table of non-overlapping
// regions. Every access is checked against the region bounds and
// permissions.
type Memory struct {
	regions []*Region
	last    *Region

	heap     *Region
	brkStart uint64
	brk      uint64
	brkLimit uint64

	execWriteHook func(addr, size uint64)
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{}
}

// Map adds a zero-filled region. The region must lie below MaxAddress and
// must not overlap any existing region.
func (m *Memory) Map(name string, base, size uint64, perm Perm) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrOutOfRange, name)
	}
	if base >= MaxAddress || size > MaxAddress-base {
		return nil, fmt.Errorf("%w: %s [0x%x, +0x%x)", ErrOutOfRange, name, base, size)
	}

	idx := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].Base >= base
	})
	if idx > 0 && m.regions[idx-1].End() > base {
		prev := m.regions[idx-1]
		return nil, fmt.Errorf("%w: %s [0x%x, 0x%x) and %s [0x%x, 0x%x)",
			ErrOverlap, name, base, base+size, prev.Name, prev.Base, prev.End())
	}
	if idx < len(m.regions) && m.regions[idx].Base < base+size {
		next := m.regions[idx]
		return nil, fmt.Errorf("%w: %s [0x%x, 0x%x) and %s [0x%x, 0x%x)",
			ErrOverlap, name, base, base+size, next.Name, next.Base, next.End())
	}

	r := &Region{Name: name, Base: base, Size: size, Perm: perm, data: make([]byte, size)}
	m.regions = append(m.regions, nil)
	copy(m.regions[idx+1:], m.regions[idx:])
	m.regions[idx] = r

	return r, nil
}

// Regions returns a snapshot of the mapped regions in address order.
func (m *Memory) Regions() []Region {
	out := make([]Region, len(m.regions))
	for i, r := range m.regions {
		out[i] = Region{Name: r.Name, Base: r.Base, Size: r.Size, Perm: r.Perm}
	}
	return out
}

// SetExecWriteHook registers a function called after every successful write
// into an executable region.
func (m *Memory) SetExecWriteHook(hook func(addr, size uint64)) {
	m.execWriteHook = hook
}

// find returns the region containing [addr, addr+size).
func (m *Memory) find(addr, size uint64) *Region {
	if m.last != nil && m.last.contains(addr, size) {
		return m.last
	}

	idx := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].End() > addr
	})
	if idx == len(m.regions) || !m.regions[idx].contains(addr, size) {
		return nil
	}

	m.last = m.regions[idx]
	return m.last
}

// slice returns the backing bytes of a checked access.
func (m *Memory) slice(addr, size uint64, access Access) ([]byte, error) {
	r := m.find(addr, size)
	if r == nil {
		return nil, &MemoryFault{Addr: addr, Size: size, Access: access, Reason: ErrUnmapped}
	}
	if r.Perm&access.perm() == 0 {
		return nil, &MemoryFault{Addr: addr, Size: size, Access: access, Reason: ErrPermission}
	}

	off := addr - r.Base
	return r.data[off : off+size], nil
}

func (m *Memory) written(addr, size uint64) {
	if m.execWriteHook == nil {
		return
	}
	if r := m.find(addr, size); r != nil && r.Perm&PermExec != 0 {
		m.execWriteHook(addr, size)
	}
}

// Preload copies data into mapped memory without checking permissions.
// It is used to populate read-only and executable regions at load time.
func (m *Memory) Preload(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	r := m.find(addr, uint64(len(data)))
	if r == nil {
		return &MemoryFault{Addr: addr, Size: uint64(len(data)), Access: AccessWrite, Reason: ErrUnmapped}
	}
	copy(r.data[addr-r.Base:], data)
	return nil
}

// Fetch32 reads an instruction word from an executable region. The
// address must be 4-byte aligned.
func (m *Memory) Fetch32(addr uint64) (uint32, error) {
	if addr&3 != 0 {
		return 0, &MemoryFault{Addr: addr, Size: 4, Access: AccessExec, Reason: ErrMisaligned}
	}
	b, err := m.slice(addr, 4, AccessExec)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Read8 reads a byte from memory.
func (m *Memory) Read8(addr uint64) (uint8, error) {
	b, err := m.slice(addr, 1, AccessRead)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Read16 reads a 16-bit value from memory (little-endian).
func (m *Memory) Read16(addr uint64) (uint16, error) {
	b, err := m.slice(addr, 2, AccessRead)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Read32 reads a 32-bit value from memory (little-endian).
func (m *Memory) Read32(addr uint64) (uint32, error) {
	b, err := m.slice(addr, 4, AccessRead)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Read64 reads a 64-bit value from memory (little-endian).
func (m *Memory) Read64(addr uint64) (uint64, error) {
	b, err := m.slice(addr, 8, AccessRead)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Write8 writes a byte to memory.
func (m *Memory) Write8(addr uint64, value uint8) error {
	b, err := m.slice(addr, 1, AccessWrite)
	if err != nil {
		return err
	}
	b[0] = value
	m.written(addr, 1)
	return nil
}

// Write16 writes a 16-bit value to memory (little-endian).
func (m *Memory) Write16(addr uint64, value uint16) error {
	b, err := m.slice(addr, 2, AccessWrite)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	m.written(addr, 2)
	return nil
}

// Write32 writes a 32-bit value to memory (little-endian).
func (m *Memory) Write32(addr uint64, value uint32) error {
	b, err := m.slice(addr, 4, AccessWrite)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	m.written(addr, 4)
	return nil
}

// Write64 writes a 64-bit value to memory (little-endian).
func (m *Memory) Write64(addr uint64, value uint64) error {
	b, err := m.slice(addr, 8, AccessWrite)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	m.written(addr, 8)
	return nil
}

// ReadBytes copies n bytes out of guest memory. The range may span
// adjacent regions.
func (m *Memory) ReadBytes(addr, n uint64) ([]byte, error) {
	out := make([]byte, 0, n)
	for n > 0 {
		chunk, err := m.span(addr, n, AccessRead)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		addr += uint64(len(chunk))
		n -= uint64(len(chunk))
	}
	return out, nil
}

// WriteBytes copies data into guest memory. The range may span adjacent
// regions.
func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	for len(data) > 0 {
		chunk, err := m.span(addr, uint64(len(data)), AccessWrite)
		if err != nil {
			return err
		}
		n := copy(chunk, data)
		m.written(addr, uint64(n))
		addr += uint64(n)
		data = data[n:]
	}
	return nil
}

// CheckRange reports the first fault an access to [addr, addr+n) would
// raise, without touching memory.
func (m *Memory) CheckRange(addr, n uint64, access Access) error {
	for n > 0 {
		chunk, err := m.span(addr, n, access)
		if err != nil {
			return err
		}
		addr += uint64(len(chunk))
		n -= uint64(len(chunk))
	}
	return nil
}

// ReadCString reads a NUL-terminated string of at most limit bytes.
func (m *Memory) ReadCString(addr uint64, limit int) (string, error) {
	var b strings.Builder
	for i := 0; i < limit; i++ {
		c, err := m.Read8(addr + uint64(i))
		if err != nil {
			return "", err
		}
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
	return "", fmt.Errorf("string at 0x%x longer than %d bytes", addr, limit)
}

// span returns the longest checked prefix of [addr, addr+n) that lies in a
// single region.
func (m *Memory) span(addr, n uint64, access Access) ([]byte, error) {
	r := m.find(addr, 1)
	if r == nil {
		return nil, &MemoryFault{Addr: addr, Size: n, Access: access, Reason: ErrUnmapped}
	}
	if r.Perm&access.perm() == 0 {
		return nil, &MemoryFault{Addr: addr, Size: n, Access: access, Reason: ErrPermission}
	}

	off := addr - r.Base
	end := off + n
	if end > r.Size || end < off {
		end = r.Size
	}
	return r.data[off:end], nil
}

// InitBrk sets up the program break at start. The heap may grow up to
// limit; no memory is mapped until the break first moves.
func (m *Memory) InitBrk(start, limit uint64) {
	m.heap = nil
	m.brkStart = start
	m.brk = start
	m.brkLimit = limit
}

// Brk returns the current program break.
func (m *Memory) Brk() uint64 {
	return m.brk
}

// SetBrk moves the program break and returns the new break. Requests below
// the initial break, beyond the limit, or colliding with another mapping
// leave the break unchanged and return the current value, as Linux does.
func (m *Memory) SetBrk(addr uint64) uint64 {
	if addr < m.brkStart || addr > m.brkLimit {
		return m.brk
	}

	need := alignUp(addr, PageSize) - m.brkStart
	have := uint64(0)
	if m.heap != nil {
		have = m.heap.Size
	}

	if need > have {
		if err := m.growHeap(need); err != nil {
			return m.brk
		}
	}

	m.brk = addr
	return m.brk
}

func (m *Memory) growHeap(size uint64) error {
	if m.heap == nil {
		r, err := m.Map("heap", m.brkStart, size, PermRead|PermWrite)
		if err != nil {
			return err
		}
		m.heap = r
		return nil
	}

	for _, r := range m.regions {
		if r != m.heap && r.Base >= m.heap.End() && r.Base < m.heap.Base+size {
			return fmt.Errorf("%w: heap growth to 0x%x hits %s", ErrOverlap, m.heap.Base+size, r.Name)
		}
	}

	grown := make([]byte, size)
	copy(grown, m.heap.data)
	m.heap.data = grown
	m.heap.Size = size
	return nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
