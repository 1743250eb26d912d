package emu

import (
	"errors"
	"fmt"
)

// CSR numbers known by name.
const (
	CSRCycle    uint16 = 0xC00
	CSRTime     uint16 = 0xC01
	CSRInstret  uint16 = 0xC02
	CSRMStatus  uint16 = 0x300
	CSRMISA     uint16 = 0x301
	CSRMIE      uint16 = 0x304
	CSRMTVec    uint16 = 0x305
	CSRMScratch uint16 = 0x340
	CSRMEPC     uint16 = 0x341
	CSRMCause   uint16 = 0x342
	CSRMTVal    uint16 = 0x343
	CSRMIP      uint16 = 0x344
	CSRMHartID  uint16 = 0xF14
)

var csrNames = map[uint16]string{
	CSRCycle:    "cycle",
	CSRTime:     "time",
	CSRInstret:  "instret",
	CSRMStatus:  "mstatus",
	CSRMISA:     "misa",
	CSRMIE:      "mie",
	CSRMTVec:    "mtvec",
	CSRMScratch: "mscratch",
	CSRMEPC:     "mepc",
	CSRMCause:   "mcause",
	CSRMTVal:    "mtval",
	CSRMIP:      "mip",
	CSRMHartID:  "mhartid",
}

// ErrReadOnlyCSR is returned when writing a CSR in the read-only space.
var ErrReadOnlyCSR = errors.New("write to read-only CSR")

// CSRName returns the name of a CSR, or its number in hex.
func CSRName(csr uint16) string {
	if name, ok := csrNames[csr]; ok {
		return name
	}
	return fmt.Sprintf("csr(0x%03x)", csr)
}

// CSRFile holds the control and status registers of the single hart.
//
// The counters read the retired instruction count; mhartid reads 0; every
// other CSR is plain 64-bit storage.
type CSRFile struct {
	regs    map[uint16]uint64
	counter func() uint64
}

// NewCSRFile creates a CSR file whose counters read from counter.
func NewCSRFile(counter func() uint64) *CSRFile {
	if counter == nil {
		counter = func() uint64 { return 0 }
	}
	return &CSRFile{
		regs:    make(map[uint16]uint64),
		counter: counter,
	}
}

// IsReadOnly reports whether csr is in the read-only space (bits [11:10]
// are 11).
func IsReadOnly(csr uint16) bool {
	return (csr>>10)&0x3 == 0x3
}

// Read returns the value of a CSR.
func (c *CSRFile) Read(csr uint16) uint64 {
	switch csr {
	case CSRCycle, CSRTime, CSRInstret:
		return c.counter()
	case CSRMHartID:
		return 0
	}
	return c.regs[csr]
}

// Write sets a CSR. Writes to the read-only space fail.
func (c *CSRFile) Write(csr uint16, value uint64) error {
	if IsReadOnly(csr) {
		return fmt.Errorf("%w %s", ErrReadOnlyCSR, CSRName(csr))
	}
	c.regs[csr] = value
	return nil
}

// Reset clears all writable CSRs.
func (c *CSRFile) Reset() {
	c.regs = make(map[uint16]uint64)
}
