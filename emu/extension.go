package emu

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/rvemu/insts"
)

// ErrIllegalInstruction is returned by executors for decoded instructions
// that cannot be executed in the current state.
var ErrIllegalInstruction = errors.New("illegal instruction")

// Extension bundles the decoder of an ISA extension with the executors of
// the operations it produces.
type Extension struct {
	ID        insts.ExtensionID
	Decoder   insts.Decoder
	Executors map[insts.Op]ExecFunc
}

// ExtensionFactory creates a fresh Extension.
type ExtensionFactory func() *Extension

var (
	registryMu sync.RWMutex
	registry   = map[insts.ExtensionID]ExtensionFactory{
		insts.ExtI:        RV64I,
		insts.ExtZicsr:    Zicsr,
		insts.ExtZifencei: Zifencei,
	}
)

// RegisterExtension makes an extension available to Builder. Registering
// an ID twice replaces the earlier factory.
func RegisterExtension(id insts.ExtensionID, factory ExtensionFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = factory
}

// LookupExtension creates the registered extension with the given ID.
func LookupExtension(id insts.ExtensionID) (*Extension, bool) {
	registryMu.RLock()
	factory, ok := registry[id]
	registryMu.RUnlock()

	if !ok {
		return nil, false
	}
	return factory(), true
}

// AvailableExtensions lists the registered extension IDs in ascending order.
func AvailableExtensions() []insts.ExtensionID {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]insts.ExtensionID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RV64I returns the base integer extension.
func RV64I() *Extension {
	ex := make(map[insts.Op]ExecFunc)

	for _, op := range []insts.Op{
		insts.OpADD, insts.OpSUB, insts.OpSLL, insts.OpSLT, insts.OpSLTU,
		insts.OpXOR, insts.OpSRL, insts.OpSRA, insts.OpOR, insts.OpAND,
		insts.OpADDW, insts.OpSUBW, insts.OpSLLW, insts.OpSRLW, insts.OpSRAW,
	} {
		ex[op] = execRegReg
	}

	for _, op := range []insts.Op{
		insts.OpADDI, insts.OpSLTI, insts.OpSLTIU, insts.OpXORI, insts.OpORI,
		insts.OpANDI, insts.OpSLLI, insts.OpSRLI, insts.OpSRAI,
		insts.OpADDIW, insts.OpSLLIW, insts.OpSRLIW, insts.OpSRAIW,
	} {
		ex[op] = execRegImm
	}

	for _, op := range []insts.Op{
		insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLD,
		insts.OpLBU, insts.OpLHU, insts.OpLWU,
	} {
		ex[op] = execLoad
	}

	for _, op := range []insts.Op{insts.OpSB, insts.OpSH, insts.OpSW, insts.OpSD} {
		ex[op] = execStore
	}

	for _, op := range []insts.Op{
		insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU,
	} {
		ex[op] = execBranch
	}

	ex[insts.OpLUI] = execUpper
	ex[insts.OpAUIPC] = execUpper
	ex[insts.OpJAL] = execJAL
	ex[insts.OpJALR] = execJALR
	ex[insts.OpFENCE] = execFence
	ex[insts.OpECALL] = execEcall
	ex[insts.OpEBREAK] = execEbreak

	return &Extension{ID: insts.ExtI, Decoder: insts.NewRV64IDecoder(), Executors: ex}
}

// Zicsr returns the CSR access extension.
func Zicsr() *Extension {
	ex := map[insts.Op]ExecFunc{
		insts.OpMRET: execMRET,
	}
	for _, op := range []insts.Op{
		insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC,
		insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI,
	} {
		ex[op] = execCSR
	}

	return &Extension{ID: insts.ExtZicsr, Decoder: insts.NewZicsrDecoder(), Executors: ex}
}

// Zifencei returns the instruction-fetch fence extension.
func Zifencei() *Extension {
	return &Extension{
		ID:      insts.ExtZifencei,
		Decoder: insts.NewZifenceiDecoder(),
		Executors: map[insts.Op]ExecFunc{
			insts.OpFENCEI: execFenceI,
		},
	}
}

func execRegReg(h *Hart, inst *insts.Instruction) (Outcome, error) {
	h.ALU.RegReg(inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
	return Next(), nil
}

func execRegImm(h *Hart, inst *insts.Instruction) (Outcome, error) {
	h.ALU.RegImm(inst.Op, inst.Rd, inst.Rs1, inst.Imm)
	return Next(), nil
}

func execUpper(h *Hart, inst *insts.Instruction) (Outcome, error) {
	h.ALU.Upper(inst.Op, inst.Rd, h.Regs.PC, inst.Imm)
	return Next(), nil
}

func execLoad(h *Hart, inst *insts.Instruction) (Outcome, error) {
	if err := h.LSU.Load(inst.Op, inst.Rd, inst.Rs1, inst.Imm); err != nil {
		return Outcome{}, err
	}
	return Next(), nil
}

func execStore(h *Hart, inst *insts.Instruction) (Outcome, error) {
	if err := h.LSU.Store(inst.Op, inst.Rs1, inst.Rs2, inst.Imm); err != nil {
		return Outcome{}, err
	}
	return Next(), nil
}

func execBranch(h *Hart, inst *insts.Instruction) (Outcome, error) {
	taken, target, err := h.Branch.Branch(inst.Op, inst.Rs1, inst.Rs2, h.Regs.PC, inst.Imm)
	if err != nil {
		return Outcome{}, err
	}
	if !taken {
		return Next(), nil
	}
	return JumpTo(target), nil
}

func execJAL(h *Hart, inst *insts.Instruction) (Outcome, error) {
	target, err := h.Branch.JAL(inst.Rd, h.Regs.PC, inst.Imm)
	if err != nil {
		return Outcome{}, err
	}
	return JumpTo(target), nil
}

func execJALR(h *Hart, inst *insts.Instruction) (Outcome, error) {
	target, err := h.Branch.JALR(inst.Rd, inst.Rs1, h.Regs.PC, inst.Imm)
	if err != nil {
		return Outcome{}, err
	}
	return JumpTo(target), nil
}

// execFence is a no-op: a single hart observes its own accesses in order.
func execFence(_ *Hart, _ *insts.Instruction) (Outcome, error) {
	return Next(), nil
}

func execEcall(_ *Hart, _ *insts.Instruction) (Outcome, error) {
	return Trap(TrapEcall), nil
}

func execEbreak(_ *Hart, _ *insts.Instruction) (Outcome, error) {
	return Trap(TrapEbreak), nil
}

func execFenceI(h *Hart, _ *insts.Instruction) (Outcome, error) {
	if h.FenceI != nil {
		h.FenceI()
	}
	return Next(), nil
}

// execCSR implements the six CSR access forms. CSRRS/CSRRC with a zero
// source do not write, and CSRRW with rd=x0 does not read.
func execCSR(h *Hart, inst *insts.Instruction) (Outcome, error) {
	var src uint64
	immediate := inst.Op == insts.OpCSRRWI || inst.Op == insts.OpCSRRSI || inst.Op == insts.OpCSRRCI
	if immediate {
		src = uint64(inst.Rs1)
	} else {
		src = h.Regs.ReadReg(inst.Rs1)
	}

	var old uint64
	readCSR := !((inst.Op == insts.OpCSRRW || inst.Op == insts.OpCSRRWI) && inst.Rd == 0)
	if readCSR {
		old = h.CSR.Read(inst.CSR)
	}

	var (
		value uint64
		write bool
	)
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		value, write = src, true
	case insts.OpCSRRS, insts.OpCSRRSI:
		value, write = old|src, inst.Rs1 != 0
	case insts.OpCSRRC, insts.OpCSRRCI:
		value, write = old&^src, inst.Rs1 != 0
	}

	if write {
		if err := h.CSR.Write(inst.CSR, value); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrIllegalInstruction, err)
		}
	}

	h.Regs.WriteReg(inst.Rd, old)
	return Next(), nil
}

func execMRET(h *Hart, _ *insts.Instruction) (Outcome, error) {
	target := h.CSR.Read(CSRMEPC)
	if err := checkTarget(target); err != nil {
		return Outcome{}, err
	}
	return JumpTo(target), nil
}
