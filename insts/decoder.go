package insts

import (
	"errors"
	"fmt"
)

// ErrUnknownInstruction is matched by every DecodeError.
var ErrUnknownInstruction = errors.New("unknown instruction")

// Decoder recognizes the instruction words of one ISA extension.
//
// Decode is pure: it must not depend on anything but the word, and the PC is
// only carried for diagnostics. A decoder that does not recognize the word
// returns false so that the next decoder in the chain can try it.
type Decoder interface {
	// Extension returns the extension this decoder implements.
	Extension() ExtensionID

	// Decode decodes one 32-bit instruction word fetched at pc.
	Decode(word uint32, pc uint64) (*Instruction, bool)
}

// DecodeError reports a word that no decoder in a chain accepted.
type DecodeError struct {
	Word uint32
	PC   uint64
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("unknown instruction 0x%08x at pc 0x%x", e.Word, e.PC)
}

// Unwrap returns ErrUnknownInstruction.
func (e *DecodeError) Unwrap() error {
	return ErrUnknownInstruction
}

// Chain offers instruction words to an ordered list of decoders.
type Chain struct {
	decoders []Decoder
}

// NewChain creates a chain that tries the given decoders in order.
func NewChain(decoders ...Decoder) *Chain {
	c := &Chain{}
	for _, d := range decoders {
		c.Add(d)
	}
	return c
}

// Add appends a decoder to the end of the chain.
func (c *Chain) Add(d Decoder) {
	if d == nil {
		return
	}
	c.decoders = append(c.decoders, d)
}

// Len returns the number of decoders in the chain.
func (c *Chain) Len() int {
	return len(c.decoders)
}

// Extensions returns the extensions of the chained decoders in order.
func (c *Chain) Extensions() []ExtensionID {
	ids := make([]ExtensionID, len(c.decoders))
	for i, d := range c.decoders {
		ids[i] = d.Extension()
	}
	return ids
}

// Decode returns the result of the first decoder that accepts the word.
func (c *Chain) Decode(word uint32, pc uint64) (*Instruction, error) {
	for _, d := range c.decoders {
		if inst, ok := d.Decode(word, pc); ok {
			return inst, nil
		}
	}
	return nil, &DecodeError{Word: word, PC: pc}
}
