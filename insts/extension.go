package insts

import (
	"fmt"
	"strings"
)

// ExtensionID identifies a RISC-V ISA extension.
type ExtensionID uint8

// Known extensions. Only I, Zicsr and Zifencei have decoder modules; the
// others are recognized so that configurations naming them can be rejected
// with a precise error.
const (
	ExtUnknown ExtensionID = iota
	ExtI
	ExtM
	ExtA
	ExtF
	ExtD
	ExtC
	ExtV
	ExtZicsr
	ExtZifencei
)

var extensionNames = map[ExtensionID]string{
	ExtI:        "I",
	ExtM:        "M",
	ExtA:        "A",
	ExtF:        "F",
	ExtD:        "D",
	ExtC:        "C",
	ExtV:        "V",
	ExtZicsr:    "Zicsr",
	ExtZifencei: "Zifencei",
}

// String returns the canonical extension name.
func (e ExtensionID) String() string {
	if name, ok := extensionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ext(%d)", uint8(e))
}

// ParseExtension converts a case-insensitive extension name to its ID.
func ParseExtension(name string) (ExtensionID, error) {
	name = strings.TrimSpace(name)
	for id, canonical := range extensionNames {
		if strings.EqualFold(name, canonical) {
			return id, nil
		}
	}
	return ExtUnknown, fmt.Errorf("unknown ISA extension %q", name)
}

// ParseExtensions parses a list such as "I,Zicsr,Zifencei". Commas and
// underscores both separate entries; empty entries are skipped.
func ParseExtensions(list string) ([]ExtensionID, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == '_'
	})

	ids := make([]ExtensionID, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		id, err := ParseExtension(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("empty ISA extension list %q", list)
	}

	return ids, nil
}
