// Package instructions describes the fixed, closed mnemonic table of the
// target instruction set: the 25 mnemonics, their opcodes and operand
// counts.
package instructions

import (
	"fmt"
	"sort"

	"github.com/halvardf/asm16/pkg/utils"
)

// Size is the operand width a mnemonic or register-direct operand is
// encoded with.
type Size int

const (
	Byte Size = iota
	Word
)

// Descriptor is one entry of the mnemonic table.
type Descriptor struct {
	Mnemonic     string
	OpCode       uint8
	OperandCount int
}

// descriptors is the closed, ordered table of mnemonics from the external
// interface. ret intentionally shares opcode 0 with halt: this is not a
// defect, it mirrors the source table's observable behavior.
var descriptors = []Descriptor{
	{"halt", 0, 0},
	{"iret", 1, 0},
	{"ret", 0, 0},
	{"int", 3, 1},
	{"call", 4, 1},
	{"jmp", 5, 1},
	{"jeq", 6, 1},
	{"jne", 7, 1},
	{"jgt", 8, 1},
	{"push", 9, 1},
	{"pop", 10, 1},
	{"xchg", 11, 2},
	{"mov", 12, 2},
	{"add", 13, 2},
	{"sub", 14, 2},
	{"mul", 15, 2},
	{"div", 16, 2},
	{"cmp", 17, 2},
	{"not", 18, 2},
	{"and", 19, 2},
	{"or", 20, 2},
	{"xor", 21, 2},
	{"test", 22, 2},
	{"shl", 23, 2},
	{"shr", 24, 2},
}

var byMnemonic = utils.GenMap(descriptors, func(d Descriptor) string { return d.Mnemonic })

// Jump mnemonics treat a bare literal/symbol operand as immediate rather
// than memory-direct.
var jumpMnemonics = map[string]bool{
	"jmp": true, "jeq": true, "jne": true, "jgt": true,
}

// IsJump reports whether mnemonic is one of the four conditional/unconditional
// jumps that override the default memory-direct addressing of a bare operand.
func IsJump(mnemonic string) bool {
	return jumpMnemonics[mnemonic]
}

// Lookup returns the descriptor for a case-folded mnemonic.
func Lookup(mnemonic string) (Descriptor, bool) {
	d, ok := byMnemonic[mnemonic]
	return d, ok
}

// Mnemonics returns all mnemonics in reverse lexicographic order, for use
// inside a regex alternation. The order only makes the generated pattern
// deterministic.
func Mnemonics() []string {
	names := utils.Map(descriptors, func(d Descriptor) string { return d.Mnemonic })
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}

// All returns the table in declaration order.
func All() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// Documentation renders a short human-readable description of the whole
// mnemonic table, in the teacher's DocString idiom.
func Documentation() string {
	out := "Instruction set (mnemonic, opcode, operand count):\n"
	for _, d := range descriptors {
		out += fmt.Sprintf("  %-6s opcode=%-2d operands=%d\n", d.Mnemonic, d.OpCode, d.OperandCount)
	}
	out += "\nOpcode byte layout:\n"
	out += utils.AsciiFrame([]utils.AsciiFrameField{
		{Name: "unused", Begin: 0, Width: 2},
		{Name: "size", Begin: 2, Width: 1},
		{Name: "opcode", Begin: 3, Width: 5},
	}, 8, "bits", utils.AsciiFrameUnitLayout_RightToLeft, 2)
	out += "\nAddressing-mode byte layout:\n"
	out += utils.AsciiFrame([]utils.AsciiFrameField{
		{Name: "half", Begin: 0, Width: 1},
		{Name: "register", Begin: 1, Width: 4},
		{Name: "mode", Begin: 5, Width: 3},
	}, 8, "bits", utils.AsciiFrameUnitLayout_RightToLeft, 2)
	return out
}
