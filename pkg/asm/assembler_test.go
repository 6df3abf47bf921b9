package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_EmptySectionBoundary(t *testing.T) {
	e, err := Assemble(strings.NewReader(".section a\n.end"))
	require.NoError(t, err)

	_, ok := e.Symbols.GetByName("a")
	require.True(t, ok)
	sec, ok := e.Sections.GetByName("a")
	require.True(t, ok)
	assert.Equal(t, int64(0), sec.Length)
	assert.Equal(t, 0, e.Relocations.Size())
	assert.Empty(t, e.Bytes(sec.Id))
}

func TestAssemble_ByteDirectiveWithLiteral(t *testing.T) {
	e, err := Assemble(strings.NewReader(".section t\nx: .byte 0x2a\n.end"))
	require.NoError(t, err)

	sec, ok := e.Sections.GetByName("t")
	require.True(t, ok)
	assert.Equal(t, int64(1), sec.Length)
	assert.Equal(t, []byte{0x2a}, e.Bytes(sec.Id))

	x, ok := e.Symbols.GetByName("x")
	require.True(t, ok)
	assert.Equal(t, int64(0), x.Value)
	assert.Equal(t, sec.Id, x.SectionId)
}

func TestAssemble_WordDirectiveWithForwardSymbolIntraSection(t *testing.T) {
	// The backpatcher emits an R_386_16 relocation for every LOCAL word
	// reference unconditionally, even when the symbol lives in the same
	// section as the reference: there is no intra-section fold for
	// absolute (non-PC-relative) references.
	e, err := Assemble(strings.NewReader(".section t\n.word y\ny: .byte 1\n.end"))
	require.NoError(t, err)

	sec, ok := e.Sections.GetByName("t")
	require.True(t, ok)
	assert.Equal(t, int64(3), sec.Length)
	assert.Equal(t, []byte{0x02, 0x00, 0x01}, e.Bytes(sec.Id))

	require.Equal(t, 1, e.Relocations.Size())
	reloc := e.Relocations.ForSection(sec.Id)[0]
	assert.Equal(t, int64(0), reloc.Offset)
	assert.Equal(t, R_386_16, reloc.Kind)
	assert.Equal(t, sec.SymbolId, reloc.Value)
}

func TestAssemble_CrossSectionLocalWord(t *testing.T) {
	e, err := Assemble(strings.NewReader(".section a\nlab: .byte 0\n.section b\n.word lab\n.end"))
	require.NoError(t, err)

	secB, ok := e.Sections.GetByName("b")
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x00}, e.Bytes(secB.Id))

	secA, ok := e.Sections.GetByName("a")
	require.True(t, ok)

	require.Equal(t, 1, e.Relocations.Size())
	reloc := e.Relocations.ForSection(secB.Id)[0]
	assert.Equal(t, int64(0), reloc.Offset)
	assert.Equal(t, R_386_16, reloc.Kind)
	assert.Equal(t, secA.SymbolId, reloc.Value)
}

func TestAssemble_PCRelativeJumpToExternAsteriskIsMemoryDirect(t *testing.T) {
	e, err := Assemble(strings.NewReader(".extern foo\n.section t\njmp *foo\n.end"))
	require.NoError(t, err)

	sec, ok := e.Sections.GetByName("t")
	require.True(t, ok)
	bytes := e.Bytes(sec.Id)
	require.Len(t, bytes, 4)
	assert.Equal(t, byte(0x2c), bytes[0])
	assert.Equal(t, byte(0x80), bytes[1])
	assert.Equal(t, []byte{0x00, 0x00}, bytes[2:4])

	foo, ok := e.Symbols.GetByName("foo")
	require.True(t, ok)

	require.Equal(t, 1, e.Relocations.Size())
	reloc := e.Relocations.ForSection(sec.Id)[0]
	assert.Equal(t, R_386_16, reloc.Kind)
	assert.Equal(t, foo.Id, reloc.Value)
}

func TestAssemble_EquCircularDependencyFails(t *testing.T) {
	_, err := Assemble(strings.NewReader(".section t\n.equ a, b+1\n.equ b, a+1\n.end"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestAssemble_CommentsAndCaseAreNormalized(t *testing.T) {
	e, err := Assemble(strings.NewReader(".SECTION t # start of text\nHALT\n.end"))
	require.NoError(t, err)

	sec, ok := e.Sections.GetByName("t")
	require.True(t, ok)
	assert.Equal(t, int64(1), sec.Length)
}

func TestAssemble_MissingEndIsSynthesized(t *testing.T) {
	e, err := Assemble(strings.NewReader(".section t\nhalt"))
	require.NoError(t, err)

	sec, ok := e.Sections.GetByName("t")
	require.True(t, ok)
	assert.Equal(t, int64(1), sec.Length)
}

func TestAssemble_TextListingRendersAllSections(t *testing.T) {
	e, err := Assemble(strings.NewReader(".section t\nx: .byte 0x2a\n.end"))
	require.NoError(t, err)

	var buf strings.Builder
	RenderText(&buf, e)
	out := buf.String()

	assert.Contains(t, out, "<--Symbol table-->")
	assert.Contains(t, out, "<--Section table-->")
	assert.Contains(t, out, "<--Section 't'-->")
	assert.Contains(t, out, "2a")
}
