package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEncoder(t *testing.T, lines [][]string) *Encoder {
	t.Helper()
	e := NewEncoder()
	for i, lexemes := range lines {
		tokens := make([]Token, 0, len(lexemes))
		for _, l := range lexemes {
			tok, err := Scan(l, i+1)
			require.NoError(t, err)
			tokens = append(tokens, tok)
		}
		require.NoError(t, e.EncodeLine(tokens, i+1))
	}
	return e
}

func TestResolve_TNSFixedPoint(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "data"},
		{".equ", "a", "b", "+", "1"},
		{".equ", "b", "2"},
	})
	require.NoError(t, Resolve(e))

	b, ok := e.Symbols.GetByName("b")
	require.True(t, ok)
	assert.Equal(t, int64(2), b.Value)

	a, ok := e.Symbols.GetByName("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), a.Value)
}

func TestResolve_CircularTNSDependencyFails(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "data"},
		{".equ", "a", "b", "+", "1"},
		{".equ", "b", "a", "+", "1"},
	})
	err := Resolve(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolve_GlobalPromotion(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{".global", "start"},
		{"start:"},
		{"halt"},
	})
	require.NoError(t, Resolve(e))

	sym, ok := e.Symbols.GetByName("start")
	require.True(t, ok)
	assert.Equal(t, GLOBAL, sym.Scope)
}

func TestResolve_GlobalNeverDefinedFails(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{".global", "start"},
	})
	err := Resolve(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolve_ExternSymbolMaterializesInUND(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{".extern", "callback"},
	})
	require.NoError(t, Resolve(e))

	sym, ok := e.Symbols.GetByName("callback")
	require.True(t, ok)
	assert.Equal(t, EXTERN, sym.Scope)
	assert.Equal(t, UndefinedSectionId, sym.SectionId)
}

func TestResolve_BackpatchIntraSectionPCRelativeNeedsNoRelocation(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{"jmp", "target(%pc)"},
		{"target:"},
		{"halt"},
	})
	require.NoError(t, Resolve(e))
	assert.Equal(t, 0, e.Relocations.Size())
}

func TestResolve_BackpatchCrossSectionLocalWordEmitsRelocation(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{".word", "value"},
		{".section", "data"},
		{"value:"},
		{".word", "42"},
	})
	require.NoError(t, Resolve(e))
	require.Equal(t, 1, e.Relocations.Size())
	reloc := e.Relocations.ForSection(1)[0]
	assert.Equal(t, R_386_16, reloc.Kind)
}

func TestResolve_UnresolvedSymbolReferenceFails(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{".word", "nowhere"},
	})
	err := Resolve(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestCheckClassificationIndex_ValidSameSectionDifference(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{"a:"},
		{"halt"},
		{"b:"},
	})
	entry := &TNSEntry{Name: "len", Expression: "b - a"}
	require.NoError(t, checkClassificationIndex(e, entry))
}

func TestCheckClassificationIndex_ViolationAcrossSections(t *testing.T) {
	e := buildEncoder(t, [][]string{
		{".section", "text"},
		{"a:"},
		{".section", "data"},
		{"b:"},
	})
	entry := &TNSEntry{Name: "bad", Expression: "a + b"}
	err := checkClassificationIndex(e, entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpression)
}
