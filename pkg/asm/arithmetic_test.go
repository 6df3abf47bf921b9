package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeArithmetic_SingleOperand(t *testing.T) {
	tokens := tokenizeArithmetic("foo")
	require.Len(t, tokens, 3)
	assert.Equal(t, "foo", tokens[0].text)
	assert.True(t, tokens[1].operator)
	assert.Equal(t, "0", tokens[2].text)
}

func TestTokenizeArithmetic_LeadingUnaryMinus(t *testing.T) {
	// A standalone leading "-" token (as produced when the expression is
	// space-separated) synthesizes a "0" operand ahead of it.
	tokens := tokenizeArithmetic("- 4")
	require.Len(t, tokens, 3)
	assert.Equal(t, "0", tokens[0].text)
	assert.Equal(t, "-", tokens[1].text)
	assert.Equal(t, "4", tokens[2].text)
}

func TestTokenizeArithmetic_NoWhitespaceFallback(t *testing.T) {
	tokens := tokenizeArithmetic("a+b-4")
	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"a", "+", "b", "-", "4"}, texts)
}

func TestConvertToPostfix_LeftAssociative(t *testing.T) {
	postfix, err := convertToPostfix(tokenizeArithmetic("a + b - c"), 0)
	require.NoError(t, err)
	var texts []string
	for _, tok := range postfix {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"a", "b", "+", "c", "-"}, texts)
}

func TestEvaluateExpression_LiteralsOnly(t *testing.T) {
	symbols := NewSymbolTable()
	v, err := evaluateExpression("10 + 5 - 3", symbols, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestEvaluateExpression_WithDefinedSymbol(t *testing.T) {
	symbols := NewSymbolTable()
	_, err := symbols.Insert("base", 1, 100, LOCAL, true)
	require.NoError(t, err)

	v, err := evaluateExpression("base + 4", symbols, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(104), v)
}

func TestEvaluateExpression_UndefinedSymbolIsRecoverable(t *testing.T) {
	symbols := NewSymbolTable()
	_, err := symbols.Insert("base", UndefinedSectionId, 0, LOCAL, false)
	require.NoError(t, err)

	_, err = evaluateExpression("base + 4", symbols, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSymbolNotYetDefined)
}

func TestEvaluateExpression_UnknownSymbolIsFatal(t *testing.T) {
	symbols := NewSymbolTable()
	_, err := evaluateExpression("nope + 1", symbols, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpression)
	assert.NotErrorIs(t, err, ErrSymbolNotYetDefined)
}

func TestExprHasSymbol(t *testing.T) {
	assert.True(t, exprHasSymbol("a + 4"))
	assert.False(t, exprHasSymbol("4 + 5"))
	assert.False(t, exprHasSymbol("0x10"))
}

func TestOperandSymbols(t *testing.T) {
	names := operandSymbols("a + b - 4")
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}
