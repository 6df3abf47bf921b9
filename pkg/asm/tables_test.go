package asm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable_InsertRejectsDuplicates(t *testing.T) {
	t1 := NewSymbolTable()
	_, err := t1.Insert("foo", UndefinedSectionId, 0, LOCAL, true)
	require.NoError(t, err)

	_, err = t1.Insert("foo", UndefinedSectionId, 0, LOCAL, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestSectionTable_SeededWithUND(t *testing.T) {
	st := NewSectionTable()
	assert.Equal(t, 1, st.Size())
	sec, ok := st.GetById(UndefinedSectionId)
	require.True(t, ok)
	assert.Equal(t, "UND", sec.Name)
}

func TestSectionTable_InsertRejectsDuplicates(t *testing.T) {
	st := NewSectionTable()
	_, err := st.Insert("text", 0)
	require.NoError(t, err)

	_, err = st.Insert("text", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestRelocationTable_ForSection(t *testing.T) {
	rt := NewRelocationTable()
	rt.Insert(1, 0, R_386_16, 5)
	rt.Insert(2, 0, R_386_PC16, 6)
	rt.Insert(1, 4, R_386_16, 7)

	got := rt.ForSection(1)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Offset)
	assert.Equal(t, int64(4), got[1].Offset)

	assert.Nil(t, rt.ForSection(99))
}

func TestTNSTable_InsertRejectsDuplicates(t *testing.T) {
	tt := NewTNSTable()
	err := tt.Insert(1, "x", "y + 1", LOCAL)
	require.NoError(t, err)

	err = tt.Insert(1, "x", "z", LOCAL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestTNSTable_DeleteByNamePreservesOrder(t *testing.T) {
	tt := NewTNSTable()
	require.NoError(t, tt.Insert(1, "a", "1", LOCAL))
	require.NoError(t, tt.Insert(1, "b", "2", LOCAL))
	require.NoError(t, tt.Insert(1, "c", "3", LOCAL))

	tt.DeleteByName("b")
	entries := tt.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "c", entries[1].Name)
}

func TestSymbolTable_Render(t *testing.T) {
	st := NewSymbolTable()
	_, err := st.Insert("main", 1, 0, GLOBAL, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	st.Render(&buf)
	assert.Contains(t, buf.String(), "<--Symbol table-->")
	assert.Contains(t, buf.String(), "main")
}
