package asm

import (
	"errors"
	"fmt"

	"github.com/halvardf/asm16/pkg/utils"
)

// Category sentinels, one per taxonomy bucket. Diagnostics returned by the
// core always wrap exactly one of these, so callers can classify a failure
// with errors.Is without parsing message text.
var (
	ErrLexical    = errors.New("lexical error")
	ErrStructural = errors.New("structural error")
	ErrSemantic   = errors.New("semantic error")
	ErrExpression = errors.New("expression error")
	ErrResolution = errors.New("resolution error")

	// ErrSymbolNotYetDefined is the recoverable signal consumed internally by
	// the TNS fixed-point loop. It is never returned across the package
	// boundary by Assemble.
	ErrSymbolNotYetDefined = errors.New("symbol not yet defined")
)

// AssemblyException is the single fatal diagnostic type surfaced to callers.
// It carries an optional source line (0 when not line-specific) and wraps
// one of the category sentinels above.
type AssemblyException struct {
	Line int
	Err  error
}

func (e *AssemblyException) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *AssemblyException) Unwrap() error {
	return e.Err
}

// fail wraps a category sentinel with contextual detail using
// utils.MakeError, corrected so the trailing args are spread into the
// format verbs of detail rather than embedded as a single slice argument.
func fail(line int, category error, detail string, args ...any) error {
	return &AssemblyException{Line: line, Err: utils.MakeError(category, detail, args...)}
}
