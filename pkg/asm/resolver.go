package asm

import "errors"

// Resolve runs the three post-encode phases: scope promotion, TNS fixed
// point, and backpatching. It mutates e's tables and byte buffers in place.
func Resolve(e *Encoder) error {
	if err := resolveScopes(e); err != nil {
		return err
	}
	if err := resolveTNS(e); err != nil {
		return err
	}
	if err := backpatch(e); err != nil {
		return err
	}
	return nil
}

// resolveScopes is Phase 1: promote pending .global symbols to GLOBAL scope
// and materialize pending .extern symbols in UND.
func resolveScopes(e *Encoder) error {
	for _, p := range e.pendingGlobal {
		sym, ok := e.Symbols.GetByName(p.name)
		if !ok || !sym.Defined {
			return fail(p.line, ErrResolution, "global symbol %q never defined", p.name)
		}
		sym.Scope = GLOBAL
	}
	for _, p := range e.pendingExtern {
		if _, ok := e.Symbols.GetByName(p.name); ok {
			return fail(p.line, ErrResolution, "extern symbol %q also defined locally", p.name)
		}
		if _, err := e.Symbols.Insert(p.name, UndefinedSectionId, 0, EXTERN, false); err != nil {
			return err
		}
	}
	return nil
}

// resolveTNS is Phase 2: validate the classification index of every
// pending .equ expression, then iteratively evaluate them to a fixed
// point.
func resolveTNS(e *Encoder) error {
	for _, entry := range e.TNS.Entries() {
		if err := checkClassificationIndex(e, entry); err != nil {
			return err
		}
	}

	for e.TNS.Size() > 0 {
		progressed := false
		for _, entry := range e.TNS.Entries() {
			value, scope, err := tryResolveTNS(e, entry)
			if err != nil {
				if err == errRecoverable {
					continue
				}
				return err
			}
			sym, _ := e.Symbols.GetByName(entry.Name)
			sym.Value = value
			sym.Defined = true
			sym.Scope = scope
			e.TNS.DeleteByName(entry.Name)
			progressed = true
		}
		if !progressed {
			return fail(0, ErrResolution, "Possible circular dependency between TNS symbols")
		}
	}
	return nil
}

var errRecoverable = &sentinel{}

type sentinel struct{}

func (s *sentinel) Error() string { return "recoverable" }

// tryResolveTNS attempts to fully evaluate a TNS entry's expression. It
// returns errRecoverable (not wrapped) when the failure is the
// distinguished "symbol not yet defined" signal, so the fixed-point loop
// can keep trying other entries.
func tryResolveTNS(e *Encoder, entry *TNSEntry) (int64, Scope, error) {
	postfix, err := convertToPostfix(tokenizeArithmetic(entry.Expression), 0)
	if err != nil {
		return 0, LOCAL, err
	}

	anyExtern := false
	for _, name := range operandSymbols(entry.Expression) {
		if sym, ok := e.Symbols.GetByName(name); ok && sym.Scope == EXTERN {
			anyExtern = true
		}
	}

	value, err := evaluateArithmetic(postfix, e.Symbols, 0)
	if err != nil {
		if errors.Is(err, ErrSymbolNotYetDefined) {
			return 0, LOCAL, errRecoverable
		}
		return 0, LOCAL, err
	}

	scope := entry.Scope
	if anyExtern {
		scope = EXTERN
	}
	return value, scope, nil
}

// checkClassificationIndex implements the per-section signed-occurrence
// balance rule. Because + and - are left-associative and have equal
// precedence, the algebraic sign of each operand in the expression is
// simply +1 for the first operand, and +1/-1 for every later operand
// depending on the operator immediately preceding it — no distribution
// over a postfix tree is needed. Each non-EXTERN symbol contributes its
// sign to its section's running total; EXTERN symbols fold into UND.
func checkClassificationIndex(e *Encoder, entry *TNSEntry) error {
	tokens := tokenizeArithmetic(entry.Expression)
	if _, err := convertToPostfix(tokens, 0); err != nil {
		return err
	}

	sign := make(map[string]int)
	currentSign := 1
	firstOperand := true
	for _, tok := range tokens {
		if tok.operator {
			if tok.text == "-" {
				currentSign = -1
			} else {
				currentSign = 1
			}
			continue
		}
		s := 1
		if !firstOperand {
			s = currentSign
		}
		firstOperand = false
		if reSymbol.MatchString(tok.text) {
			sign[tok.text] += s
		}
	}

	perSection := make(map[SectionId]int)
	for name, s := range sign {
		sym, ok := e.Symbols.GetByName(name)
		if !ok {
			// Symbol not declared anywhere yet; resolved (or rejected) by
			// the fixed-point loop itself, not the classification check.
			continue
		}
		if sym.Scope == EXTERN {
			perSection[UndefinedSectionId] += s
			continue
		}
		perSection[sym.SectionId] += s
	}

	positives := 0
	for _, v := range perSection {
		switch v {
		case 0:
			continue
		case 1:
			positives++
		default:
			return fail(0, ErrExpression, "classification-index violation in expression for %q", entry.Name)
		}
	}
	if positives > 1 {
		return fail(0, ErrExpression, "classification-index violation in expression for %q", entry.Name)
	}
	return nil
}

// backpatch is Phase 3: walk the deferred-reference log in arrival order,
// resolve each symbol, compute the patch word, write it into the
// section's bytes, and emit a relocation entry where one is required.
func backpatch(e *Encoder) error {
	for _, ref := range e.deferred {
		sym, ok := e.Symbols.GetByName(ref.SymbolName)
		if !ok {
			return fail(0, ErrResolution, "symbol %q referenced but never defined", ref.SymbolName)
		}
		if (sym.Scope == LOCAL || sym.Scope == GLOBAL) && !sym.Defined {
			return fail(0, ErrResolution, "symbol %q referenced but never defined", ref.SymbolName)
		}

		var t int64
		emitReloc := false
		var relocTarget SymbolId

		switch ref.Kind {
		case R_386_PC16:
			switch {
			case sym.SectionId == ref.InSection:
				t = sym.Value - ref.NextInstructionLC
			case sym.Scope == LOCAL:
				t = sym.Value - 2
				sec, _ := e.Sections.GetById(sym.SectionId)
				relocTarget = sec.SymbolId
				emitReloc = true
			default:
				t = -2
				relocTarget = sym.Id
				emitReloc = true
			}
		case R_386_16:
			switch sym.Scope {
			case LOCAL:
				t = sym.Value
				sec, _ := e.Sections.GetById(sym.SectionId)
				relocTarget = sec.SymbolId
				emitReloc = true
			default: // GLOBAL or EXTERN
				t = 0
				relocTarget = sym.Id
				emitReloc = true
			}
		}

		if emitReloc {
			e.Relocations.Insert(ref.InSection, ref.PatchOffset, ref.Kind, relocTarget)
		}

		buf := e.bytes[ref.InSection]
		if ref.ModifyOneByte {
			buf[ref.PatchOffset] = byte(t)
		} else {
			buf[ref.PatchOffset] = byte(t)
			buf[ref.PatchOffset+1] = byte(t >> 8)
		}
	}
	return nil
}
