package asm

import (
	"strconv"

	"github.com/halvardf/asm16/pkg/asm/instructions"
	"github.com/halvardf/asm16/pkg/utils"
)

// addressingByte packs an addressing-mode byte: 3-bit mode in the high
// bits, 4-bit register index, and the byte-half flag in bit 0.
func addressingByte(mode uint8, register int, half bool) byte {
	var b uint8
	view := utils.CreateBitView(&b)
	view.Write(uint8(mode), 5, 3)
	view.Write(uint8(register&0xF), 1, 4)
	if half {
		view.SetBit(0)
	}
	return byte(b)
}

// State is the encoder's state machine position.
type State int

const (
	PreSection State = iota
	InSection
	Terminated
)

// startSection is the sentinel current_section value before any .section
// directive has been seen, distinct from the reserved UND section id.
const startSection SectionId = -1

// Encoder is the single-pass driver: it owns the location counter, the
// per-section byte buffers, the four tables, and the deferred-reference
// log, for the lifetime of one assembly run.
type Encoder struct {
	Symbols     *SymbolTable
	Sections    *SectionTable
	Relocations *RelocationTable
	TNS         *TNSTable

	state          State
	currentSection SectionId
	lc             int64
	bytes          map[SectionId][]byte
	deferred       []DeferredReference

	pendingGlobal []pendingAccess
	pendingExtern []pendingAccess
}

type pendingAccess struct {
	name string
	line int
}

func NewEncoder() *Encoder {
	return &Encoder{
		Symbols:        NewSymbolTable(),
		Sections:       NewSectionTable(),
		Relocations:    NewRelocationTable(),
		TNS:            NewTNSTable(),
		state:          PreSection,
		currentSection: startSection,
		bytes:          make(map[SectionId][]byte),
	}
}

func (e *Encoder) Bytes(section SectionId) []byte {
	return e.bytes[section]
}

func (e *Encoder) Deferred() []DeferredReference {
	return e.deferred
}

func (e *Encoder) PendingGlobal() []pendingAccess { return e.pendingGlobal }
func (e *Encoder) PendingExtern() []pendingAccess { return e.pendingExtern }

// EncodeLine dispatches one already-tokenized source line.
func (e *Encoder) EncodeLine(tokens []Token, lineNumber int) error {
	if e.state == Terminated || len(tokens) == 0 {
		return nil
	}

	idx := 0
	if tokens[0].Kind == LABEL {
		if err := e.handleLabel(tokens[0], lineNumber); err != nil {
			return err
		}
		idx = 1
		if idx >= len(tokens) {
			return nil
		}
	}

	head := tokens[idx]
	operands := tokens[idx+1:]

	switch head.Kind {
	case ACCESS_MODIFIER:
		return e.handleAccessModifier(head, operands, lineNumber)
	case SECTION:
		return e.handleSection(operands, lineNumber)
	case DIRECTIVE:
		if e.state == PreSection {
			return fail(lineNumber, ErrStructural, "directive outside any section")
		}
		return e.handleDirective(head, operands, lineNumber)
	case END_OF_SECTIONS:
		e.finalizeSection()
		e.state = Terminated
		return nil
	case INSTRUCTION:
		if e.state == PreSection {
			return fail(lineNumber, ErrStructural, "instruction outside any section")
		}
		return e.encodeInstruction(head, operands, lineNumber)
	default:
		return fail(lineNumber, ErrStructural, "unexpected token %v at start of line", head.Kind)
	}
}

func (e *Encoder) handleLabel(tok Token, lineNumber int) error {
	if e.state == PreSection {
		return fail(lineNumber, ErrStructural, "label %q outside any section", tok.Name)
	}
	if sym, ok := e.Symbols.GetByName(tok.Name); ok {
		if sym.Defined {
			return fail(lineNumber, ErrStructural, "symbol %q already defined", tok.Name)
		}
		sym.SectionId = e.currentSection
		sym.Value = e.lc
		sym.Defined = true
		return nil
	}
	_, err := e.Symbols.Insert(tok.Name, e.currentSection, e.lc, LOCAL, true)
	return err
}

func (e *Encoder) handleAccessModifier(head Token, operands []Token, lineNumber int) error {
	for _, op := range operands {
		if op.Kind != SYMBOL {
			return fail(lineNumber, ErrSemantic, "%s expects symbol names", head.Name)
		}
		switch head.Name {
		case ".global":
			e.pendingGlobal = append(e.pendingGlobal, pendingAccess{name: op.Name, line: lineNumber})
		case ".extern":
			e.pendingExtern = append(e.pendingExtern, pendingAccess{name: op.Name, line: lineNumber})
		}
	}
	return nil
}

func (e *Encoder) handleSection(operands []Token, lineNumber int) error {
	if len(operands) != 1 || operands[0].Kind != SYMBOL {
		return fail(lineNumber, ErrSemantic, ".section expects a single section name")
	}
	name := operands[0].Name

	e.finalizeSection()

	newId := e.Sections.NextId()
	symId, err := e.Symbols.Insert(name, newId, 0, LOCAL, true)
	if err != nil {
		return err
	}
	actualId, err := e.Sections.Insert(name, symId)
	if err != nil {
		return err
	}

	e.currentSection = actualId
	e.lc = 0
	e.state = InSection
	return nil
}

func (e *Encoder) finalizeSection() {
	if e.currentSection == startSection {
		return
	}
	if sec, ok := e.Sections.GetById(e.currentSection); ok {
		sec.Length = e.lc
	}
}

func (e *Encoder) handleDirective(head Token, operands []Token, lineNumber int) error {
	switch head.Name {
	case ".byte":
		return e.handleByteOrWord(operands, lineNumber, 1)
	case ".word":
		return e.handleByteOrWord(operands, lineNumber, 2)
	case ".skip":
		return e.handleSkip(operands, lineNumber)
	case ".equ":
		return e.handleEqu(operands, lineNumber)
	default:
		return fail(lineNumber, ErrLexical, "unknown directive %q", head.Name)
	}
}

func (e *Encoder) handleByteOrWord(operands []Token, lineNumber int, width int) error {
	if len(operands) == 0 {
		return fail(lineNumber, ErrSemantic, "directive requires at least one operand")
	}
	for _, op := range operands {
		switch op.Kind {
		case SYMBOL:
			patch := e.lc
			for i := 0; i < width; i++ {
				e.emitByte(0)
			}
			e.deferred = append(e.deferred, DeferredReference{
				SymbolName:        op.Name,
				InSection:         e.currentSection,
				PatchOffset:       patch,
				Kind:              R_386_16,
				NextInstructionLC: e.lc,
				ModifyOneByte:     width == 1,
			})
		case DECIMAL, HEXADECIMAL:
			v := op.IntValue
			for i := 0; i < width; i++ {
				e.emitByte(byte(v >> (8 * i)))
			}
		default:
			return fail(lineNumber, ErrSemantic, "unsupported operand kind %v for byte/word directive", op.Kind)
		}
	}
	return nil
}

func (e *Encoder) handleSkip(operands []Token, lineNumber int) error {
	if len(operands) != 1 || (operands[0].Kind != DECIMAL && operands[0].Kind != HEXADECIMAL) {
		return fail(lineNumber, ErrSemantic, ".skip expects a single numeric literal")
	}
	n := operands[0].IntValue
	if n < 0 {
		return fail(lineNumber, ErrSemantic, ".skip count must not be negative")
	}
	for i := int64(0); i < n; i++ {
		e.emitByte(0)
	}
	return nil
}

func (e *Encoder) handleEqu(operands []Token, lineNumber int) error {
	if len(operands) < 2 || operands[0].Kind != SYMBOL {
		return fail(lineNumber, ErrSemantic, ".equ expects a symbol name followed by an expression")
	}
	name := operands[0].Name
	expr := joinTokenText(operands[1:])

	if exprHasSymbol(expr) {
		_, err := e.Symbols.Insert(name, UndefinedSectionId, 0, LOCAL, false)
		if err != nil {
			return err
		}
		return e.TNS.Insert(e.currentSection, name, expr, LOCAL)
	}

	value, err := evaluateExpression(expr, e.Symbols, lineNumber)
	if err != nil {
		return err
	}
	_, err = e.Symbols.Insert(name, e.currentSection, value, LOCAL, true)
	return err
}

func joinTokenText(tokens []Token) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += " "
		}
		out += t.Text
	}
	return out
}

func (e *Encoder) emitByte(b byte) {
	e.bytes[e.currentSection] = append(e.bytes[e.currentSection], b)
	e.lc++
}

// instructionSize resolves the size class for a mnemonic and its scanned
// suffix. "sub" is never treated as carrying a byte suffix, even if the
// scanner split one off of "subb".
func instructionSize(mnemonic string, suffix byte) instructions.Size {
	if mnemonic == "sub" {
		return instructions.Word
	}
	if suffix == 'b' {
		return instructions.Byte
	}
	return instructions.Word
}

// operandEncoding is the addressing-mode byte plus trailing data bytes for
// one operand, and (if the operand refers to a symbol) the deferred
// reference it requires.
type operandEncoding struct {
	addressingByte byte
	data           []byte
	deferredKind   RelocationKind
	deferredName   string
}

func le(v int64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func (t Token) offsetIsZeroLiteral() bool {
	if t.OffsetKind != DECIMAL {
		return false
	}
	v, err := strconv.ParseInt(t.Offset, 10, 64)
	return err == nil && v == 0
}

func (t Token) offsetLiteralValue() (int64, error) {
	switch t.OffsetKind {
	case HEXADECIMAL:
		return strconv.ParseInt(t.Offset[2:], 16, 64)
	case DECIMAL:
		return strconv.ParseInt(t.Offset, 10, 64)
	default:
		return 0, nil
	}
}

// encodeOperand produces the addressing byte and data bytes for a single
// operand. It is used for both size calculation (§4.4.1) and emission
// (§4.4.2): the two stages call the exact same code, so they cannot
// disagree about an instruction's size.
func encodeOperand(op Token, size instructions.Size, isJump bool) (operandEncoding, error) {
	switch op.Kind {
	case REGISTER_DIRECT:
		addr := addressingByte(0b001, op.Register, op.RegisterHalf == 'h')
		return operandEncoding{addressingByte: addr}, nil

	case REGISTER_INDIRECT:
		if op.OffsetKind == -1 || op.offsetIsZeroLiteral() {
			addr := addressingByte(0b010, op.Register, false)
			return operandEncoding{addressingByte: addr}, nil
		}
		addr := addressingByte(0b011, op.Register, false)
		if op.OffsetKind == SYMBOL {
			return operandEncoding{addressingByte: addr, data: []byte{0, 0}, deferredKind: R_386_16, deferredName: op.Offset}, nil
		}
		v, err := op.offsetLiteralValue()
		if err != nil {
			return operandEncoding{}, err
		}
		return operandEncoding{addressingByte: addr, data: le(v, 2)}, nil

	case PC_RELATIVE:
		addr := addressingByte(0b011, 7, false)
		return operandEncoding{addressingByte: addr, data: []byte{0, 0}, deferredKind: R_386_PC16, deferredName: op.Name}, nil

	case IMMEDIATE_SYMBOL:
		return operandEncoding{addressingByte: 0x00, data: []byte{0, 0}, deferredKind: R_386_16, deferredName: op.Name}, nil

	case IMMEDIATE_DECIMAL, IMMEDIATE_HEXADECIMAL:
		n := 2
		if size == instructions.Byte {
			n = 1
		}
		return operandEncoding{addressingByte: 0x00, data: le(op.IntValue, n)}, nil

	case ASTERISK_SYMBOL:
		return operandEncoding{addressingByte: 0x80, data: []byte{0, 0}, deferredKind: R_386_16, deferredName: op.Name}, nil

	case ASTERISK_DECIMAL, ASTERISK_HEXADECIMAL:
		return operandEncoding{addressingByte: 0x80, data: le(op.IntValue, 2)}, nil

	case SYMBOL:
		if isJump {
			return operandEncoding{addressingByte: 0x00, data: []byte{0, 0}, deferredKind: R_386_16, deferredName: op.Name}, nil
		}
		return operandEncoding{addressingByte: 0x80, data: []byte{0, 0}, deferredKind: R_386_16, deferredName: op.Name}, nil

	case DECIMAL, HEXADECIMAL:
		if isJump {
			return operandEncoding{addressingByte: 0x00, data: le(op.IntValue, 2)}, nil
		}
		return operandEncoding{addressingByte: 0x80, data: le(op.IntValue, 2)}, nil

	default:
		return operandEncoding{}, fail(op.Line, ErrSemantic, "operand kind %v cannot appear in an instruction", op.Kind)
	}
}

// InstructionSize implements §4.4.1: the byte count an instruction will
// occupy, without emitting anything.
func InstructionSize(mnemonic string, suffix byte, operands []Token) (int, error) {
	size := instructionSize(mnemonic, suffix)
	isJump := instructions.IsJump(mnemonic)
	total := 1
	for _, op := range operands {
		enc, err := encodeOperand(op, size, isJump)
		if err != nil {
			return 0, err
		}
		total += 1 + len(enc.data)
	}
	return total, nil
}

func validateOperands(mnemonic string, size instructions.Size, operands []Token, lineNumber int) error {
	destIndex := -1
	switch len(operands) {
	case 1:
		if mnemonic == "pop" {
			destIndex = 0
		}
	case 2:
		if mnemonic == "shr" {
			destIndex = 0
		} else {
			destIndex = 1
		}
	}

	for i, op := range operands {
		isDest := i == destIndex
		switch op.Kind {
		case IMMEDIATE_SYMBOL, IMMEDIATE_DECIMAL, IMMEDIATE_HEXADECIMAL:
			if isDest {
				return fail(lineNumber, ErrSemantic, "immediate value cannot be a destination operand")
			}
		case REGISTER_DIRECT:
			if op.Register == 15 && isDest {
				return fail(lineNumber, ErrSemantic, "%%psw (%%r15) cannot be a destination operand")
			}
			if size == instructions.Byte && op.RegisterHalf == 0 {
				return fail(lineNumber, ErrSemantic, "byte-size register operand requires an h or l suffix")
			}
			if size == instructions.Word && op.RegisterHalf != 0 {
				return fail(lineNumber, ErrSemantic, "word-size register operand must not carry an h or l suffix")
			}
		case REGISTER_INDIRECT:
			if op.Register == 15 {
				return fail(lineNumber, ErrSemantic, "%%r15 cannot be used with register-indirect addressing")
			}
		}
	}
	return nil
}

func (e *Encoder) encodeInstruction(head Token, operands []Token, lineNumber int) error {
	desc, ok := instructions.Lookup(head.Mnemonic)
	if !ok {
		return fail(lineNumber, ErrLexical, "unknown instruction %q", head.Mnemonic)
	}
	if len(operands) != desc.OperandCount {
		return fail(lineNumber, ErrSemantic, "%s expects %d operand(s), got %d", head.Mnemonic, desc.OperandCount, len(operands))
	}

	size := instructionSize(head.Mnemonic, head.SizeSuffix)
	if err := validateOperands(head.Mnemonic, size, operands, lineNumber); err != nil {
		return err
	}

	totalSize, err := InstructionSize(head.Mnemonic, head.SizeSuffix, operands)
	if err != nil {
		return err
	}
	startLC := e.lc
	isJump := instructions.IsJump(head.Mnemonic)

	var opcodeByte uint8
	opcodeView := utils.CreateBitView(&opcodeByte)
	opcodeView.Write(uint8(desc.OpCode), 3, 5)
	opcodeView.Write(uint8(size), 2, 1)
	e.emitByte(byte(opcodeByte))

	for _, op := range operands {
		enc, err := encodeOperand(op, size, isJump)
		if err != nil {
			return err
		}
		patchOffset := e.lc + 1
		e.emitByte(enc.addressingByte)
		for _, b := range enc.data {
			e.emitByte(b)
		}
		if enc.deferredName != "" {
			e.deferred = append(e.deferred, DeferredReference{
				SymbolName:        enc.deferredName,
				InSection:         e.currentSection,
				PatchOffset:       patchOffset,
				Kind:              enc.deferredKind,
				NextInstructionLC: startLC + int64(totalSize),
				ModifyOneByte:     false,
			})
		}
	}

	return nil
}
