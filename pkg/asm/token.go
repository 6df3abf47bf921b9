package asm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/halvardf/asm16/pkg/asm/instructions"
)

// TokenKind is the closed set of lexical categories a lexeme can be
// classified into. Prefixed variants (ASTERISK_*, IMMEDIATE_*) exist only
// over SYMBOL, DECIMAL and HEXADECIMAL.
type TokenKind int

const (
	ACCESS_MODIFIER TokenKind = iota
	LABEL
	SECTION
	DIRECTIVE
	INSTRUCTION
	END_OF_SECTIONS
	ARITHMETIC_OPERATOR
	SYMBOL
	DECIMAL
	HEXADECIMAL
	REGISTER_DIRECT
	PC_RELATIVE
	REGISTER_INDIRECT
	ARITHMETIC_EXPRESSION

	ASTERISK_SYMBOL
	ASTERISK_DECIMAL
	ASTERISK_HEXADECIMAL
	IMMEDIATE_SYMBOL
	IMMEDIATE_DECIMAL
	IMMEDIATE_HEXADECIMAL
)

func (k TokenKind) String() string {
	switch k {
	case ACCESS_MODIFIER:
		return "ACCESS_MODIFIER"
	case LABEL:
		return "LABEL"
	case SECTION:
		return "SECTION"
	case DIRECTIVE:
		return "DIRECTIVE"
	case INSTRUCTION:
		return "INSTRUCTION"
	case END_OF_SECTIONS:
		return "END_OF_SECTIONS"
	case ARITHMETIC_OPERATOR:
		return "ARITHMETIC_OPERATOR"
	case SYMBOL:
		return "SYMBOL"
	case DECIMAL:
		return "DECIMAL"
	case HEXADECIMAL:
		return "HEXADECIMAL"
	case REGISTER_DIRECT:
		return "REGISTER_DIRECT"
	case PC_RELATIVE:
		return "PC_RELATIVE"
	case REGISTER_INDIRECT:
		return "REGISTER_INDIRECT"
	case ARITHMETIC_EXPRESSION:
		return "ARITHMETIC_EXPRESSION"
	case ASTERISK_SYMBOL:
		return "ASTERISK_SYMBOL"
	case ASTERISK_DECIMAL:
		return "ASTERISK_DECIMAL"
	case ASTERISK_HEXADECIMAL:
		return "ASTERISK_HEXADECIMAL"
	case IMMEDIATE_SYMBOL:
		return "IMMEDIATE_SYMBOL"
	case IMMEDIATE_DECIMAL:
		return "IMMEDIATE_DECIMAL"
	case IMMEDIATE_HEXADECIMAL:
		return "IMMEDIATE_HEXADECIMAL"
	default:
		return "UNKNOWN"
	}
}

var registerAliases = map[string]string{
	"%sp":  "%r6",
	"%pc":  "%r7",
	"%psw": "%r15",
}

var (
	reAccessModifier = regexp.MustCompile(`^\.(global|extern)$`)
	reLabel          = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*):$`)
	reSection        = regexp.MustCompile(`^\.section$`)
	reDirective      = regexp.MustCompile(`^\.(byte|word|skip|equ)$`)
	reEndOfSections  = regexp.MustCompile(`^\.end$`)
	reOperator       = regexp.MustCompile(`^[+-]$`)
	reSymbol         = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	reDecimal        = regexp.MustCompile(`^[+-]?[0-9]+$`)
	reHexadecimal    = regexp.MustCompile(`^0[xX][0-9A-Fa-f]+$`)
	reRegisterDirect = regexp.MustCompile(`^%r([0-7]|15)([hl])?$`)
	rePCRelative     = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\(%r7\)$`)
	reRegIndirect    = regexp.MustCompile(`^(0[xX][0-9A-Fa-f]+|[+-]?[0-9]+|[A-Za-z][A-Za-z0-9_]*)?\(%r([0-7]|15)([hl])?\)$`)
	reInstruction    = regexp.MustCompile(`^(?i:` + strings.Join(instructions.Mnemonics(), "|") + `)([bw])?$`)
)

// Scan classifies a single whitespace-split lexeme into a Token, or fails
// with a lexical AssemblyException carrying line.
func Scan(lexeme string, line int) (Token, error) {
	text := lexeme
	for alias, canonical := range registerAliases {
		text = strings.ReplaceAll(text, alias, canonical)
	}

	asterisk := false
	immediate := false
	body := text

	switch {
	case strings.HasPrefix(body, "*"):
		asterisk = true
		body = body[1:]
	case strings.HasPrefix(body, "$"):
		immediate = true
		body = body[1:]
	}

	tok, err := classify(body, line)
	if err != nil {
		return Token{}, err
	}
	tok.Text = text
	tok.Line = line

	if asterisk || immediate {
		switch tok.Kind {
		case SYMBOL:
			if asterisk {
				tok.Kind = ASTERISK_SYMBOL
			} else {
				tok.Kind = IMMEDIATE_SYMBOL
			}
		case DECIMAL:
			if asterisk {
				tok.Kind = ASTERISK_DECIMAL
			} else {
				tok.Kind = IMMEDIATE_DECIMAL
			}
		case HEXADECIMAL:
			if asterisk {
				tok.Kind = ASTERISK_HEXADECIMAL
			} else {
				tok.Kind = IMMEDIATE_HEXADECIMAL
			}
		default:
			prefix := "*"
			if immediate {
				prefix = "$"
			}
			return Token{}, fail(line, ErrLexical, "prefix %q not allowed on token of kind %v", prefix, tok.Kind)
		}
	}

	return tok, nil
}

// Token is the concrete payload-bearing Token value returned by Scan.
type Token struct {
	Kind TokenKind
	Text string
	Line int

	// SYMBOL / LABEL / SECTION operand / ACCESS_MODIFIER operand name.
	Name string
	// DECIMAL / HEXADECIMAL numeric value.
	IntValue int64
	// REGISTER_DIRECT / PC_RELATIVE / REGISTER_INDIRECT register index.
	Register int
	// 'h', 'l', or 0.
	RegisterHalf byte
	// REGISTER_INDIRECT offset text: "", decimal, hex, or symbol.
	Offset string
	// Kind of Offset: DECIMAL, HEXADECIMAL, SYMBOL, or -1 if empty.
	OffsetKind TokenKind
	// INSTRUCTION base mnemonic, lowercased, suffix stripped.
	Mnemonic string
	// 'b', 'w', or 0.
	SizeSuffix byte
}

func classify(body string, line int) (Token, error) {
	switch {
	case reAccessModifier.MatchString(body):
		return Token{Kind: ACCESS_MODIFIER, Name: body}, nil
	case reLabel.MatchString(body):
		m := reLabel.FindStringSubmatch(body)
		return Token{Kind: LABEL, Name: m[1]}, nil
	case reSection.MatchString(body):
		return Token{Kind: SECTION}, nil
	case reDirective.MatchString(body):
		return Token{Kind: DIRECTIVE, Name: body}, nil
	case reEndOfSections.MatchString(body):
		return Token{Kind: END_OF_SECTIONS}, nil
	case reRegisterDirect.MatchString(body):
		m := reRegisterDirect.FindStringSubmatch(body)
		reg, _ := strconv.Atoi(m[1])
		var half byte
		if m[2] != "" {
			half = m[2][0]
		}
		return Token{Kind: REGISTER_DIRECT, Register: reg, RegisterHalf: half}, nil
	case rePCRelative.MatchString(body):
		m := rePCRelative.FindStringSubmatch(body)
		return Token{Kind: PC_RELATIVE, Register: 7, Name: m[1]}, nil
	case reRegIndirect.MatchString(body):
		m := reRegIndirect.FindStringSubmatch(body)
		reg, _ := strconv.Atoi(m[2])
		var half byte
		if m[3] != "" {
			half = m[3][0]
		}
		offset := m[1]
		offsetKind := TokenKind(-1)
		switch {
		case offset == "":
			offsetKind = -1
		case reHexadecimal.MatchString(offset):
			offsetKind = HEXADECIMAL
		case reDecimal.MatchString(offset):
			offsetKind = DECIMAL
		default:
			offsetKind = SYMBOL
		}
		return Token{Kind: REGISTER_INDIRECT, Register: reg, RegisterHalf: half, Offset: offset, OffsetKind: offsetKind}, nil
	case reHexadecimal.MatchString(body):
		v, err := strconv.ParseInt(body[2:], 16, 64)
		if err != nil {
			return Token{}, fail(line, ErrLexical, "malformed hexadecimal literal %q", body)
		}
		return Token{Kind: HEXADECIMAL, IntValue: v}, nil
	case reDecimal.MatchString(body):
		v, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Token{}, fail(line, ErrLexical, "malformed decimal literal %q", body)
		}
		return Token{Kind: DECIMAL, IntValue: v}, nil
	case reInstruction.MatchString(body):
		m := reInstruction.FindStringSubmatch(body)
		var suffix byte
		mnemonic := body
		if m[1] != "" {
			suffix = m[1][0]
			mnemonic = body[:len(body)-1]
		}
		return Token{Kind: INSTRUCTION, Mnemonic: strings.ToLower(mnemonic), SizeSuffix: suffix}, nil
	case reOperator.MatchString(body):
		return Token{Kind: ARITHMETIC_OPERATOR, Name: body}, nil
	case reSymbol.MatchString(body):
		return Token{Kind: SYMBOL, Name: body}, nil
	default:
		if tok, ok := scanArithmeticExpression(body, line); ok {
			return tok, nil
		}
		return Token{}, fail(line, ErrLexical, "cannot parse lexeme %q", body)
	}
}

// scanArithmeticExpression is the fallback path: split the lexeme on '+'/'-'
// into pieces that each parse (non-recursively) as a literal or symbol. It
// never recurses into classify for the ARITHMETIC_EXPRESSION kind itself,
// avoiding infinite recursion on an unparsable piece.
func scanArithmeticExpression(body string, line int) (Token, bool) {
	pieces := splitArithmetic(body)
	if len(pieces) < 2 {
		return Token{}, false
	}
	for _, p := range pieces {
		if p == "+" || p == "-" {
			continue
		}
		if !reSymbol.MatchString(p) && !reDecimal.MatchString(p) && !reHexadecimal.MatchString(p) {
			return Token{}, false
		}
	}
	return Token{Kind: ARITHMETIC_EXPRESSION, Name: body}, true
}

// splitArithmetic splits s into a flat alternating sequence of
// operand/operator pieces on '+' and '-', keeping the operators as
// standalone pieces. A leading sign is folded into its operand.
func splitArithmetic(s string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(s); i++ {
		if (s[i] == '+' || s[i] == '-') && i > start {
			pieces = append(pieces, s[start:i], string(s[i]))
			start = i + 1
		}
	}
	pieces = append(pieces, s[start:])
	return pieces
}
