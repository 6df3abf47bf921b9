package asm

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// delimiter splits a source line into lexemes on tabs, commas and runs of
// spaces, mirroring the external interface's stated token delimiters.
var delimiter = regexp.MustCompile(`[\t, ]+`)

// Assemble runs the full single-pass pipeline — line splitting, scanning,
// encoding and resolution — over src and returns the populated Encoder
// ready for listing.
func Assemble(src io.Reader) (*Encoder, error) {
	e := NewEncoder()

	scanner := bufio.NewScanner(src)
	lineNumber := 0
	sawEnd := false

	for scanner.Scan() {
		lineNumber++
		raw := scanner.Text()

		if hash := strings.IndexByte(raw, '#'); hash >= 0 {
			raw = raw[:hash]
		}
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}

		lexemes := delimiter.Split(raw, -1)
		tokens := make([]Token, 0, len(lexemes))
		for _, lex := range lexemes {
			if lex == "" {
				continue
			}
			tok, err := Scan(lex, lineNumber)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		}
		if len(tokens) == 0 {
			continue
		}

		if containsEndOfSections(tokens) {
			sawEnd = true
		}
		if err := e.EncodeLine(tokens, lineNumber); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawEnd {
		if err := e.EncodeLine([]Token{{Kind: END_OF_SECTIONS}}, lineNumber+1); err != nil {
			return nil, err
		}
	}

	if err := Resolve(e); err != nil {
		return nil, err
	}
	return e, nil
}

func containsEndOfSections(tokens []Token) bool {
	for _, t := range tokens {
		if t.Kind == END_OF_SECTIONS {
			return true
		}
	}
	return false
}
