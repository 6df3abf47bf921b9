package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/halvardf/asm16/pkg/utils"
)

// RenderText writes the canonical textual object listing described by the
// external interface: symbol table, section table, then per-section
// relocation table and raw byte dump for every section that has emitted
// bytes.
func RenderText(w io.Writer, e *Encoder) {
	e.Symbols.Render(w)
	fmt.Fprintln(w)
	e.Sections.Render(w)
	fmt.Fprintln(w)

	for _, sec := range e.Sections.All() {
		if sec.Id == UndefinedSectionId {
			continue
		}
		bytes := e.bytes[sec.Id]
		if len(bytes) == 0 && e.Relocations.ForSection(sec.Id) == nil {
			continue
		}
		fmt.Fprintf(w, "<--Section '%s'-->\n", sec.Name)
		e.Relocations.Render(w, sec.Id)
		renderBytes(w, bytes)
		fmt.Fprintln(w)
	}
}

func renderBytes(w io.Writer, bytes []byte) {
	for i := 0; i < len(bytes); i += 8 {
		end := i + 8
		if end > len(bytes) {
			end = len(bytes)
		}
		line := make([]string, 0, 8)
		for _, b := range bytes[i:end] {
			line = append(line, fmt.Sprintf("%02x", b))
		}
		fmt.Fprintln(w, utils.FormatSlice(line, " "))
	}
}

// Listing is the structured, full-fidelity representation used by the
// alternate "yaml" output format.
type Listing struct {
	Symbols     []ListingSymbol     `yaml:"symbols"`
	Sections    []ListingSection    `yaml:"sections"`
	Relocations []ListingRelocation `yaml:"relocations"`
	Bytes       map[string]string   `yaml:"bytes"`
}

type ListingSymbol struct {
	Id      SymbolId `yaml:"id"`
	Name    string   `yaml:"name"`
	Section string   `yaml:"section"`
	Value   int64    `yaml:"value"`
	Scope   string   `yaml:"scope"`
	Defined bool     `yaml:"defined"`
}

type ListingSection struct {
	Id     SectionId `yaml:"id"`
	Name   string    `yaml:"name"`
	Length int64     `yaml:"length"`
}

type ListingRelocation struct {
	Section string `yaml:"section"`
	Offset  int64  `yaml:"offset"`
	Kind    string `yaml:"kind"`
	Value   string `yaml:"value"`
}

// BuildListing projects the encoder's final tables into the
// format-independent Listing value consumed by the yaml renderer and by
// the interactive viewer.
func BuildListing(e *Encoder) Listing {
	l := Listing{Bytes: make(map[string]string)}

	for _, s := range e.Symbols.All() {
		sectionName := "N/A"
		if sec, ok := e.Sections.GetById(s.SectionId); ok && s.SectionId != UndefinedSectionId {
			sectionName = sec.Name
		}
		l.Symbols = append(l.Symbols, ListingSymbol{
			Id: s.Id, Name: s.Name, Section: sectionName, Value: s.Value, Scope: s.Scope.String(), Defined: s.Defined,
		})
	}

	for _, sec := range e.Sections.All() {
		l.Sections = append(l.Sections, ListingSection{Id: sec.Id, Name: sec.Name, Length: sec.Length})

		for _, r := range e.Relocations.ForSection(sec.Id) {
			target, _ := e.Symbols.GetById(r.Value)
			targetName := ""
			if target != nil {
				targetName = target.Name
			}
			l.Relocations = append(l.Relocations, ListingRelocation{
				Section: sec.Name, Offset: r.Offset, Kind: r.Kind.String(), Value: targetName,
			})
		}

		if sec.Id != UndefinedSectionId {
			var sb strings.Builder
			renderBytes(&sb, e.bytes[sec.Id])
			l.Bytes[sec.Name] = strings.TrimRight(sb.String(), "\n")
		}
	}

	return l
}

// LegacySymbolValues is the flat map emitted by the "yaml-legacy" format: a
// downstream consumer that only ever understood final resolved symbol
// values, not the full table structure.
func LegacySymbolValues(e *Encoder) map[string]int64 {
	out := make(map[string]int64)
	for _, s := range e.Symbols.All() {
		if s.Defined {
			out[s.Name] = s.Value
		}
	}
	return out
}
