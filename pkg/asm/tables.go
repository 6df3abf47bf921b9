package asm

import (
	"fmt"
	"io"
	"sort"

	"github.com/halvardf/asm16/pkg/utils"
)

// Scope is a symbol's visibility.
type Scope int

const (
	LOCAL Scope = iota
	GLOBAL
	EXTERN
)

func (s Scope) String() string {
	switch s {
	case LOCAL:
		return "LOCAL"
	case GLOBAL:
		return "GLOBAL"
	case EXTERN:
		return "EXTERN"
	default:
		return "UNKNOWN"
	}
}

// RelocationKind is the borrowed-ELF-nomenclature relocation type.
type RelocationKind int

const (
	R_386_16 RelocationKind = iota
	R_386_PC16
)

func (k RelocationKind) String() string {
	if k == R_386_PC16 {
		return "R_386_PC16"
	}
	return "R_386_16"
}

type SymbolId int
type SectionId int
type RelocationId int

// UndefinedSectionId is the reserved UND section, id 0, hosting EXTERN
// symbols and symbols not yet assigned to a real section.
const UndefinedSectionId SectionId = 0

// Symbol is one entry of the symbol table.
type Symbol struct {
	Id        SymbolId
	Name      string
	SectionId SectionId
	Value     int64
	Scope     Scope
	Defined   bool
}

// SymbolTable is the dense, name-unique table of symbols.
type SymbolTable struct {
	entries []*Symbol
	byName  map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// Insert fails on duplicate name.
func (t *SymbolTable) Insert(name string, section SectionId, value int64, scope Scope, defined bool) (SymbolId, error) {
	if _, exists := t.byName[name]; exists {
		return 0, fmt.Errorf("%w: symbol %q already declared", ErrStructural, name)
	}
	id := SymbolId(len(t.entries))
	sym := &Symbol{Id: id, Name: name, SectionId: section, Value: value, Scope: scope, Defined: defined}
	t.entries = append(t.entries, sym)
	t.byName[name] = sym
	return id, nil
}

func (t *SymbolTable) GetById(id SymbolId) (*Symbol, bool) {
	if int(id) < 0 || int(id) >= len(t.entries) {
		return nil, false
	}
	return t.entries[id], true
}

func (t *SymbolTable) GetByName(name string) (*Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

func (t *SymbolTable) Size() int { return len(t.entries) }

// All returns symbols ordered by id.
func (t *SymbolTable) All() []*Symbol {
	out := make([]*Symbol, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (t *SymbolTable) Render(w io.Writer) {
	fmt.Fprintln(w, "<--Symbol table-->")
	fmt.Fprintf(w, "%-15s%-15s%-15s%-15s%-15s\n", "EntryNumber", "Name", "SectionNumber", "Value", "Scope")
	for _, s := range t.All() {
		sectionField := "N/A"
		if s.SectionId != UndefinedSectionId {
			sectionField = utils.FormatUintHex(uint64(s.SectionId), 1)
		}
		fmt.Fprintf(w, "%-15s%-15s%-15s%-15s%-15s\n",
			utils.FormatUintHex(uint64(s.Id), 1), s.Name, sectionField, utils.FormatUintHex(uint64(s.Value), 1), s.Scope)
	}
}

// Section is one entry of the section table.
type Section struct {
	Id       SectionId
	Name     string
	Length   int64
	SymbolId SymbolId
}

// SectionTable is the dense, name-unique table of sections. It is seeded
// with the reserved UND section at id 0.
type SectionTable struct {
	entries []*Section
	byName  map[string]*Section
}

func NewSectionTable() *SectionTable {
	t := &SectionTable{byName: make(map[string]*Section)}
	t.entries = append(t.entries, &Section{Id: UndefinedSectionId, Name: "UND"})
	t.byName["UND"] = t.entries[0]
	return t
}

func (t *SectionTable) Insert(name string, symbolId SymbolId) (SectionId, error) {
	if _, exists := t.byName[name]; exists {
		return 0, fmt.Errorf("%w: section %q already declared", ErrStructural, name)
	}
	id := SectionId(len(t.entries))
	sec := &Section{Id: id, Name: name, SymbolId: symbolId}
	t.entries = append(t.entries, sec)
	t.byName[name] = sec
	return id, nil
}

func (t *SectionTable) GetById(id SectionId) (*Section, bool) {
	if int(id) < 0 || int(id) >= len(t.entries) {
		return nil, false
	}
	return t.entries[id], true
}

func (t *SectionTable) GetByName(name string) (*Section, bool) {
	s, ok := t.byName[name]
	return s, ok
}

func (t *SectionTable) Size() int { return len(t.entries) }

// NextId returns the id the next Insert call will assign.
func (t *SectionTable) NextId() SectionId { return SectionId(len(t.entries)) }

func (t *SectionTable) All() []*Section {
	out := make([]*Section, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (t *SectionTable) Render(w io.Writer) {
	fmt.Fprintln(w, "<--Section table-->")
	fmt.Fprintf(w, "%-15s%-15s%-15s%-15s\n", "EntryNumber", "Name", "Length", "SymbolEntryNumber")
	for _, s := range t.All() {
		fmt.Fprintf(w, "%-15s%-15s%-15s%-15s\n",
			utils.FormatUintHex(uint64(s.Id), 1), s.Name, utils.FormatUintHex(uint64(s.Length), 1), utils.FormatUintHex(uint64(s.SymbolId), 1))
	}
}

// Relocation is one entry of the relocation table, append-only.
type Relocation struct {
	Id        RelocationId
	SectionId SectionId
	Offset    int64
	Kind      RelocationKind
	Value     SymbolId
}

type RelocationTable struct {
	entries []*Relocation
}

func NewRelocationTable() *RelocationTable {
	return &RelocationTable{}
}

func (t *RelocationTable) Insert(section SectionId, offset int64, kind RelocationKind, value SymbolId) RelocationId {
	id := RelocationId(len(t.entries))
	t.entries = append(t.entries, &Relocation{Id: id, SectionId: section, Offset: offset, Kind: kind, Value: value})
	return id
}

func (t *RelocationTable) Size() int { return len(t.entries) }

// ForSection returns relocations belonging to section, in insertion order.
func (t *RelocationTable) ForSection(section SectionId) []*Relocation {
	var out []*Relocation
	for _, r := range t.entries {
		if r.SectionId == section {
			out = append(out, r)
		}
	}
	return out
}

func (t *RelocationTable) Render(w io.Writer, section SectionId) {
	fmt.Fprintf(w, "%-15s%-15s%-15s\n", "Offset", "RelocationType", "Value")
	for _, r := range t.ForSection(section) {
		fmt.Fprintf(w, "%-15s%-15s%-15s\n", utils.FormatUintHex(uint64(r.Offset), 1), r.Kind, utils.FormatUintHex(uint64(r.Value), 1))
	}
}

// TNSEntry is a pending ".equ" expression awaiting fixed-point resolution.
type TNSEntry struct {
	SectionId  SectionId
	Name       string
	Expression string
	Scope      Scope
}

// TNSTable holds entries by name, rejecting duplicates, until resolved.
type TNSTable struct {
	byName map[string]*TNSEntry
	order  []string
}

func NewTNSTable() *TNSTable {
	return &TNSTable{byName: make(map[string]*TNSEntry)}
}

func (t *TNSTable) Insert(section SectionId, name, expression string, scope Scope) error {
	if _, exists := t.byName[name]; exists {
		return fmt.Errorf("%w: TNS symbol %q already pending", ErrStructural, name)
	}
	t.byName[name] = &TNSEntry{SectionId: section, Name: name, Expression: expression, Scope: scope}
	t.order = append(t.order, name)
	return nil
}

func (t *TNSTable) GetByName(name string) (*TNSEntry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

func (t *TNSTable) DeleteByName(name string) {
	delete(t.byName, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *TNSTable) Size() int { return len(t.order) }

// Entries returns pending entries in insertion order.
func (t *TNSTable) Entries() []*TNSEntry {
	out := make([]*TNSEntry, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.byName[n])
	}
	return out
}

// DeferredReference is one entry of the deferred-reference log, patched
// during backpatching. ModifyOneByte distinguishes one-byte vs two-byte
// patches.
type DeferredReference struct {
	SymbolName        string
	InSection         SectionId
	PatchOffset       int64
	Kind              RelocationKind
	NextInstructionLC int64
	ModifyOneByte     bool
}
