// Package minsym holds the link-time symbol table of a loaded binary:
// the flat, non-debug symbols used as a fallback when no debug info
// covers an address or name. The table is built elsewhere; this package
// owns the queried shape only.
package minsym

import (
	"sort"

	"github.com/debuglab/symcore/lang"
)

// Kind is the coarse classification a link-time symbol carries.
type Kind uint8

const (
	Unknown Kind = iota
	Text
	Data
	BSS
	Absolute
	Trampoline
	FileText
	FileData
	FileBSS
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Data:
		return "data"
	case BSS:
		return "bss"
	case Absolute:
		return "absolute"
	case Trampoline:
		return "trampoline"
	case FileText:
		return "file text"
	case FileData:
		return "file data"
	case FileBSS:
		return "file bss"
	}
	return "unknown"
}

// DataLike reports whether the symbol marks a non-code address.
func (k Kind) DataLike() bool {
	switch k {
	case Data, BSS, Absolute, FileData, FileBSS:
		return true
	}
	return false
}

// Code reports whether the symbol marks a real code address. Trampolines
// are code but not the real function, so they are excluded.
func (k Kind) Code() bool {
	return k == Text || k == FileText
}

type Sym struct {
	Name    string // linkage name
	Natural string // display name; empty means same as Name
	Addr    uint64
	Kind    Kind
	Section string
	Lang    lang.ID
}

// NaturalName returns the display form of the symbol's name.
func (s *Sym) NaturalName() string {
	if s.Natural != "" {
		return s.Natural
	}
	return s.Name
}

// Table is an address-sorted, name-indexed link-time symbol table.
type Table struct {
	syms   []Sym
	byName map[string][]int
}

// NewTable builds a table over syms. The input is copied and sorted by
// address; entries with equal addresses keep their relative order.
func NewTable(syms []Sym) *Table {
	t := &Table{
		syms:   make([]Sym, len(syms)),
		byName: make(map[string][]int, len(syms)),
	}
	copy(t.syms, syms)
	sort.SliceStable(t.syms, func(i, j int) bool {
		return t.syms[i].Addr < t.syms[j].Addr
	})
	for i := range t.syms {
		name := t.syms[i].Name
		t.byName[name] = append(t.byName[name], i)
	}
	return t
}

func (t *Table) Len() int { return len(t.syms) }

// At returns the i-th symbol in address order.
func (t *Table) At(i int) *Sym { return &t.syms[i] }

// ByPC returns the symbol with the greatest address <= pc, or nil.
func (t *Table) ByPC(pc uint64) *Sym {
	return t.ByPCSection(pc, "")
}

// ByPCSection behaves like ByPC but, when section is non-empty, only
// considers symbols recorded in that section.
func (t *Table) ByPCSection(pc uint64, section string) *Sym {
	if len(t.syms) == 0 {
		return nil
	}
	i := sort.Search(len(t.syms), func(i int) bool {
		return pc < t.syms[i].Addr
	})
	for i--; i >= 0; i-- {
		s := &t.syms[i]
		if section == "" || s.Section == section {
			return s
		}
	}
	return nil
}

// ByName returns every symbol with the given linkage name.
func (t *Table) ByName(name string) []*Sym {
	idx := t.byName[name]
	if len(idx) == 0 {
		return nil
	}
	out := make([]*Sym, len(idx))
	for i, j := range idx {
		out[i] = &t.syms[j]
	}
	return out
}

// TextByName returns the first real code symbol with the given name,
// skipping trampolines. Used to redirect a call stub to the function it
// stands in for.
func (t *Table) TextByName(name string) *Sym {
	for _, j := range t.byName[name] {
		if t.syms[j].Kind.Code() {
			return &t.syms[j]
		}
	}
	return nil
}
