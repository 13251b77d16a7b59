// Package lang carries the per-language capability tables used by the
// symbol index: how names are mangled and displayed, whether a language
// has an implicit receiver, how its search names sort, and what the
// program entry point is called.
package lang

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

type ID uint8

const (
	Unknown ID = iota
	Asm
	C
	CPlusPlus
	ObjC
	Java
	Ada
	Go
)

func (id ID) String() string {
	if def := Get(id); def != nil {
		return def.Name
	}
	return "unknown"
}

// Def is the capability record for one language. Languages with no
// special needs use the zero-ish defaults of the C entry.
type Def struct {
	ID   ID
	Name string

	// NameOfThis is the implicit receiver name ("this", "self"), or
	// empty for languages without one.
	NameOfThis string

	// StructAliasing reports whether a struct/class declaration also
	// defines a usable plain name (so `class Foo {};` answers a
	// variable-domain query for "Foo").
	StructAliasing bool

	// SortedSearchNames reports whether natural-name ordering is
	// consistent with linkage-name ordering. When false, binary search
	// over sorted partial symbols must downgrade to a linear scan.
	SortedSearchNames bool

	// Mangled reports whether linkage names encode signatures and need
	// demangling to produce the natural name.
	Mangled bool

	// MainName is the conventional entry-point symbol.
	MainName string
}

var defs = map[ID]*Def{
	Unknown:   {ID: Unknown, Name: "unknown", SortedSearchNames: true, MainName: "main"},
	Asm:       {ID: Asm, Name: "asm", SortedSearchNames: true, MainName: "main"},
	C:         {ID: C, Name: "c", SortedSearchNames: true, MainName: "main"},
	CPlusPlus: {ID: CPlusPlus, Name: "c++", NameOfThis: "this", StructAliasing: true, SortedSearchNames: true, Mangled: true, MainName: "main"},
	ObjC:      {ID: ObjC, Name: "objective-c", NameOfThis: "self", SortedSearchNames: true, Mangled: true, MainName: "main"},
	Java:      {ID: Java, Name: "java", NameOfThis: "this", StructAliasing: true, SortedSearchNames: false, Mangled: true, MainName: "main"},
	Ada:       {ID: Ada, Name: "ada", StructAliasing: true, SortedSearchNames: true, MainName: "main"},
	Go:        {ID: Go, Name: "go", SortedSearchNames: true, MainName: "main.main"},
}

// Get returns the capability record for id. Unknown ids fall back to
// the Unknown entry.
func Get(id ID) *Def {
	if d, ok := defs[id]; ok {
		return d
	}
	return defs[Unknown]
}

// Demangle produces the natural name for a linkage name, reporting
// whether demangling applied. Languages without mangling return the
// input unchanged.
func (d *Def) Demangle(linkage string) (string, bool) {
	if !d.Mangled {
		return linkage, false
	}
	switch d.ID {
	case CPlusPlus, ObjC:
		out, err := demangle.ToString(linkage)
		if err != nil {
			return linkage, false
		}
		return out, true
	case Java:
		// Java linkage names in older readers reuse the C++ encoding.
		out, err := demangle.ToString(linkage)
		if err != nil {
			return linkage, false
		}
		return out, true
	}
	return linkage, false
}

// MethodAlternates returns the secondary completion spellings of a
// message-style method name: the bracket-free form, the category-free
// form, and the bare selector. Names that are not message sends
// produce nothing.
func MethodAlternates(natural string) []string {
	if len(natural) < 2 || (natural[0] != '-' && natural[0] != '+') {
		return nil
	}
	var out []string

	// "-[Class(Category) sel:]" without the leading sign and bracket.
	if natural[1] == '[' {
		out = append(out, natural[1:])
	}

	sp := strings.IndexByte(natural, ' ')
	par := strings.IndexByte(natural, '(')
	if par >= 0 && sp >= 0 && par < sp {
		// Drop the category: "-[Class sel:]".
		stripped := natural[:par] + " " + natural[sp+1:]
		out = append(out, stripped)
		if len(stripped) > 1 && stripped[1] == '[' {
			out = append(out, stripped[1:])
		}
	}

	if sp >= 0 && sp+1 < len(natural) {
		sel := natural[sp+1:]
		sel = strings.TrimSuffix(sel, "]")
		if sel != "" {
			out = append(out, sel)
		}
	}
	return out
}
