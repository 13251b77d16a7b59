package symtab

import (
	"strings"

	"github.com/debuglab/symcore/lang"
)

// Domain is the namespace a name lives in. Two same-named entities in
// different domains do not collide.
type Domain uint8

const (
	UndefDomain Domain = iota
	VarDomain
	StructDomain
	LabelDomain
)

func (d Domain) String() string {
	switch d {
	case VarDomain:
		return "variable"
	case StructDomain:
		return "struct"
	case LabelDomain:
		return "label"
	}
	return "undefined"
}

// AddrClass tells how a symbol's value is interpreted.
type AddrClass uint8

const (
	LocUndef AddrClass = iota
	LocStatic           // value is an absolute address
	LocRegister         // value is a register number
	LocArg              // argument slot
	LocComputed         // location computed at block entry
	LocTypedef          // no runtime storage
	LocConst            // value is the constant itself
	LocBlock            // function entry; the symbol owns a block
	LocLabel            // code label address
	LocOptimizedOut
)

func (c AddrClass) String() string {
	switch c {
	case LocStatic:
		return "static"
	case LocRegister:
		return "register"
	case LocArg:
		return "arg"
	case LocComputed:
		return "computed"
	case LocTypedef:
		return "typedef"
	case LocConst:
		return "const"
	case LocBlock:
		return "block"
	case LocLabel:
		return "label"
	case LocOptimizedOut:
		return "optimized out"
	}
	return "undefined"
}

type TypeCode uint8

const (
	CodeUndef TypeCode = iota
	CodeBase
	CodePtr
	CodeRef
	CodeStruct
	CodeUnion
	CodeTypedef
)

// Type is the minimal type shape the resolvers need: enough to strip
// indirection off an implicit receiver and enumerate aggregate fields.
type Type struct {
	Code   TypeCode
	Name   string
	Target *Type // pointee, referent, or typedef target
	Fields []Field
	Opaque bool // declared but not defined here
}

type Field struct {
	Name string
	Type *Type
}

// StripTypedefs follows typedef targets to the underlying type.
func (t *Type) StripTypedefs() *Type {
	for t != nil && t.Code == CodeTypedef && t.Target != nil {
		t = t.Target
	}
	return t
}

// StripIndirection removes one level of pointer or reference.
func (t *Type) StripIndirection() *Type {
	if t != nil && (t.Code == CodePtr || t.Code == CodeRef) && t.Target != nil {
		return t.Target
	}
	return t
}

// Aggregate reports whether the type has fields to look names up in.
func (t *Type) Aggregate() bool {
	return t != nil && (t.Code == CodeStruct || t.Code == CodeUnion)
}

// HasField reports whether name is a field of the aggregate.
func (t *Type) HasField(name string) bool {
	if t == nil {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return true
		}
	}
	return false
}

// Symbol is a fully read-in symbol owned by exactly one full unit.
// Immutable after creation except for the lazily resolved section.
type Symbol struct {
	Linkage    string
	Lang       lang.ID
	Domain     Domain
	Class      AddrClass
	Value      uint64
	FnBlock    *Block // for LocBlock symbols
	Type       *Type
	IsArgument bool

	natural    string // cached demangled form; empty means same as Linkage
	section    string
	hasSection bool
	unit       *FullUnit
}

// NaturalName returns the language-appropriate display form.
func (s *Symbol) NaturalName() string {
	if s.natural != "" {
		return s.natural
	}
	return s.Linkage
}

// SearchName is the form lookups compare against.
func (s *Symbol) SearchName() string { return s.NaturalName() }

// Unit returns the full unit that owns the symbol.
func (s *Symbol) Unit() *FullUnit { return s.unit }

// Section returns the object section the symbol was matched to, or ""
// when unresolved.
func (s *Symbol) Section() string { return s.section }

// fixupSection digs the owning section out of the link-time table.
// Failure degrades to "unknown section", never a fault.
func (s *Symbol) fixupSection(g *Group) {
	if s.hasSection || g == nil || g.minsyms == nil {
		return
	}
	s.hasSection = true
	if ms := g.minsyms.ByName(s.Linkage); len(ms) > 0 {
		s.section = ms[0].Section
		return
	}
	addr := s.Value
	if s.Class == LocBlock && s.FnBlock != nil {
		addr = s.FnBlock.Start
	}
	if ms := g.minsyms.ByPC(addr); ms != nil {
		s.section = ms.Section
	}
}

// symbolMatchesDomain applies the implicit struct-name aliasing rule:
// for languages where a class declaration also defines a usable plain
// name, a struct-domain symbol satisfies variable- and struct-domain
// queries. All other languages require an exact domain match.
func symbolMatchesDomain(l lang.ID, symDomain, want Domain) bool {
	if lang.Get(l).StructAliasing {
		if (want == VarDomain || want == StructDomain) && symDomain == StructDomain {
			return true
		}
	}
	return symDomain == want
}

// matchesSearchName compares a stored search name against a query that
// has already been normalized (lowercased when fold is set).
func matchesSearchName(stored, query string, fold bool) bool {
	if fold {
		return strings.ToLower(stored) == query
	}
	return stored == query
}
