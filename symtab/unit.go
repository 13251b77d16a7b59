package symtab

import (
	"context"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/slices"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/metrics"
	"github.com/debuglab/symcore/minsym"
)

// Expander is the debug-info reader collaborator. Expand parses the
// debug info behind a partial unit into a full unit. It may attach
// additional full units to the group (headers reached through an
// include chain) and mark their partial units read in via AttachFull;
// callers must not assume only the requested unit changed state.
type Expander interface {
	Expand(ctx context.Context, pu *PartialUnit) (*FullUnit, error)
}

// LineEntry maps an address to a source line. Line 0 is a sentinel
// closing a range with no source line (end of inlined or optimized-out
// code); it is never a valid lookup result.
type LineEntry struct {
	Addr uint64
	Line int
}

// FullUnit is an expanded compilation unit: a line table and a block
// vector. Exactly one full unit per block vector is primary; the others
// are auxiliary units (included headers) sharing the block structure
// but owning their own line tables.
type FullUnit struct {
	Filename string
	FullPath string // resolved path when the reader knows it
	Lang     lang.ID
	Primary  bool

	group *Group
	bv    *BlockVector
	lines []LineEntry
}

func (fu *FullUnit) Group() *Group { return fu.group }

func (fu *FullUnit) Blocks() *BlockVector { return fu.bv }

func (fu *FullUnit) Lines() []LineEntry { return fu.lines }

// SetLines installs the unit's line table, ordered by address.
func (fu *FullUnit) SetLines(lines []LineEntry) {
	fu.lines = slices.Clone(lines)
	slices.SortStableFunc(fu.lines, func(a, b LineEntry) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
}

// sourceKey is what source-file deduplication keys on.
func (fu *FullUnit) sourceKey() string {
	if fu.FullPath != "" {
		return fu.FullPath
	}
	return fu.Filename
}

// PartialSymbol is the shallow summary of a symbol before its unit is
// expanded: just enough for ordered comparison and domain checks.
type PartialSymbol struct {
	Linkage string
	Lang    lang.ID
	Domain  Domain
	Class   AddrClass
	Value   uint64

	natural string
}

func (ps *PartialSymbol) NaturalName() string {
	if ps.natural != "" {
		return ps.natural
	}
	return ps.Linkage
}

func (ps *PartialSymbol) SearchName() string { return ps.NaturalName() }

// PartialUnit is the lightweight per-unit summary kept until a lookup
// forces full materialization.
type PartialUnit struct {
	Filename  string
	FullPath  string
	Low, High uint64 // text address range [Low, High)

	group   *Group
	globals []*PartialSymbol // sorted by search name
	statics []*PartialSymbol

	readin    bool
	full      *FullUnit
	expandErr error
}

func (pu *PartialUnit) Group() *Group { return pu.group }

func (pu *PartialUnit) Readin() bool { return pu.readin }

func (pu *PartialUnit) Full() *FullUnit { return pu.full }

func (pu *PartialUnit) Globals() []*PartialSymbol { return pu.globals }

func (pu *PartialUnit) Statics() []*PartialSymbol { return pu.statics }

func (pu *PartialUnit) sourceKey() string {
	if pu.FullPath != "" {
		return pu.FullPath
	}
	return pu.Filename
}

// Group owns the partial and full units of one loaded binary or shared
// object, plus its link-time symbol table and the demangled-name cache
// shared by all its symbols. Destroying the group destroys everything
// it owns.
type Group struct {
	Name string

	// Separate points at the split-debug companion group, searched as
	// an extension of this one.
	Separate *Group

	index     *Index
	logger    log.Logger
	metrics   *metrics.Metrics
	expander  Expander
	minsyms   *minsym.Table
	partials  []*PartialUnit
	fulls     []*FullUnit
	demangled *lru.Cache[string, string]
}

const demangledCacheSize = 16384

func newGroup(ix *Index, name string, expander Expander, minsyms *minsym.Table) *Group {
	cache, _ := lru.New[string, string](demangledCacheSize)
	return &Group{
		Name:      name,
		index:     ix,
		logger:    log.With(ix.logger, "group", name),
		metrics:   ix.metrics,
		expander:  expander,
		minsyms:   minsyms,
		demangled: cache,
	}
}

func (g *Group) MinSyms() *minsym.Table { return g.minsyms }

func (g *Group) Partials() []*PartialUnit { return g.partials }

func (g *Group) Fulls() []*FullUnit { return g.fulls }

// Demangled returns the natural name for a linkage name, consulting the
// group's cache before the demangler.
func (g *Group) Demangled(linkage string, l lang.ID) string {
	def := lang.Get(l)
	if !def.Mangled {
		return linkage
	}
	key := linkage
	if cached, ok := g.demangled.Get(key); ok {
		g.metrics.DemangleHits.Inc()
		return cached
	}
	g.metrics.DemangleMisses.Inc()
	natural, _ := def.Demangle(linkage)
	g.demangled.Add(key, natural)
	return natural
}

// NewPartialUnit registers a shallowly scanned compilation unit.
func (g *Group) NewPartialUnit(filename string, low, high uint64) *PartialUnit {
	pu := &PartialUnit{Filename: filename, Low: low, High: high, group: g}
	g.partials = append(g.partials, pu)
	return pu
}

// AddGlobal records an exported name in the unit's summary.
func (pu *PartialUnit) AddGlobal(linkage string, l lang.ID, d Domain, c AddrClass, value uint64) *PartialSymbol {
	ps := pu.newPartialSymbol(linkage, l, d, c, value)
	pu.globals = append(pu.globals, ps)
	return ps
}

// AddStatic records a file-local name in the unit's summary.
func (pu *PartialUnit) AddStatic(linkage string, l lang.ID, d Domain, c AddrClass, value uint64) *PartialSymbol {
	ps := pu.newPartialSymbol(linkage, l, d, c, value)
	pu.statics = append(pu.statics, ps)
	return ps
}

func (pu *PartialUnit) newPartialSymbol(linkage string, l lang.ID, d Domain, c AddrClass, value uint64) *PartialSymbol {
	ps := &PartialSymbol{Linkage: linkage, Lang: l, Domain: d, Class: c, Value: value}
	if natural := pu.group.Demangled(linkage, l); natural != linkage {
		ps.natural = natural
	}
	return ps
}

// Seal sorts the global list by search name so lookups can binary
// search it. Readers call it once the summary is complete.
func (pu *PartialUnit) Seal() {
	slices.SortStableFunc(pu.globals, func(a, b *PartialSymbol) int {
		return strings.Compare(a.SearchName(), b.SearchName())
	})
}

// NewFullUnit registers an expanded compilation unit with the group.
// Readers create the primary unit plus one auxiliary unit per included
// file sharing the same block vector.
func (g *Group) NewFullUnit(filename string, bv *BlockVector, primary bool, l lang.ID) *FullUnit {
	fu := &FullUnit{Filename: filename, Lang: l, Primary: primary, group: g, bv: bv}
	g.fulls = append(g.fulls, fu)
	return fu
}

// NewSymbol creates a symbol owned by fu, caching the demangled form of
// its linkage name in the group's cache.
func (g *Group) NewSymbol(fu *FullUnit, linkage string, l lang.ID, d Domain, c AddrClass) *Symbol {
	s := &Symbol{Linkage: linkage, Lang: l, Domain: d, Class: c, unit: fu}
	if natural := g.Demangled(linkage, l); natural != linkage {
		s.natural = natural
	}
	return s
}

// AttachFull marks pu read in with fu as its materialized form. Called
// by ensureFull for the requested unit and by expanders for sibling
// units discovered during the same parse (include chains).
func (g *Group) AttachFull(pu *PartialUnit, fu *FullUnit) {
	pu.readin = true
	pu.full = fu
	pu.expandErr = nil
}

// ensureFull returns the full unit for pu, expanding it through the
// reader exactly once. Repeated and re-entrant calls observe the same
// full unit without re-parsing; a failed expansion is recorded and not
// reattempted.
func (pu *PartialUnit) ensureFull(ctx context.Context) (*FullUnit, error) {
	if pu.readin {
		return pu.full, nil
	}
	if pu.expandErr != nil {
		return nil, pu.expandErr
	}
	g := pu.group
	level.Debug(g.logger).Log("msg", "expanding partial unit", "file", pu.Filename)
	fu, err := g.expander.Expand(ctx, pu)
	if err != nil {
		pu.expandErr = err
		g.metrics.Expansions.WithLabelValues("error").Inc()
		level.Error(g.logger).Log("msg", "partial unit expansion failed", "file", pu.Filename, "err", err)
		return nil, err
	}
	g.metrics.Expansions.WithLabelValues("ok").Inc()
	// The expander may have attached fu itself while reading siblings.
	if !pu.readin {
		g.AttachFull(pu, fu)
	}
	return pu.full, nil
}

// sharingLineUnits returns every full unit of the group sharing fu's
// block vector, the auxiliary included-file units among them.
func (g *Group) sharingLineUnits(fu *FullUnit) []*FullUnit {
	var out []*FullUnit
	for _, u := range g.fulls {
		if u.bv == fu.bv {
			out = append(out, u)
		}
	}
	return out
}
