package symtab

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"golang.org/x/exp/slices"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/metrics"
	"github.com/debuglab/symcore/minsym"
)

// NonlocalFunc is the per-language hook for the nonlocal step of name
// resolution. The default implements the C rules: the unit's static
// block, then every global block, expanding partial units on a
// plausible match.
type NonlocalFunc func(ctx context.Context, ix *Index, name, linkage string, block *Block, domain Domain) (Result, error)

// Index is the symbol-table core: all loaded groups and the state that
// used to be ambient (case mode, the cached entry-point name).
type Index struct {
	logger  log.Logger
	metrics *metrics.Metrics
	groups  []*Group

	caseFold bool
	nonlocal map[lang.ID]NonlocalFunc

	mainName string
	mainLang lang.ID
}

type IndexOptions struct {
	Logger  log.Logger
	Metrics *metrics.Metrics // may be nil for tests

	// CaseInsensitive lowercases query names before comparison. The
	// dictionaries keep original case.
	CaseInsensitive bool
}

func NewIndex(options IndexOptions) *Index {
	logger := options.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	m := options.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	return &Index{
		logger:   logger,
		metrics:  m,
		caseFold: options.CaseInsensitive,
		nonlocal: map[lang.ID]NonlocalFunc{},
	}
}

// AddGroup registers a loaded binary or shared object. The expander is
// the debug-info reader for its units; minsyms its link-time table.
func (ix *Index) AddGroup(name string, expander Expander, minsyms *minsym.Table) *Group {
	g := newGroup(ix, name, expander, minsyms)
	ix.groups = append(ix.groups, g)
	ix.ResetMain()
	return g
}

// RemoveGroup unloads a group and everything it owns, including its
// separate-debug companion.
func (ix *Index) RemoveGroup(g *Group) {
	ix.groups = slices.DeleteFunc(ix.groups, func(x *Group) bool { return x == g || x == g.Separate })
	ix.ResetMain()
}

func (ix *Index) Groups() []*Group { return ix.groups }

// SetCaseInsensitive switches the active matching mode.
func (ix *Index) SetCaseInsensitive(v bool) { ix.caseFold = v }

// RegisterNonlocal installs a language-specific nonlocal lookup hook.
func (ix *Index) RegisterNonlocal(id lang.ID, fn NonlocalFunc) {
	ix.nonlocal[id] = fn
}

func (ix *Index) nonlocalFor(id lang.ID) NonlocalFunc {
	if fn, ok := ix.nonlocal[id]; ok {
		return fn
	}
	return basicNonlocal
}

// ResetMain drops the cached entry-point name. Called when the debuggee
// changes; the next MainName call re-derives it.
func (ix *Index) ResetMain() {
	ix.mainName = ""
	ix.mainLang = lang.Unknown
}

// MainName returns the entry-point symbol name for the program,
// deriving and caching it from the loaded units' languages.
func (ix *Index) MainName() string {
	if ix.mainName != "" {
		return ix.mainName
	}
	ix.mainLang = lang.C
	for _, g := range ix.groups {
		for _, fu := range g.fulls {
			if fu.Primary && fu.Lang != lang.Unknown {
				ix.mainLang = fu.Lang
				break
			}
		}
	}
	ix.mainName = lang.Get(ix.mainLang).MainName
	return ix.mainName
}

// FindMainUnit locates the partial unit exporting the entry-point name.
func (ix *Index) FindMainUnit(ctx context.Context) (*PartialUnit, error) {
	name := ix.MainName()
	for _, g := range ix.groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pu := range g.partials {
			if lookupPartialSymbol(pu, name, "", true, VarDomain, ix.caseFold) != nil {
				return pu, nil
			}
		}
	}
	return nil, ErrNotFound
}

// forEachGroup visits g and its separate-debug companion.
func forEachGroup(groups []*Group, fn func(*Group) bool) {
	for _, g := range groups {
		if !fn(g) {
			return
		}
		if g.Separate != nil && !fn(g.Separate) {
			return
		}
	}
}

// primaryFulls visits every primary full unit until fn returns false.
func (ix *Index) primaryFulls(fn func(*Group, *FullUnit) bool) {
	forEachGroup(ix.groups, func(g *Group) bool {
		for _, fu := range g.fulls {
			if !fu.Primary {
				continue
			}
			if !fn(g, fu) {
				return false
			}
		}
		return true
	})
}

// allFulls visits every full unit, auxiliary ones included.
func (ix *Index) allFulls(fn func(*Group, *FullUnit) bool) {
	forEachGroup(ix.groups, func(g *Group) bool {
		for _, fu := range g.fulls {
			if !fn(g, fu) {
				return false
			}
		}
		return true
	})
}

// allPartials visits every partial unit.
func (ix *Index) allPartials(fn func(*Group, *PartialUnit) bool) {
	forEachGroup(ix.groups, func(g *Group) bool {
		for _, pu := range g.partials {
			if !fn(g, pu) {
				return false
			}
		}
		return true
	})
}

// minsymByPC finds the link-time symbol covering pc across all groups,
// preferring the closest (greatest address <= pc).
func (ix *Index) minsymByPC(pc uint64, section string) (*minsym.Sym, *Group) {
	var best *minsym.Sym
	var bestGroup *Group
	forEachGroup(ix.groups, func(g *Group) bool {
		if g.minsyms == nil {
			return true
		}
		if ms := g.minsyms.ByPCSection(pc, section); ms != nil {
			if best == nil || ms.Addr > best.Addr {
				best = ms
				bestGroup = g
			}
		}
		return true
	})
	return best, bestGroup
}

// minsymTextByName finds a real code symbol by name across all groups.
func (ix *Index) minsymTextByName(name string) *minsym.Sym {
	var found *minsym.Sym
	forEachGroup(ix.groups, func(g *Group) bool {
		if g.minsyms == nil {
			return true
		}
		if ms := g.minsyms.TextByName(name); ms != nil {
			found = ms
			return false
		}
		return true
	})
	return found
}

// SourceFiles enumerates the known source files across full and
// not-yet-expanded partial units, deduplicated by resolved full path
// when available, the raw recorded filename otherwise.
func (ix *Index) SourceFiles() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	ix.allFulls(func(_ *Group, fu *FullUnit) bool {
		add(fu.sourceKey())
		return true
	})
	ix.allPartials(func(_ *Group, pu *PartialUnit) bool {
		if !pu.readin {
			add(pu.sourceKey())
		}
		return true
	})
	slices.Sort(out)
	return out
}

// UnitByFilename finds the full unit for a source file, expanding its
// partial unit if needed. The name matches the recorded filename, its
// basename, or the resolved full path.
func (ix *Index) UnitByFilename(ctx context.Context, name string) (*FullUnit, error) {
	matches := func(filename, fullPath string) bool {
		if filename == name || fullPath == name {
			return true
		}
		return filepath.Base(filename) == name && !strings.ContainsRune(name, filepath.Separator)
	}

	var found *FullUnit
	ix.allFulls(func(_ *Group, fu *FullUnit) bool {
		if matches(fu.Filename, fu.FullPath) {
			found = fu
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}

	var pending *PartialUnit
	ix.allPartials(func(_ *Group, pu *PartialUnit) bool {
		if !pu.readin && matches(pu.Filename, pu.FullPath) {
			pending = pu
			return false
		}
		return true
	})
	if pending == nil {
		return nil, ErrNotFound
	}
	if _, err := pending.ensureFull(ctx); err != nil {
		return nil, err
	}
	// Expansion may materialize the unit under a different (resolved)
	// name; search again rather than trusting the partial record.
	ix.allFulls(func(_ *Group, fu *FullUnit) bool {
		if matches(fu.Filename, fu.FullPath) {
			found = fu
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	if pending.full != nil {
		return pending.full, nil
	}
	return nil, ErrNotFound
}
