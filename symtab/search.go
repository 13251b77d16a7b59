package symtab

import (
	"context"
	"strings"

	"github.com/grafana/regexp"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/debuglab/symcore/minsym"
)

// SearchKind selects the domain a whole-program search runs over.
type SearchKind int

const (
	SearchVariables SearchKind = iota
	SearchFunctions
	SearchTypes
	SearchMethods // accepted, resolved like functions
)

// Match is one debug-info hit of a search: the symbol, the unit it
// really belongs to (possibly an included header, not the unit whose
// block it sits in), and whether it came from the global or static
// scope.
type Match struct {
	Symbol     *Symbol
	Unit       *FullUnit
	BlockIndex int
}

// SearchResults separates debug-info matches from the "non-debugging"
// tail: link-time symbols that matched but have no full unit behind
// them. A symbol never appears in both.
type SearchResults struct {
	Matches  []Match
	NonDebug []*minsym.Sym
}

// kindMatchesClass is the address-class predicate of each domain kind.
// Partial summaries do not record constants, so the constant exclusion
// only applies to full symbols.
func kindMatchesClass(kind SearchKind, class AddrClass, partial bool) bool {
	switch kind {
	case SearchVariables:
		if class == LocTypedef || class == LocBlock {
			return false
		}
		if !partial && class == LocConst {
			return false
		}
		return true
	case SearchFunctions, SearchMethods:
		return class == LocBlock
	case SearchTypes:
		return class == LocTypedef
	}
	return false
}

func kindMatchesMinsym(kind SearchKind, k minsym.Kind) bool {
	switch kind {
	case SearchVariables:
		return k == minsym.Data || k == minsym.BSS || k == minsym.FileData || k == minsym.FileBSS
	case SearchFunctions:
		return k == minsym.Text || k == minsym.FileText || k == minsym.Trampoline
	}
	return false
}

// SearchSymbols runs a regex search over the whole program in the given
// domain kind. Partial units with any matching summary are expanded
// wholesale first; full units are then scanned with matches sorted by
// natural name within each (unit, scope) group; finally, for variable
// and function searches, link-time symbols with no debug info behind
// them are reported as the non-debugging tail.
//
// An empty pattern matches everything. fileFilter, when non-nil,
// restricts debug-info matches to units whose filename passes it and
// skips the pre-pass that opens the function tail; the variable tail
// still runs, since link-time data symbols belong to no source file.
func (ix *Index) SearchSymbols(ctx context.Context, pattern string, kind SearchKind, fileFilter func(string) bool) (SearchResults, error) {
	ix.metrics.Searches.Inc()
	switch kind {
	case SearchVariables, SearchFunctions, SearchTypes, SearchMethods:
	default:
		ix.metrics.SearchErrors.WithLabelValues("bad_domain").Inc()
		return SearchResults{}, ErrNoSearchDomain
	}

	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			ix.metrics.SearchErrors.WithLabelValues("bad_pattern").Inc()
			return SearchResults{}, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
	}
	match := func(name string) bool { return re == nil || re.MatchString(name) }
	fileOK := func(name string) bool { return fileFilter == nil || fileFilter(name) }

	// Partial pass first: a single matching summary forces expansion of
	// the whole unit, so the full-unit scan below sees everything.
	var scanErr error
	ix.allPartials(func(g *Group, pu *PartialUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		if pu.readin || !fileOK(pu.Filename) {
			return true
		}
		for _, list := range [][]*PartialSymbol{pu.globals, pu.statics} {
			for _, ps := range list {
				if kindMatchesClass(kind, ps.Class, true) && match(ps.NaturalName()) {
					if _, err := pu.ensureFull(ctx); err != nil {
						scanErr = err
						return false
					}
					return true
				}
			}
		}
		return true
	})
	if scanErr != nil {
		return SearchResults{}, scanErr
	}

	// First link-time pass: decide whether any matching symbol lacks
	// debug info entirely, which forces the tail pass for functions.
	foundMisc := false
	if fileFilter == nil && (kind == SearchVariables || kind == SearchFunctions) {
		err := ix.eachMinsym(ctx, func(g *Group, ms *minsym.Sym) error {
			if !kindMatchesMinsym(kind, ms.Kind) || !match(ms.NaturalName()) {
				return nil
			}
			fu, err := ix.UnitForPC(ctx, ms.Addr, "")
			if err != nil && err != ErrNotFound {
				return err
			}
			if fu != nil {
				return nil
			}
			if kind == SearchFunctions {
				foundMisc = true
				return nil
			}
			if _, err := ix.LookupSymbol(ctx, Query{Name: ms.Name, Domain: VarDomain, Lang: ms.Lang}); err == ErrNotFound {
				foundMisc = true
			} else if err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			return SearchResults{}, err
		}
	}

	var res SearchResults
	ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		for blockIndex := GlobalBlock; blockIndex <= StaticBlock; blockIndex++ {
			var segment []Match
			for _, sym := range fu.bv.At(blockIndex).Symbols() {
				realUnit := sym.unit
				filename := fu.Filename
				if realUnit != nil {
					filename = realUnit.Filename
				}
				if fileOK(filename) && kindMatchesClass(kind, sym.Class, false) && match(sym.NaturalName()) {
					segment = append(segment, Match{Symbol: sym, Unit: realUnit, BlockIndex: blockIndex})
				}
			}
			// Locally sorted: matches are ordered by natural name within
			// each (unit, scope) group, not across the whole result.
			slices.SortStableFunc(segment, func(a, b Match) int {
				return strings.Compare(a.Symbol.NaturalName(), b.Symbol.NaturalName())
			})
			res.Matches = append(res.Matches, segment...)
		}
		return true
	})
	if scanErr != nil {
		return SearchResults{}, scanErr
	}

	// Non-debugging tail: link-time symbols nothing above accounted for.
	// Variable searches always report them; function searches only when
	// the pre-pass saw a text symbol no debug info covers.
	runTail := kind == SearchVariables || (kind == SearchFunctions && foundMisc)
	if runTail {
		err := ix.eachMinsym(ctx, func(g *Group, ms *minsym.Sym) error {
			if !kindMatchesMinsym(kind, ms.Kind) || !match(ms.NaturalName()) {
				return nil
			}
			if kind == SearchFunctions {
				fu, err := ix.UnitForPC(ctx, ms.Addr, "")
				if err != nil && err != ErrNotFound {
					return err
				}
				if fu != nil {
					return nil
				}
			}
			_, err := ix.LookupSymbol(ctx, Query{Name: ms.Name, Domain: VarDomain, Lang: ms.Lang})
			if err == ErrNotFound {
				res.NonDebug = append(res.NonDebug, ms)
				return nil
			}
			return err
		})
		if err != nil {
			return SearchResults{}, err
		}
	}

	return res, nil
}

func (ix *Index) eachMinsym(ctx context.Context, fn func(*Group, *minsym.Sym) error) error {
	var outerErr error
	forEachGroup(ix.groups, func(g *Group) bool {
		if g.minsyms == nil {
			return true
		}
		if err := ctx.Err(); err != nil {
			outerErr = err
			return false
		}
		for i := 0; i < g.minsyms.Len(); i++ {
			if err := fn(g, g.minsyms.At(i)); err != nil {
				outerErr = err
				return false
			}
		}
		return true
	})
	return outerErr
}

// Location identifies a function well enough to set a breakpoint on:
// its unit and linkage name when debug info exists, or the raw
// link-time symbol when it does not.
type Location struct {
	Unit    *FullUnit
	Linkage string
	MinSym  *minsym.Sym
}

// FunctionLocations runs a function-domain regex search and flattens
// the results into breakpoint locations.
func (ix *Index) FunctionLocations(ctx context.Context, pattern string) ([]Location, error) {
	res, err := ix.SearchSymbols(ctx, pattern, SearchFunctions, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(res.Matches)+len(res.NonDebug))
	for _, m := range res.Matches {
		out = append(out, Location{Unit: m.Unit, Linkage: m.Symbol.Linkage})
	}
	for _, ms := range res.NonDebug {
		out = append(out, Location{MinSym: ms, Linkage: ms.Name})
	}
	return out, nil
}
