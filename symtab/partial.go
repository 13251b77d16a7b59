package symtab

import (
	"strings"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/minsym"
)

// lookupPartialSymbol finds a partial symbol by search name and domain.
// Global lists are kept sorted by search name, so the common path is a
// binary search for the first candidate >= the query followed by a
// forward scan over equal names testing the domain. If the binary
// search ever inspects an entry whose language does not guarantee
// search-name ordering, it downgrades to a full linear scan: the fast
// path is an optimization, never a behavior change.
//
// Static lists, linkage-filtered queries, and case-folded queries
// always scan linearly. The query name must already be normalized when
// fold is set.
func lookupPartialSymbol(pu *PartialUnit, name, linkage string, global bool, domain Domain, fold bool) *PartialSymbol {
	list := pu.statics
	if global {
		list = pu.globals
	}
	if len(list) == 0 {
		return nil
	}

	doLinear := !global || linkage != "" || fold

	if !doLinear {
		bottom, top := 0, len(list)-1
		for bottom < top {
			center := bottom + (top-bottom)/2
			if !lang.Get(list[center].Lang).SortedSearchNames {
				doLinear = true
			}
			if strings.Compare(list[center].SearchName(), name) >= 0 {
				top = center
			} else {
				bottom = center + 1
			}
		}
		if !doLinear {
			for i := top; i < len(list); i++ {
				ps := list[i]
				if ps.SearchName() != name {
					break
				}
				if symbolMatchesDomain(ps.Lang, ps.Domain, domain) {
					return ps
				}
			}
			return nil
		}
	}

	for _, ps := range list {
		if !symbolMatchesDomain(ps.Lang, ps.Domain, domain) {
			continue
		}
		if linkage != "" {
			if ps.Linkage == linkage {
				return ps
			}
			continue
		}
		if matchesSearchName(ps.SearchName(), name, fold) {
			return ps
		}
	}
	return nil
}

// bestSymbolForPC returns the function summary with the greatest
// address <= pc, the anchor used to arbitrate between overlapping
// partial units.
func (pu *PartialUnit) bestSymbolForPC(pc uint64, section string, minsyms *minsym.Table) *PartialSymbol {
	var best *PartialSymbol
	bestPC := pu.Low
	if bestPC != 0 {
		bestPC--
	}
	consider := func(ps *PartialSymbol) {
		if ps.Domain != VarDomain || ps.Class != LocBlock {
			return
		}
		if pc < ps.Value {
			return
		}
		if ps.Value > bestPC || (pu.Low == 0 && bestPC == 0 && ps.Value == 0) {
			if section != "" && minsyms != nil {
				if ms := minsyms.ByName(ps.Linkage); len(ms) > 0 && ms[0].Section != section {
					return
				}
			}
			bestPC = ps.Value
			best = ps
		}
	}
	for _, ps := range pu.globals {
		consider(ps)
	}
	for _, ps := range pu.statics {
		consider(ps)
	}
	return best
}

// partialUnitForPC finds the partial unit covering pc. Unit ranges can
// overlap when code is reordered or included, so among the candidates
// we keep the one whose best function summary is closest to pc,
// confirmed against the link-time symbol when one covers the address.
func (ix *Index) partialUnitForPC(pc uint64, section string, msym *minsym.Sym) *PartialUnit {
	var best *PartialUnit
	var bestAddr uint64
	ix.allPartials(func(g *Group, pu *PartialUnit) bool {
		if pc < pu.Low || pc >= pu.High {
			return true
		}
		p := pu.bestSymbolForPC(pc, section, g.minsyms)
		if p != nil && msym != nil && p.Value == msym.Addr {
			best = pu
			return false
		}
		thisAddr := pu.Low
		if p != nil {
			thisAddr = p.Value
		}
		if best == nil || thisAddr > bestAddr {
			best = pu
			bestAddr = thisAddr
		}
		return true
	})
	return best
}
