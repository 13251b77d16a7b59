package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/minsym"
)

// linearPartialScan is the reference implementation the binary search
// must agree with for every input.
func linearPartialScan(pu *PartialUnit, name string, global bool, domain Domain) *PartialSymbol {
	list := pu.statics
	if global {
		list = pu.globals
	}
	for _, ps := range list {
		if symbolMatchesDomain(ps.Lang, ps.Domain, domain) && ps.SearchName() == name {
			return ps
		}
	}
	return nil
}

func buildPartial(t *testing.T, names []string, l lang.ID) *PartialUnit {
	t.Helper()
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	pu := g.NewPartialUnit("main.c", 0x1000, 0x2000)
	for i, n := range names {
		d := VarDomain
		if i%3 == 2 {
			d = StructDomain
		}
		pu.AddGlobal(n, l, d, LocStatic, uint64(i))
		pu.AddStatic(n+"_s", l, d, LocStatic, uint64(i))
	}
	pu.Seal()
	return pu
}

func TestLookupPartialSymbolMatchesLinearScan(t *testing.T) {
	names := []string{"alpha", "beta", "beta", "count", "count", "count", "delta", "omega", "zz"}
	pu := buildPartial(t, names, lang.C)

	queries := append([]string{"aaaa", "middle", "zzzz"}, names...)
	for _, q := range queries {
		for _, d := range []Domain{VarDomain, StructDomain, LabelDomain} {
			want := linearPartialScan(pu, q, true, d)
			got := lookupPartialSymbol(pu, q, "", true, d, false)
			require.Equal(t, want, got, "query %q domain %v", q, d)
		}
	}
}

func TestLookupPartialSymbolSharedNamesDifferentDomains(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	pu := g.NewPartialUnit("main.c", 0x1000, 0x2000)
	pu.AddGlobal("node", lang.C, StructDomain, LocTypedef, 0)
	pu.AddGlobal("node", lang.C, VarDomain, LocStatic, 0x1010)
	pu.AddGlobal("node", lang.C, LabelDomain, LocLabel, 0x1020)
	pu.Seal()

	// Binary search lands on the first "node", then the forward scan
	// finds the one in the asked-for domain.
	got := lookupPartialSymbol(pu, "node", "", true, LabelDomain, false)
	require.NotNil(t, got)
	require.Equal(t, LabelDomain, got.Domain)

	got = lookupPartialSymbol(pu, "node", "", true, VarDomain, false)
	require.NotNil(t, got)
	require.Equal(t, VarDomain, got.Domain)
}

func TestLookupPartialSymbolUnorderedLanguageDowngrades(t *testing.T) {
	// Java search names are not guaranteed to sort like the stored
	// order; the binary search must fall back to a full linear scan and
	// still return the same result as the reference scan.
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	pu := g.NewPartialUnit("App.java", 0x1000, 0x2000)
	for _, n := range []string{"m", "a", "z", "b", "q"} {
		pu.AddGlobal(n, lang.Java, VarDomain, LocStatic, 0)
	}
	// Deliberately not sealed: the list stays in violated order.

	for _, q := range []string{"a", "b", "m", "q", "z", "nope"} {
		want := linearPartialScan(pu, q, true, VarDomain)
		got := lookupPartialSymbol(pu, q, "", true, VarDomain, false)
		require.Equal(t, want, got, "query %q", q)
	}
}

func TestLookupPartialSymbolLinkageFilter(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	pu := g.NewPartialUnit("blip.cc", 0x1000, 0x2000)
	pu.AddGlobal("_Z4blipv", lang.CPlusPlus, VarDomain, LocBlock, 0x1000)
	pu.AddGlobal("_Z4blipi", lang.CPlusPlus, VarDomain, LocBlock, 0x1100)
	pu.Seal()

	got := lookupPartialSymbol(pu, "", "_Z4blipi", true, VarDomain, false)
	require.NotNil(t, got)
	require.Equal(t, "_Z4blipi", got.Linkage)
}

func TestBestSymbolForPC(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	pu := g.NewPartialUnit("main.c", 0x1000, 0x3000)
	pu.AddGlobal("f1", lang.C, VarDomain, LocBlock, 0x1000)
	pu.AddStatic("f2", lang.C, VarDomain, LocBlock, 0x1800)
	pu.AddGlobal("v1", lang.C, VarDomain, LocStatic, 0x1900) // data, never an anchor
	pu.Seal()

	best := pu.bestSymbolForPC(0x1850, "", nil)
	require.NotNil(t, best)
	require.Equal(t, "f2", best.Linkage)

	best = pu.bestSymbolForPC(0x1400, "", nil)
	require.NotNil(t, best)
	require.Equal(t, "f1", best.Linkage)
}
