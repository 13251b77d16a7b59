package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/minsym"
)

func TestBlockRangesNestInsideSuperblocks(t *testing.T) {
	bv := NewBlockVector(0x1000, 0x5000)
	fn := bv.AddBlock(0x1100, 0x2000, StaticBlock)
	inner := bv.AddBlock(0x1200, 0x1400, fn.Index())

	for i := 2; i < bv.Len(); i++ {
		b := bv.At(i)
		sup := b.Superblock()
		require.NotNil(t, sup)
		require.GreaterOrEqual(t, b.Start, sup.Start)
		require.LessOrEqual(t, b.End, sup.End)
	}

	// The global/static pair shares the unit's full range.
	require.Equal(t, bv.Global().Start, bv.Static().Start)
	require.Equal(t, bv.Global().End, bv.Static().End)
	require.Nil(t, bv.Global().Superblock())
	require.Equal(t, bv.Global(), bv.Static().Superblock())
	require.Equal(t, bv.Static(), inner.StaticAncestor())
	require.Equal(t, bv.Global(), inner.GlobalAncestor())
}

func TestBlockLookupShadowsAndFilters(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	fu := simpleFull(g, "main.c", 0x1000, 0x2000, lang.C)
	bv := fu.Blocks()

	fnSym, fb := addFunction(g, fu, "work", lang.C, 0x1100, 0x1300)

	arg := g.NewSymbol(fu, "x", lang.C, VarDomain, LocArg)
	arg.IsArgument = true
	fb.Insert(arg)
	local := g.NewSymbol(fu, "x", lang.C, VarDomain, LocRegister)
	fb.Insert(local)

	// Locals beat parameters even when the parameter was inserted first.
	got := fb.Lookup("x", "", VarDomain, false)
	require.Equal(t, local, got)

	// A linkage filter that matches nothing finds nothing.
	require.Nil(t, fb.Lookup("x", "_Zmangled", VarDomain, false))

	// Domain must match for plain C.
	require.Nil(t, fb.Lookup("x", "", StructDomain, false))

	// The function symbol lives in the static block, not its own block.
	require.Equal(t, fnSym, bv.Static().Lookup("work", "", VarDomain, false))
	require.Nil(t, fb.Lookup("work", "", VarDomain, false))
}

func TestBlockLookupStructAliasing(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	fu := simpleFull(g, "shapes.cc", 0x1000, 0x2000, lang.CPlusPlus)

	tag := g.NewSymbol(fu, "Shape", lang.CPlusPlus, StructDomain, LocTypedef)
	fu.Blocks().Global().Insert(tag)

	// class Shape {}; also answers a variable-domain query in C++.
	require.Equal(t, tag, fu.Blocks().Global().Lookup("Shape", "", VarDomain, false))
	require.Equal(t, tag, fu.Blocks().Global().Lookup("Shape", "", StructDomain, false))

	// The same declaration in C would not.
	cTag := g.NewSymbol(fu, "node", lang.C, StructDomain, LocTypedef)
	fu.Blocks().Global().Insert(cTag)
	require.Nil(t, fu.Blocks().Global().Lookup("node", "", VarDomain, false))
}

func TestBlockLookupCaseFolded(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	fu := simpleFull(g, "pkg.adb", 0x1000, 0x2000, lang.Ada)

	sym := addStatic(g, fu, fu.Blocks().Global(), "Put_Line", lang.Ada, 0x1010)

	// Query already lowercased by the resolver; stored case preserved.
	require.Equal(t, sym, fu.Blocks().Global().Lookup("put_line", "", VarDomain, true))
	require.Nil(t, fu.Blocks().Global().Lookup("put_line", "", VarDomain, false))
	require.Equal(t, "Put_Line", sym.NaturalName())
}

func TestBlockLookupCaseFoldedDeterministic(t *testing.T) {
	ix := newTestIndex(t)
	g := ix.AddGroup("a.out", newFakeExpander(), minsym.NewTable(nil))
	fu := simpleFull(g, "pkg.adb", 0x1000, 0x2000, lang.Ada)
	_, fb := addFunction(g, fu, "Run", lang.Ada, 0x1100, 0x1300)

	// Two fold-equal locals: the first inserted wins, on every call.
	first := g.NewSymbol(fu, "VALUE", lang.Ada, VarDomain, LocRegister)
	fb.Insert(first)
	second := g.NewSymbol(fu, "Value", lang.Ada, VarDomain, LocRegister)
	fb.Insert(second)

	for i := 0; i < 16; i++ {
		require.Same(t, first, fb.Lookup("value", "", VarDomain, true))
	}

	// The argument-last rule holds under folding too.
	arg := g.NewSymbol(fu, "Depth", lang.Ada, VarDomain, LocArg)
	arg.IsArgument = true
	fb.Insert(arg)
	require.Same(t, arg, fb.Lookup("depth", "", VarDomain, true))
	local := g.NewSymbol(fu, "depth", lang.Ada, VarDomain, LocRegister)
	fb.Insert(local)
	require.Same(t, local, fb.Lookup("depth", "", VarDomain, true))
}
