package symtab

import (
	"context"
	"testing"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/minsym"
)

// fakeExpander materializes full units from recipes registered per
// partial unit, counting reader invocations.
type fakeExpander struct {
	calls   int
	err     error
	recipes map[*PartialUnit]func(*Group, *PartialUnit) *FullUnit
}

func newFakeExpander() *fakeExpander {
	return &fakeExpander{recipes: map[*PartialUnit]func(*Group, *PartialUnit) *FullUnit{}}
}

func (e *fakeExpander) onExpand(pu *PartialUnit, fn func(*Group, *PartialUnit) *FullUnit) {
	e.recipes[pu] = fn
}

func (e *fakeExpander) Expand(_ context.Context, pu *PartialUnit) (*FullUnit, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	fn, ok := e.recipes[pu]
	if !ok {
		panic("no expansion recipe for " + pu.Filename)
	}
	return fn(pu.Group(), pu), nil
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(IndexOptions{})
}

// addStatic defines a static-address variable in a block.
func addStatic(g *Group, fu *FullUnit, b *Block, name string, l lang.ID, value uint64) *Symbol {
	s := g.NewSymbol(fu, name, l, VarDomain, LocStatic)
	s.Value = value
	b.Insert(s)
	return s
}

// addFunction defines a function symbol owning a nested block.
func addFunction(g *Group, fu *FullUnit, name string, l lang.ID, start, end uint64) (*Symbol, *Block) {
	fb := fu.Blocks().AddBlock(start, end, StaticBlock)
	s := g.NewSymbol(fu, name, l, VarDomain, LocBlock)
	s.Value = start
	s.FnBlock = fb
	fb.Function = s
	fu.Blocks().Static().Insert(s)
	return s, fb
}

// simpleFull builds a primary full unit with an empty line table.
func simpleFull(g *Group, filename string, low, high uint64, l lang.ID) *FullUnit {
	bv := NewBlockVector(low, high)
	return g.NewFullUnit(filename, bv, true, l)
}

// onePartialGroup wires a group holding one partial unit exporting a
// single global, with a recipe producing the matching full unit.
func onePartialGroup(ix *Index, name, filename string, low, high uint64, global string, value uint64) (*Group, *PartialUnit, *fakeExpander) {
	exp := newFakeExpander()
	g := ix.AddGroup(name, exp, minsym.NewTable(nil))
	pu := g.NewPartialUnit(filename, low, high)
	pu.AddGlobal(global, lang.C, VarDomain, LocStatic, value)
	pu.Seal()
	exp.onExpand(pu, func(g *Group, pu *PartialUnit) *FullUnit {
		fu := simpleFull(g, filename, low, high, lang.C)
		addStatic(g, fu, fu.Blocks().Global(), global, lang.C, value)
		return fu
	})
	return g, pu, exp
}
