package symtab

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"

	"github.com/debuglab/symcore/lang"
	"github.com/debuglab/symcore/minsym"
)

// Scope is the execution context completion runs in: the selected
// block, passed explicitly rather than read from ambient state. The
// zero value means no local scope is selected.
type Scope struct {
	Block *Block
}

// CompleteSymbol returns every known symbol completion for a prefix,
// merged from unexpanded partial summaries, the link-time tables
// (including the secondary spellings of message-style method names),
// the blocks visible from the selected scope (with the field names of
// visible aggregate-typed symbols), and all full units' global and
// static blocks. Duplicates are suppressed by the produced completion
// text, not by symbol identity. Completion never forces expansion.
func (ix *Index) CompleteSymbol(ctx context.Context, scope Scope, text string) ([]string, error) {
	ix.metrics.Completions.Inc()

	var out []string
	add := func(name string) {
		if strings.HasPrefix(name, text) {
			out = append(out, name)
		}
	}

	var scanErr error
	ix.allPartials(func(g *Group, pu *PartialUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		// Units already read in are covered by the block scan below.
		if pu.readin {
			return true
		}
		for _, ps := range pu.globals {
			add(ps.SearchName())
		}
		for _, ps := range pu.statics {
			add(ps.SearchName())
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	if err := ix.eachMinsym(ctx, func(g *Group, ms *minsym.Sym) error {
		add(ms.NaturalName())
		for _, alt := range lang.MethodAlternates(ms.NaturalName()) {
			add(alt)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Locals: walk outward from the selected scope. The static block we
	// end up in is remembered so the whole-program static scan below
	// does not visit it twice.
	var surroundingStatic *Block
	if scope.Block != nil {
		surroundingStatic = scope.Block.StaticAncestor()
	}
	for b := scope.Block; b != nil; b = b.Superblock() {
		for _, sym := range b.Symbols() {
			add(sym.SearchName())
			completeFields(sym, add)
		}
	}

	ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		for _, sym := range fu.bv.Global().Symbols() {
			add(sym.SearchName())
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		static := fu.bv.Static()
		if static == surroundingStatic {
			return true
		}
		for _, sym := range static.Symbols() {
			add(sym.SearchName())
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	out = lo.Uniq(out)
	slices.Sort(out)
	return out, nil
}

// completeFields offers the field names of aggregate types visible as
// typedefs in the current scope.
func completeFields(sym *Symbol, add func(string)) {
	if sym.Class != LocTypedef {
		return
	}
	t := sym.Type.StripTypedefs()
	if !t.Aggregate() {
		return
	}
	for i := range t.Fields {
		if t.Fields[i].Name != "" {
			add(t.Fields[i].Name)
		}
	}
}
