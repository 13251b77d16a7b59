package symtab

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/log/level"

	"github.com/debuglab/symcore/lang"
)

// Query describes one scoped name lookup.
type Query struct {
	// Name is the symbol name as typed. For mangled languages it may be
	// either the natural or the linkage form; a linkage query is
	// demangled once and the original retained as a linkage filter.
	Name string

	// Linkage, when set, restricts matches to symbols with this exact
	// linkage name (overload disambiguation).
	Linkage string

	// Block is the scope to start from; nil means no local scope.
	Block *Block

	Domain Domain
	Lang   lang.ID

	// WantFieldOfThis asks the resolver to also test whether Name is a
	// field of the language's implicit receiver. That check never
	// forces expansion.
	WantFieldOfThis bool
}

// Result is a successful lookup: the symbol and the block it was found
// in, or the is-a-field answer with no symbol.
type Result struct {
	Symbol        *Symbol
	Block         *Block
	IsFieldOfThis bool
}

func (r Result) found() bool { return r.Symbol != nil || r.IsFieldOfThis }

// LookupSymbol resolves a name against the two-tier index:
// the local scope chain first, then the implicit-receiver check, then
// the language's nonlocal rules, and finally the file-static fallback
// across every unit. Misses return ErrNotFound.
func (ix *Index) LookupSymbol(ctx context.Context, q Query) (Result, error) {
	def := lang.Get(q.Lang)

	name := q.Name
	linkage := q.Linkage
	if linkage == "" && def.Mangled {
		if natural, ok := def.Demangle(q.Name); ok {
			name = natural
			linkage = q.Name
		}
	}
	if ix.caseFold {
		name = strings.ToLower(name)
	}

	// Local chain: walk outward from the starting block, stopping
	// before the file-static block. Innermost scope shadows outer.
	if static := blockStaticAncestor(q.Block); static != nil {
		for b := q.Block; b != static; b = b.Superblock() {
			if sym := b.Lookup(name, linkage, q.Domain, ix.caseFold); sym != nil {
				return ix.finish(sym, b, "block"), nil
			}
		}
	}

	if q.WantFieldOfThis && def.NameOfThis != "" && q.Block != nil {
		res, err := ix.fieldOfThis(q.Block, def, name)
		if err != nil {
			return Result{}, err
		}
		if res.found() {
			ix.metrics.Lookups.WithLabelValues("field_of_this").Inc()
			return res, nil
		}
	}

	res, err := ix.nonlocalFor(q.Lang)(ctx, ix, name, linkage, q.Block, q.Domain)
	if err != nil {
		return Result{}, err
	}
	if res.found() {
		return res, nil
	}

	// File-static fallback across every unit. Not strictly scope
	// correct, but some readers cannot tell truly-global from static
	// reliably, and a hit here beats an error.
	res, err = ix.lookupInFulls(ctx, StaticBlock, name, linkage, q.Domain)
	if err != nil {
		return Result{}, err
	}
	if res.found() {
		return res, nil
	}
	res, err = ix.lookupInPartials(ctx, StaticBlock, name, linkage, q.Domain)
	if err != nil {
		return Result{}, err
	}
	if res.found() {
		return res, nil
	}

	ix.metrics.Lookups.WithLabelValues("miss").Inc()
	return Result{}, ErrNotFound
}

func (ix *Index) finish(sym *Symbol, b *Block, tier string) Result {
	if sym.unit != nil {
		sym.fixupSection(sym.unit.group)
	}
	ix.metrics.Lookups.WithLabelValues(tier).Inc()
	return Result{Symbol: sym, Block: b}
}

// fieldOfThis locates the nearest enclosing function's receiver, strips
// indirection off its type, and tests whether name is a field of the
// aggregate.
func (ix *Index) fieldOfThis(block *Block, def *lang.Def, name string) (Result, error) {
	fb := block.FunctionAncestor()
	if fb == nil {
		return Result{}, nil
	}
	recv := fb.Lookup(def.NameOfThis, "", VarDomain, false)
	if recv == nil {
		return Result{}, nil
	}
	t := recv.Type.StripTypedefs().StripIndirection().StripTypedefs()
	if !t.Aggregate() {
		return Result{}, fmt.Errorf("internal: receiver %q of %s is not an aggregate", def.NameOfThis, def.Name)
	}
	if t.HasField(name) {
		return Result{IsFieldOfThis: true}, nil
	}
	return Result{}, nil
}

// basicNonlocal implements the default (C) nonlocal rules: the unit's
// static block, then every file's global block, full units before
// partial ones.
func basicNonlocal(ctx context.Context, ix *Index, name, linkage string, block *Block, domain Domain) (Result, error) {
	if static := blockStaticAncestor(block); static != nil {
		if sym := static.Lookup(name, linkage, domain, ix.caseFold); sym != nil {
			return ix.finish(sym, static, "unit_static"), nil
		}
	}
	res, err := ix.lookupInFulls(ctx, GlobalBlock, name, linkage, domain)
	if err != nil || res.found() {
		return res, err
	}
	return ix.lookupInPartials(ctx, GlobalBlock, name, linkage, domain)
}

// blockStaticAncestor is a nil-tolerant Block.StaticAncestor.
func blockStaticAncestor(b *Block) *Block {
	if b == nil {
		return nil
	}
	return b.StaticAncestor()
}

// lookupInFulls scans the given block (global or static) of every
// primary full unit.
func (ix *Index) lookupInFulls(ctx context.Context, blockIndex int, name, linkage string, domain Domain) (Result, error) {
	var res Result
	var scanErr error
	ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		b := fu.bv.At(blockIndex)
		if sym := b.Lookup(name, linkage, domain, ix.caseFold); sym != nil {
			tier := "full_global"
			if blockIndex == StaticBlock {
				tier = "full_static"
			}
			res = ix.finish(sym, b, tier)
			return false
		}
		return true
	})
	return res, scanErr
}

// lookupInPartials scans the matching list of every unexpanded partial
// unit and expands on a plausible match. A partial promise the full
// unit cannot honor is an internal consistency fault: first the
// opposite-scope block is tried (tolerated reader imprecision), then
// the lookup fails hard.
func (ix *Index) lookupInPartials(ctx context.Context, blockIndex int, name, linkage string, domain Domain) (Result, error) {
	global := blockIndex == GlobalBlock
	var res Result
	var scanErr error
	ix.allPartials(func(g *Group, pu *PartialUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		if pu.readin {
			return true
		}
		if lookupPartialSymbol(pu, name, linkage, global, domain, ix.caseFold) == nil {
			return true
		}
		fu, err := pu.ensureFull(ctx)
		if err != nil {
			scanErr = err
			return false
		}
		if fu == nil {
			return true
		}
		sym, block, err := ix.blockSymbolWithFallback(g, fu, blockIndex, name, linkage, domain)
		if err != nil {
			scanErr = err
			return false
		}
		tier := "partial_global"
		if blockIndex == StaticBlock {
			tier = "partial_static"
		}
		res = ix.finish(sym, block, tier)
		return false
	})
	return res, scanErr
}

// blockSymbolWithFallback looks name up in the promised block of a just
// expanded unit, tolerating the opposite scope before escalating to an
// InconsistencyError.
func (ix *Index) blockSymbolWithFallback(g *Group, fu *FullUnit, blockIndex int, name, linkage string, domain Domain) (*Symbol, *Block, error) {
	b := fu.bv.At(blockIndex)
	if sym := b.Lookup(name, linkage, domain, ix.caseFold); sym != nil {
		return sym, b, nil
	}

	// Some readers misfile statics as globals and vice versa. Tolerate
	// the mismatch but flag it; anything beyond this is a reader defect.
	opposite := StaticBlock
	if blockIndex == StaticBlock {
		opposite = GlobalBlock
	}
	scope := "global"
	if blockIndex == StaticBlock {
		scope = "static"
	}
	ob := fu.bv.At(opposite)
	if sym := ob.Lookup(name, linkage, domain, ix.caseFold); sym != nil {
		level.Warn(g.logger).Log("msg", "symbol found in opposite scope after expansion, reader imprecision",
			"name", name, "file", fu.Filename, "promised", scope)
		return sym, ob, nil
	}

	ix.metrics.Expansions.WithLabelValues("inconsistent").Inc()
	err := &InconsistencyError{Scope: scope, Name: name, Filename: fu.Filename}
	level.Error(g.logger).Log("msg", "partial/full correspondence violated", "err", err)
	return nil, nil, err
}

// LookupGlobalInGroup resolves a global name within one group only,
// searching its separate-debug companion as an extension of itself.
func (ix *Index) LookupGlobalInGroup(ctx context.Context, g *Group, name, linkage string, domain Domain) (Result, error) {
	if ix.caseFold {
		name = strings.ToLower(name)
	}
	for _, fu := range g.fulls {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		b := fu.bv.Global()
		if sym := b.Lookup(name, linkage, domain, ix.caseFold); sym != nil {
			return ix.finish(sym, b, "full_global"), nil
		}
	}
	for _, pu := range g.partials {
		if pu.readin {
			continue
		}
		if lookupPartialSymbol(pu, name, linkage, true, domain, ix.caseFold) == nil {
			continue
		}
		fu, err := pu.ensureFull(ctx)
		if err != nil {
			return Result{}, err
		}
		if fu == nil {
			continue
		}
		sym, block, err := ix.blockSymbolWithFallback(g, fu, GlobalBlock, name, linkage, domain)
		if err != nil {
			return Result{}, err
		}
		return ix.finish(sym, block, "partial_global"), nil
	}
	if g.Separate != nil {
		return ix.LookupGlobalInGroup(ctx, g.Separate, name, linkage, domain)
	}
	return Result{}, ErrNotFound
}

// LookupTransparentType finds a struct-domain type with a visible
// definition (not opaque), global tier first, then file statics, with
// the same partial-tier expansion and opposite-scope tolerance as the
// symbol path.
func (ix *Index) LookupTransparentType(ctx context.Context, name string) (*Type, error) {
	if ix.caseFold {
		name = strings.ToLower(name)
	}
	for _, blockIndex := range []int{GlobalBlock, StaticBlock} {
		var found *Type
		var scanErr error
		ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
			if err := ctx.Err(); err != nil {
				scanErr = err
				return false
			}
			if sym := fu.bv.At(blockIndex).Lookup(name, "", StructDomain, ix.caseFold); sym != nil && sym.Type != nil && !sym.Type.Opaque {
				found = sym.Type
				return false
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
		if found != nil {
			return found, nil
		}

		global := blockIndex == GlobalBlock
		ix.allPartials(func(g *Group, pu *PartialUnit) bool {
			if err := ctx.Err(); err != nil {
				scanErr = err
				return false
			}
			if pu.readin {
				return true
			}
			if lookupPartialSymbol(pu, name, "", global, StructDomain, ix.caseFold) == nil {
				return true
			}
			fu, err := pu.ensureFull(ctx)
			if err != nil {
				scanErr = err
				return false
			}
			if fu == nil {
				return true
			}
			sym, _, err := ix.blockSymbolWithFallback(g, fu, blockIndex, name, "", StructDomain)
			if err != nil {
				scanErr = err
				return false
			}
			if sym.Type != nil && !sym.Type.Opaque {
				found = sym.Type
				return false
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, ErrNotFound
}
