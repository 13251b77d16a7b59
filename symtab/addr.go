package symtab

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/debuglab/symcore/minsym"
)

// LineInfo is the result of address-to-line resolution: the owning
// unit, the line, and the pc range [PC, End) the line covers. A nil
// Unit with Line 0 means the address has no line information; the raw
// address is still reported, never a fabricated line.
type LineInfo struct {
	Unit    *FullUnit
	Line    int
	PC, End uint64
	Section string
}

// UnitForPC maps an address to its full compilation unit, expanding a
// partial unit when needed. Among overlapping candidates the narrowest
// enclosing range wins, which handles reordered and included code.
// Addresses the link-time table knows to be data are rejected with
// ErrNotFound.
func (ix *Index) UnitForPC(ctx context.Context, pc uint64, section string) (*FullUnit, error) {
	msym, _ := ix.minsymByPC(pc, section)
	if msym != nil && msym.Kind.DataLike() {
		return nil, ErrNotFound
	}

	var best *FullUnit
	var distance uint64
	var scanErr error
	ix.primaryFulls(func(g *Group, fu *FullUnit) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		b := fu.bv.Global()
		if !b.Contains(pc) {
			return true
		}
		if distance != 0 && b.End-b.Start >= distance {
			return true
		}
		if section != "" && !unitTouchesSection(g, fu, section) {
			return true
		}
		distance = b.End - b.Start
		best = fu
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	if best != nil {
		return best, nil
	}

	pu := ix.partialUnitForPC(pc, section, msym)
	if pu == nil {
		return nil, ErrNotFound
	}
	if pu.readin {
		// The summary covers the pc but the expanded unit's blocks do
		// not. Corrupt enough to warn about, not enough to fail.
		level.Warn(pu.group.logger).Log("msg", "pc in read-in partial unit but not in its full unit",
			"pc", fmt.Sprintf("%#x", pc), "file", pu.Filename)
		if pu.full == nil {
			return nil, ErrNotFound
		}
		return pu.full, nil
	}
	fu, err := pu.ensureFull(ctx)
	if err != nil {
		return nil, err
	}
	if fu == nil {
		return nil, ErrNotFound
	}
	return fu, nil
}

// unitTouchesSection reports whether any symbol in the unit's global
// block resolves to the wanted section. Sections that cannot be matched
// degrade to "unknown" and do not exclude the unit.
func unitTouchesSection(g *Group, fu *FullUnit, section string) bool {
	known := false
	for _, sym := range fu.bv.Global().Symbols() {
		sym.fixupSection(g)
		if sym.section == "" {
			continue
		}
		known = true
		if sym.section == section {
			return true
		}
	}
	return !known
}

// LineForPC resolves an address to the source line containing it.
//
// notCurrent backs the pc up by one first: a return address points at
// the end of the call instruction, and the caller wants the line
// containing the call, not the statement after it.
//
// A pc inside a call stub is redirected to the real function's address;
// a stub resolving to itself stays unresolved rather than recursing.
// Lines can span included files, so every full unit sharing the block
// vector is scanned and the entry with the greatest address <= pc and a
// nonzero line wins; the smallest address above pc across those units
// bounds the range.
func (ix *Index) LineForPC(ctx context.Context, pc uint64, section string, notCurrent bool) (LineInfo, error) {
	if notCurrent {
		pc--
	}

	if msym, _ := ix.minsymByPC(pc, section); msym != nil && msym.Kind == minsym.Trampoline {
		real := ix.minsymTextByName(msym.Name)
		if real != nil && real.Addr != msym.Addr {
			return ix.LineForPC(ctx, real.Addr, "", false)
		}
	}

	fu, err := ix.UnitForPC(ctx, pc, section)
	if err != nil && err != ErrNotFound {
		return LineInfo{}, err
	}
	if fu == nil {
		if notCurrent {
			pc++
		}
		return LineInfo{PC: pc, Section: section}, nil
	}

	var best *LineEntry
	var bestUnit *FullUnit
	var bestEnd uint64
	var alt *LineEntry

	for _, u := range fu.group.sharingLineUnits(fu) {
		lines := u.lines
		if len(lines) == 0 {
			continue
		}

		if lines[0].Addr > pc && (alt == nil || lines[0].Addr < alt.Addr) {
			alt = &lines[0]
		}

		var prev *LineEntry
		i := 0
		for ; i < len(lines); i++ {
			if lines[i].Addr > pc {
				break
			}
			prev = &lines[i]
		}

		// prev is the last entry starting at or before pc. A zero line
		// means pc sits in a range with no source line; that never
		// becomes the best match.
		if prev != nil && prev.Line != 0 && (best == nil || prev.Addr > best.Addr) {
			best = prev
			bestUnit = u
			if bestEnd <= best.Addr {
				bestEnd = 0
			}
		}
		if best != nil && i < len(lines) && lines[i].Addr > best.Addr &&
			(bestEnd == 0 || bestEnd > lines[i].Addr) {
			bestEnd = lines[i].Addr
		}
	}

	if best == nil {
		return LineInfo{PC: pc, Section: section}, nil
	}
	li := LineInfo{Unit: bestUnit, Line: best.Line, PC: best.Addr, Section: section}
	switch {
	case bestEnd != 0 && (alt == nil || bestEnd < alt.Addr):
		li.End = bestEnd
	case alt != nil:
		li.End = alt.Addr
	default:
		li.End = fu.bv.Global().End
	}
	return li, nil
}

// findLine locates the entry for line in the unit's table: an exact
// match when one exists, otherwise the smallest line greater than the
// one asked for.
func (fu *FullUnit) findLine(line int) (idx int, exact bool) {
	best := -1
	bestLine := 0
	for i := range fu.lines {
		l := fu.lines[i].Line
		if l == line {
			return i, true
		}
		if l > line && (best < 0 || l < bestLine) {
			best = i
			bestLine = l
		}
	}
	return best, false
}

// LinePCRange returns the address range covered by a source line in
// the unit, resolving the end from the next table entry.
func (fu *FullUnit) LinePCRange(line int) (start, end uint64, ok bool) {
	idx, _ := fu.findLine(line)
	if idx < 0 {
		return 0, 0, false
	}
	start = fu.lines[idx].Addr
	if idx+1 < len(fu.lines) {
		end = fu.lines[idx+1].Addr
	} else {
		end = fu.bv.Global().End
	}
	return start, end, true
}

// FunctionStart resolves where a function's body begins: the line at
// its entry, advanced past the prologue when the line table has a
// second entry inside the function block.
func (ix *Index) FunctionStart(ctx context.Context, fn *Symbol) (LineInfo, error) {
	if fn == nil || fn.Class != LocBlock || fn.FnBlock == nil {
		return LineInfo{}, fmt.Errorf("not a function symbol")
	}
	pc := fn.FnBlock.Start
	li, err := ix.LineForPC(ctx, pc, fn.Section(), false)
	if err != nil {
		return LineInfo{}, err
	}
	if li.Unit != nil && li.End > pc && li.End < fn.FnBlock.End {
		next, err := ix.LineForPC(ctx, li.End, fn.Section(), false)
		if err != nil {
			return LineInfo{}, err
		}
		if next.Unit != nil && next.PC < fn.FnBlock.End {
			return next, nil
		}
	}
	return li, nil
}
