package symtab

// Block indices fixed by construction: 0 is the file's global block,
// 1 the file-static block, 2+ nested lexical blocks.
const (
	GlobalBlock = 0
	StaticBlock = 1
)

// Block is a lexical scope: an address range and the names visible in
// it. The superblock reference is an index into the owning vector, so
// unloading a group cannot leave a dangling scope chain.
type Block struct {
	Start, End uint64

	// Function is the symbol this block implements, nil for the
	// global/static pair and plain lexical blocks.
	Function *Symbol

	vec   *BlockVector
	super int // superblock index; -1 for the global block
	index int

	dict map[string][]*Symbol // keyed by search name
	all  []*Symbol            // insertion order, for deterministic scans
}

// BlockVector is the shared block structure of one compilation unit.
// Several full units (headers included into the same translation) may
// share a single vector.
type BlockVector struct {
	blocks []*Block
}

// NewBlockVector creates the fixed global/static pair spanning the
// unit's full range.
func NewBlockVector(low, high uint64) *BlockVector {
	bv := &BlockVector{}
	global := &Block{Start: low, End: high, vec: bv, super: -1, index: GlobalBlock, dict: map[string][]*Symbol{}}
	static := &Block{Start: low, End: high, vec: bv, super: GlobalBlock, index: StaticBlock, dict: map[string][]*Symbol{}}
	bv.blocks = []*Block{global, static}
	return bv
}

// AddBlock appends a nested block whose superblock is the block at
// index super. The range must be contained in the superblock's range.
func (bv *BlockVector) AddBlock(start, end uint64, super int) *Block {
	b := &Block{Start: start, End: end, vec: bv, super: super, index: len(bv.blocks), dict: map[string][]*Symbol{}}
	bv.blocks = append(bv.blocks, b)
	return b
}

func (bv *BlockVector) Global() *Block { return bv.blocks[GlobalBlock] }

func (bv *BlockVector) Static() *Block { return bv.blocks[StaticBlock] }

func (bv *BlockVector) Len() int { return len(bv.blocks) }

func (bv *BlockVector) At(i int) *Block { return bv.blocks[i] }

func (b *Block) Index() int { return b.index }

// Superblock returns the immediately enclosing block, nil for the
// global block.
func (b *Block) Superblock() *Block {
	if b.super < 0 {
		return nil
	}
	return b.vec.blocks[b.super]
}

// Contains reports whether pc falls in [Start, End).
func (b *Block) Contains(pc uint64) bool {
	return b.Start <= pc && pc < b.End
}

// StaticAncestor walks the scope chain up to the file-static block.
// Returns nil when called on the global block, which has no static
// scope above it.
func (b *Block) StaticAncestor() *Block {
	for ; b != nil; b = b.Superblock() {
		if b.index == StaticBlock {
			return b
		}
		if b.index == GlobalBlock {
			return nil
		}
	}
	return nil
}

// GlobalAncestor walks up to the file's global block.
func (b *Block) GlobalAncestor() *Block {
	for b.Superblock() != nil {
		b = b.Superblock()
	}
	return b
}

// FunctionAncestor returns the nearest enclosing block implementing a
// function, or nil.
func (b *Block) FunctionAncestor() *Block {
	for ; b != nil; b = b.Superblock() {
		if b.Function != nil {
			return b
		}
	}
	return nil
}

// Insert adds a symbol to the block's dictionary. Multiple symbols may
// share a name (overloads).
func (b *Block) Insert(sym *Symbol) {
	key := sym.SearchName()
	b.dict[key] = append(b.dict[key], sym)
	b.all = append(b.all, sym)
}

// Symbols returns the block's symbols in insertion order. Callers must
// not modify the returned slice.
func (b *Block) Symbols() []*Symbol { return b.all }

// Lookup searches the block's dictionary for name in domain. A
// non-empty linkage restricts the match to symbols with that exact
// linkage name (overload disambiguation). In function blocks argument
// symbols only match as a last resort, since locals shadow parameters.
// The query name must already be normalized when fold is set.
func (b *Block) Lookup(name, linkage string, domain Domain, fold bool) *Symbol {
	candidates := b.dict[name]
	if fold {
		// Insertion order, not map order: fold-equal names must resolve
		// the same way on every call.
		candidates = nil
		for _, s := range b.all {
			if matchesSearchName(s.SearchName(), name, true) {
				candidates = append(candidates, s)
			}
		}
	}

	var found *Symbol
	for _, s := range candidates {
		if !symbolMatchesDomain(s.Lang, s.Domain, domain) {
			continue
		}
		if linkage != "" && s.Linkage != linkage {
			continue
		}
		if b.Function == nil {
			return s
		}
		found = s
		if !s.IsArgument {
			break
		}
	}
	return found
}
