package tac

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/willf/bitset"
)

// Block holds per-block lowering metadata.
type Block struct {
	ID int
	// StaticInit holds the types whose static initialization must be checked on entry to the
	// block.
	StaticInit mapset.Set[*cil.Type]
}

// Function owns the per-method lowering state: fresh variable and block counters, block
// metadata, and the lowered node list. Functions are not safe for concurrent use; each method is
// lowered into its own Function.
type Function struct {
	Name string

	Vars   int
	Blocks []*Block

	UsedArgs   bitset.BitSet
	UsedLocals bitset.BitSet

	Body []Node
}

func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// NewVar returns a fresh logical temporary.
func (f *Function) NewVar() Logical {
	v := Logical{ID: f.Vars}
	f.Vars++
	return v
}

// NewBlock allocates a fresh block.
func (f *Function) NewBlock() *Block {
	b := &Block{ID: len(f.Blocks), StaticInit: mapset.NewThreadUnsafeSet[*cil.Type]()}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block returns the block with the given ID.
func (f *Function) Block(id int) *Block {
	return f.Blocks[id]
}

// Use records the argument and local slots referenced by v.
func (f *Function) Use(v Var) {
	switch v := v.(type) {
	case Arg:
		f.UsedArgs.Set(uint(v.Index))
	case Local:
		f.UsedLocals.Set(uint(v.Index))
	case AddressOf:
		f.Use(v.Of)
	case ContentsOf:
		f.Use(v.Of)
	}
}

// Append appends nodes to the function body.
func (f *Function) Append(nodes ...Node) {
	f.Body = append(f.Body, nodes...)
}
