package tac

import (
	"fmt"
	"strings"

	"github.com/pgavlin/cil2tac/cil"
)

// A Node is a single TAC node.
type Node interface {
	fmt.Stringer

	// FallsThrough returns true if control may continue with the next node.
	FallsThrough() bool

	isNode()
}

// Instr is a typed operator with a result and up to two operands.
type Instr struct {
	Op     Op
	Cat    cil.Category
	Result Var
	A, B   Var
	// Size is the payload size of value-type operators and the width of conversions and range
	// checks.
	Size int
	// Link ties an operation to the overflow check that follows it. The two are only removable
	// together.
	Link *Instr
}

// Slot describes the placement of one argument or return value.
type Slot struct {
	// Register is the index of the argument register, or -1 for stack-passed values.
	Register int
	// Offset is the byte offset of a stack-passed value in the outgoing argument area.
	Offset int
	Size   int
}

// CallConv is the platform argument-placement descriptor attached to a call.
type CallConv struct {
	Name   string
	Args   []Slot
	Return Slot
	// StructReturn is true if value-type results are returned through a hidden pointer.
	StructReturn bool
}

func (c *CallConv) String() string {
	if c == nil {
		return "default"
	}
	return c.Name
}

// Call is a call through a target address expression.
type Call struct {
	Op     Op
	Cat    cil.Category
	Result Var
	Target Var
	Args   []Var
	Conv   *CallConv
	// Size is the size of a value-type result.
	Size int
	// Symbol names the callee for direct and resolved virtual calls.
	Symbol string
	Tail   bool
	// NoReturn marks calls that never return normally (throw helpers).
	NoReturn bool
}

// Branch transfers control to Target, conditionally when Op is not OpBr.
type Branch struct {
	Op     Op
	Cat    cil.Category
	A, B   Var
	Target int
	// Float marks comparisons of floating-point operands; unsigned comparison operators are
	// unordered.
	Float bool
}

// Switch transfers control to Targets[A] when A is in range and falls through otherwise.
type Switch struct {
	A       Var
	Targets []int
}

// PhiEdge is the value a Phi takes when control arrives from Block.
type PhiEdge struct {
	Block int
	Var   Var
}

// Phi merges values at a control-flow join.
type Phi struct {
	Result Var
	Cat    cil.Category
	Size   int
	Edges  []PhiEdge
}

// AddEdge records the value arriving from block. Re-adding an edge for the same block replaces
// its value.
func (p *Phi) AddEdge(block int, v Var) {
	for i := range p.Edges {
		if p.Edges[i].Block == block {
			p.Edges[i].Var = v
			return
		}
	}
	p.Edges = append(p.Edges, PhiEdge{Block: block, Var: v})
}

// Label marks the entry of a block.
type Label struct {
	Block int
}

// Return leaves the method (OpRet) or a finally handler (OpEndFinally). Value-type results are
// returned by address.
type Return struct {
	Op    Op
	Cat   cil.Category
	Value Var
	Size  int
}

func (*Instr) isNode() {}
func (*Call) isNode() {}
func (*Branch) isNode() {}
func (*Switch) isNode() {}
func (*Phi) isNode() {}
func (*Label) isNode() {}
func (*Return) isNode() {}

func (*Instr) FallsThrough() bool { return true }
func (c *Call) FallsThrough() bool { return !c.NoReturn }
func (b *Branch) FallsThrough() bool { return b.Op != OpBr }
func (*Switch) FallsThrough() bool { return true }
func (*Phi) FallsThrough() bool { return true }
func (*Label) FallsThrough() bool { return true }
func (*Return) FallsThrough() bool { return false }

func writeOperands(b *strings.Builder, vs ...Var) {
	first := true
	for _, v := range vs {
		if v == nil {
			continue
		}
		if first {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
		first = false
	}
}

func (i *Instr) String() string {
	var b strings.Builder
	if i.Result != nil {
		fmt.Fprintf(&b, "%v = ", i.Result)
	}
	fmt.Fprintf(&b, "%v.%v", i.Op, i.Cat)
	writeOperands(&b, i.A, i.B)
	if i.Size != 0 {
		fmt.Fprintf(&b, " #%d", i.Size)
	}
	return b.String()
}

func (c *Call) String() string {
	var b strings.Builder
	if c.Result != nil {
		fmt.Fprintf(&b, "%v = ", c.Result)
	}
	if c.Tail {
		b.WriteString("tail ")
	}
	fmt.Fprintf(&b, "%v.%v %v(", c.Op, c.Cat, c.Target)
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if c.Size != 0 {
		fmt.Fprintf(&b, " #%d", c.Size)
	}
	if c.Symbol != "" {
		fmt.Fprintf(&b, " ; %v", c.Symbol)
	}
	if c.NoReturn {
		b.WriteString(" noreturn")
	}
	return b.String()
}

func (br *Branch) String() string {
	var b strings.Builder
	b.WriteString(br.Op.String())
	if br.Op.IsCompare() {
		fmt.Fprintf(&b, ".%v", br.Cat)
	}
	if br.Float {
		b.WriteString(".f")
	}
	fmt.Fprintf(&b, " B%d", br.Target)
	if br.A != nil {
		b.WriteByte(',')
		writeOperands(&b, br.A, br.B)
	}
	return b.String()
}

func (s *Switch) String() string {
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = fmt.Sprintf("B%d", t)
	}
	return fmt.Sprintf("switch %v, (%s)", s.A, strings.Join(targets, ", "))
}

func (p *Phi) String() string {
	edges := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		edges[i] = fmt.Sprintf("B%d: %v", e.Block, e.Var)
	}
	return fmt.Sprintf("%v = phi.%v [%s]", p.Result, p.Cat, strings.Join(edges, ", "))
}

func (l *Label) String() string {
	return fmt.Sprintf("B%d:", l.Block)
}

func (r *Return) String() string {
	var b strings.Builder
	b.WriteString(r.Op.String())
	if r.Value != nil {
		fmt.Fprintf(&b, ".%v %v", r.Cat, r.Value)
	}
	if r.Size != 0 {
		fmt.Fprintf(&b, " #%d", r.Size)
	}
	return b.String()
}
