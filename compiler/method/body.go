package method

import (
	"fmt"
	"strings"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/willf/bitset"
)

// A Record is one instruction of the canonical stream. Branch labels in the embedded instruction
// hold record IDs.
type Record struct {
	code.Instruction

	// ID is the record's stable arena index. IDs are never reused.
	ID int
	// Offset is the IL offset of the instruction the record derives from, or -1 if it has none.
	Offset int

	// Resolved operands. Decomposed records carry these directly instead of tokens.
	Type            *cil.Type
	Method          *cil.Method
	Field           *cil.Field
	Sig             *cil.Signature
	Literal         string
	ConstrainedType *cil.Type
	Helper          cil.Helper
	// Resolved is true once the operands above have been filled in.
	Resolved bool

	// Stack is the PseudoStack snapshot before the instruction.
	Stack Stack

	// Lowering results.
	Nodes  []tac.Node
	Pops   int
	Pushed []StackEntry
}

// NewRecord returns a synthesized record for the given instruction.
func NewRecord(instr code.Instruction) *Record {
	return &Record{Instruction: instr, Offset: -1, Resolved: true}
}

func (r *Record) String() string {
	var b strings.Builder
	if r.Prefix != 0 {
		b.WriteString(r.Prefix.String())
		if r.ConstrainedType != nil {
			fmt.Fprintf(&b, " %v", r.ConstrainedType)
		}
		b.WriteByte(' ')
	}
	b.WriteString(r.Opcode.String())

	info := r.Info()
	switch {
	case r.Method != nil:
		fmt.Fprintf(&b, " %v", r.Method)
	case r.Field != nil:
		fmt.Fprintf(&b, " %v", r.Field)
	case r.Type != nil:
		fmt.Fprintf(&b, " %v", r.Type)
	case r.Sig != nil:
		fmt.Fprintf(&b, " %v", r.Sig)
	case r.Opcode == code.OpLdstr:
		fmt.Fprintf(&b, " %q", r.Literal)
	case r.Opcode == code.OpPseudoCallHelper:
		fmt.Fprintf(&b, " %v", r.Helper)
	case len(r.Labels) != 0:
		for i, l := range r.Labels {
			if i == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "R%d", l)
		}
	case info.Shuffle:
		fmt.Fprintf(&b, " %d", r.Depth())
	case info.Operand != code.OperandNone && !info.Operand.IsToken():
		if s := r.Instruction.String(); strings.IndexByte(s, ' ') != -1 {
			b.WriteString(s[strings.LastIndexByte(s, ' '):])
		}
	}
	return b.String()
}

// RegionKind distinguishes protected-region handlers.
type RegionKind int

const (
	RegionCatch RegionKind = iota
	RegionFinally
	RegionFault
	RegionFilter
)

func (k RegionKind) String() string {
	switch k {
	case RegionCatch:
		return "catch"
	case RegionFinally:
		return "finally"
	case RegionFault:
		return "fault"
	default:
		return "filter"
	}
}

// Region is a protected region and its handler. Boundaries are record IDs; ends are exclusive,
// and an end of -1 refers to the end of the body.
type Region struct {
	Kind         RegionKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	CatchType    *cil.Type
}

// Body is the canonical instruction stream of a method.
type Body struct {
	Method  *cil.Method
	Records []*Record
	Regions []Region

	arena   []*Record
	aliases map[int]int
	index   map[int]int
}

// NewBody creates a canonical stream from a decoded IL body. Branch labels and region
// boundaries given as instruction indices become record IDs.
func NewBody(m *cil.Method, decoded code.Body, regions []Region) *Body {
	b := &Body{Method: m, Regions: regions, aliases: map[int]int{}}
	for i, instr := range decoded.Instructions {
		r := &Record{Instruction: instr, ID: i, Offset: decoded.Offsets[i]}
		b.Records = append(b.Records, r)
		b.arena = append(b.arena, r)
	}
	for i := range b.Regions {
		b.Regions[i].TryEnd = b.endID(b.Regions[i].TryEnd)
		b.Regions[i].HandlerEnd = b.endID(b.Regions[i].HandlerEnd)
	}
	return b
}

func (b *Body) endID(index int) int {
	if index >= len(b.Records) {
		return -1
	}
	return index
}

// Record returns the record with the given ID, following the aliases left by deletions.
func (b *Body) Record(id int) *Record {
	return b.arena[b.Canonical(id)]
}

// Canonical returns the ID of the record that stands for the given ID.
func (b *Body) Canonical(id int) int {
	for {
		alias, ok := b.aliases[id]
		if !ok {
			return id
		}
		id = alias
	}
}

// Index returns the position of the record with the given ID in the stream. The end-of-body ID
// -1 maps to len(Records).
func (b *Body) Index(id int) int {
	if id == -1 {
		return len(b.Records)
	}
	if b.index == nil {
		b.index = make(map[int]int, len(b.Records))
		for i, r := range b.Records {
			b.index[r.ID] = i
		}
	}
	i, ok := b.index[b.Canonical(id)]
	if !ok {
		panic(fmt.Errorf("record %d is not in the stream", id))
	}
	return i
}

// Replace replaces the record at position i with the given records. The first replacement takes
// over the replaced record's ID, so branches and regions that referred to it now refer to the
// start of the replacement. If there are no replacements, the replaced ID becomes an alias of the
// following record. Replacements inherit the replaced record's IL offset. Stack snapshots at and
// after i are invalidated.
func (b *Body) Replace(i int, recs ...*Record) {
	old := b.Records[i]
	if len(recs) == 0 {
		if i+1 < len(b.Records) {
			b.aliases[old.ID] = b.Records[i+1].ID
		} else {
			b.aliases[old.ID] = -1
		}
	}

	for j, r := range recs {
		if j == 0 {
			r.ID = old.ID
			b.arena[old.ID] = r
		} else {
			r.ID = len(b.arena)
			b.arena = append(b.arena, r)
		}
		r.Offset = old.Offset
	}

	records := make([]*Record, 0, len(b.Records)-1+len(recs))
	records = append(records, b.Records[:i]...)
	records = append(records, recs...)
	b.Records = append(records, b.Records[i+1:]...)
	b.index = nil

	for _, r := range b.Records[i:] {
		r.Stack = nil
	}
}

// Targets returns the set of record IDs that begin a block: branch targets, handler entries,
// the first record, and records that follow a branch or a non-falling-through instruction.
func (b *Body) Targets() *bitset.BitSet {
	var targets bitset.BitSet
	if len(b.Records) == 0 {
		return &targets
	}
	targets.Set(uint(b.Records[0].ID))
	for i, r := range b.Records {
		for _, l := range r.Labels {
			if id := b.Canonical(l); id != -1 {
				targets.Set(uint(id))
			}
		}
		if i+1 < len(b.Records) {
			switch r.Info().Flow {
			case code.FlowBranch, code.FlowCondBranch, code.FlowReturn, code.FlowThrow:
				targets.Set(uint(b.Records[i+1].ID))
			}
		}
	}
	for _, region := range b.Regions {
		for _, id := range []int{region.TryStart, region.HandlerStart, region.TryEnd, region.HandlerEnd} {
			if id = b.Canonical(id); id != -1 {
				targets.Set(uint(id))
			}
		}
	}
	return &targets
}

// HandlerOf returns the region whose handler starts at the given record ID, if any.
func (b *Body) HandlerOf(id int) (*Region, bool) {
	for i := range b.Regions {
		if b.Canonical(b.Regions[i].HandlerStart) == id {
			return &b.Regions[i], true
		}
	}
	return nil, false
}

// InTry returns true if the record at position i lies inside the region's protected block.
func (b *Body) InTry(r *Region, i int) bool {
	return i >= b.Index(r.TryStart) && i < b.Index(r.TryEnd)
}

// InHandler returns true if the record at position i lies inside the region's handler.
func (b *Body) InHandler(r *Region, i int) bool {
	return i >= b.Index(r.HandlerStart) && i < b.Index(r.HandlerEnd)
}

// ExitedFinally returns the finally regions left by a leave from position from to position to,
// innermost first.
func (b *Body) ExitedFinally(from, to int) []*Region {
	var exited []*Region
	for i := range b.Regions {
		r := &b.Regions[i]
		if r.Kind == RegionFinally && b.InTry(r, from) && !b.InTry(r, to) {
			exited = append(exited, r)
		}
	}
	return exited
}

func (b *Body) String() string {
	var sb strings.Builder
	for _, r := range b.Records {
		fmt.Fprintf(&sb, "R%d: %v\n", r.ID, r)
	}
	return sb.String()
}
