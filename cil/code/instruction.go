package code

import (
	"fmt"
	"math"
	"strings"

	"github.com/pgavlin/cil2tac/cil"
)

// Prefix is the set of instruction prefixes applied to an instruction.
type Prefix uint8

const (
	PrefixConstrained Prefix = 1 << iota
	PrefixVolatile
	PrefixUnaligned
	PrefixTail
	PrefixReadonly
	PrefixNo
)

var prefixNames = []struct {
	p    Prefix
	name string
}{
	{PrefixConstrained, "constrained."},
	{PrefixVolatile, "volatile."},
	{PrefixUnaligned, "unaligned."},
	{PrefixTail, "tail."},
	{PrefixReadonly, "readonly."},
	{PrefixNo, "no."},
}

func (p Prefix) String() string {
	var names []string
	for _, n := range prefixNames {
		if p&n.p != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, " ")
}

// Instruction is a single decoded instruction. Prefixes are folded into the instruction they
// modify.
type Instruction struct {
	Opcode    Opcode `json:"opcode"`
	Immediate uint64 `json:"immediate"`
	Labels    []int  `json:"labels"`

	Prefix Prefix `json:"prefix"`
	// PrefixArg holds the alignment of unaligned. or the check mask of no.
	PrefixArg uint8 `json:"prefixArg"`
	// Constrained holds the type token of a constrained. prefix.
	Constrained cil.Token `json:"constrained"`
}

// Info returns the catalog entry for the instruction's opcode.
func (i *Instruction) Info() *Info {
	return MustLookup(i.Opcode)
}

// Label returns the target of a branch instruction.
func (i *Instruction) Label() int {
	return i.Labels[0]
}

func (i *Instruction) I32() int32 {
	return int32(i.Immediate)
}

func (i *Instruction) I64() int64 {
	return int64(i.Immediate)
}

func (i *Instruction) F32() float32 {
	return math.Float32frombits(uint32(i.Immediate))
}

func (i *Instruction) F64() float64 {
	return math.Float64frombits(i.Immediate)
}

func (i *Instruction) Token() cil.Token {
	return cil.Token(i.Immediate)
}

// Depth returns the stack depth operand of a shuffle pseudo-instruction.
func (i *Instruction) Depth() int {
	return int(i.Immediate)
}

// Argidx returns the argument index of an ldarg/ldarga/starg instruction, including the
// short and macro forms.
func (i *Instruction) Argidx() int {
	switch i.Opcode {
	case OpLdarg0, OpLdarg1, OpLdarg2, OpLdarg3:
		return int(i.Opcode - OpLdarg0)
	}
	return int(i.Immediate)
}

// Localidx returns the local index of an ldloc/ldloca/stloc instruction, including the short and
// macro forms.
func (i *Instruction) Localidx() int {
	switch i.Opcode {
	case OpLdloc0, OpLdloc1, OpLdloc2, OpLdloc3:
		return int(i.Opcode - OpLdloc0)
	case OpStloc0, OpStloc1, OpStloc2, OpStloc3:
		return int(i.Opcode - OpStloc0)
	}
	return int(i.Immediate)
}

// ConstI4 returns the constant pushed by an ldc.i4 instruction in any of its forms.
func (i *Instruction) ConstI4() int32 {
	switch i.Opcode {
	case OpLdcI4M1:
		return -1
	case OpLdcI40, OpLdcI41, OpLdcI42, OpLdcI43, OpLdcI44, OpLdcI45, OpLdcI46, OpLdcI47, OpLdcI48:
		return int32(i.Opcode - OpLdcI40)
	}
	return i.I32()
}

// IsVolatile returns true if the instruction carries a volatile. prefix.
func (i *Instruction) IsVolatile() bool {
	return i.Prefix&PrefixVolatile != 0
}

// Format writes a textual form of the instruction. Token operands are printed raw.
func (i Instruction) String() string {
	var b strings.Builder
	if i.Prefix != 0 {
		b.WriteString(i.Prefix.String())
		if i.Prefix&PrefixConstrained != 0 {
			fmt.Fprintf(&b, " %v", i.Constrained)
		}
		b.WriteByte(' ')
	}
	b.WriteString(i.Opcode.String())

	info, ok := Lookup(i.Opcode)
	if !ok {
		return b.String()
	}
	switch info.Operand {
	case OperandInt8, OperandInt32, OperandVar8, OperandVar16:
		fmt.Fprintf(&b, " %d", i.I32())
	case OperandInt64:
		fmt.Fprintf(&b, " %d", i.I64())
	case OperandFloat32:
		fmt.Fprintf(&b, " %v", i.F32())
	case OperandFloat64:
		fmt.Fprintf(&b, " %v", i.F64())
	case OperandBranch8, OperandBranch32, OperandSwitch:
		b.WriteString(" ")
		for j, l := range i.Labels {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "L%d", l)
		}
	case OperandToken, OperandMethod, OperandField, OperandType, OperandString, OperandSignature:
		fmt.Fprintf(&b, " %v", i.Token())
	case OperandPseudo:
		if info.Shuffle {
			fmt.Fprintf(&b, " %d", i.Depth())
		}
	}
	return b.String()
}
