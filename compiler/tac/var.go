package tac

import (
	"fmt"
	"math"

	"github.com/pgavlin/cil2tac/cil"
)

// A Var is an operand reference. Vars are comparable values: == is structural equality, and Vars
// may be used directly as map keys.
type Var interface {
	fmt.Stringer

	isVar()
}

// Const is a compile-time constant. Bits holds the value's bit pattern; floats are stored as
// their IEEE representation.
type Const struct {
	Cat  cil.Category
	Bits uint64
}

// Symbol is the address of a named global label (data or function).
type Symbol struct {
	Name string
}

// Arg is a method argument slot.
type Arg struct {
	Index int
}

// Local is a local variable slot.
type Local struct {
	Index int
}

// Logical is a fresh single-assignment temporary.
type Logical struct {
	ID int
}

// AddressOf is the address of its operand's storage plus a constant byte offset.
type AddressOf struct {
	Of     Var
	Offset int
}

// ContentsOf is the Width bytes of memory at its operand's value plus a constant byte offset.
type ContentsOf struct {
	Of     Var
	Offset int
	Width  int
}

func (Const) isVar() {}
func (Symbol) isVar() {}
func (Arg) isVar() {}
func (Local) isVar() {}
func (Logical) isVar() {}
func (AddressOf) isVar() {}
func (ContentsOf) isVar() {}

func I32(v int32) Const {
	return Const{Cat: cil.Int32, Bits: uint64(int64(v))}
}

func I64(v int64) Const {
	return Const{Cat: cil.Int64, Bits: uint64(v)}
}

func Native(v int64) Const {
	return Const{Cat: cil.NativeInt, Bits: uint64(v)}
}

func F32(v float32) Const {
	return Const{Cat: cil.Float32, Bits: uint64(math.Float32bits(v))}
}

func F64(v float64) Const {
	return Const{Cat: cil.Float64, Bits: math.Float64bits(v)}
}

// Null is the null object reference.
func Null() Const {
	return Const{Cat: cil.Object}
}

func (c Const) Int() int64 {
	if c.Cat == cil.Int32 {
		return int64(int32(c.Bits))
	}
	return int64(c.Bits)
}

func (c Const) Float() float64 {
	if c.Cat == cil.Float32 {
		return float64(math.Float32frombits(uint32(c.Bits)))
	}
	return math.Float64frombits(c.Bits)
}

// IsZero returns true if the constant's bit pattern is all zeroes.
func (c Const) IsZero() bool {
	return c.Bits == 0
}

// Addr returns the address of v's storage plus offset. Taking the address of an address folds
// the offsets; taking the address of memory contents is not representable and panics.
func Addr(v Var, offset int) Var {
	switch v := v.(type) {
	case AddressOf:
		panic(fmt.Errorf("address of address %v", v))
	case ContentsOf:
		panic(fmt.Errorf("address of contents %v", v))
	case Const:
		panic(fmt.Errorf("address of constant %v", v))
	}
	return AddressOf{Of: v, Offset: offset}
}

// Deref returns the width bytes of memory at v plus offset.
func Deref(v Var, offset, width int) Var {
	return ContentsOf{Of: v, Offset: offset, Width: width}
}

// Offset returns an address offset bytes past the address v. It only applies to address-of
// composites; other addresses must be offset with an add.
func Offset(v Var, offset int) (Var, bool) {
	if a, ok := v.(AddressOf); ok {
		a.Offset += offset
		return a, true
	}
	if offset == 0 {
		return v, true
	}
	return nil, false
}

// IsMemory returns true if v refers to memory rather than a register-allocatable value.
func IsMemory(v Var) bool {
	_, ok := v.(ContentsOf)
	return ok
}

func offsetString(offset int) string {
	switch {
	case offset > 0:
		return fmt.Sprintf("+%d", offset)
	case offset < 0:
		return fmt.Sprintf("%d", offset)
	}
	return ""
}

func (c Const) String() string {
	switch c.Cat {
	case cil.Int32:
		return fmt.Sprintf("%d", int32(c.Bits))
	case cil.Int64, cil.NativeInt:
		return fmt.Sprintf("%d:%v", int64(c.Bits), c.Cat)
	case cil.Float32, cil.Float64:
		return fmt.Sprintf("%v:%v", c.Float(), c.Cat)
	case cil.Object:
		if c.Bits == 0 {
			return "null"
		}
	}
	return fmt.Sprintf("0x%x:%v", c.Bits, c.Cat)
}

func (s Symbol) String() string {
	return "@" + s.Name
}

func (a Arg) String() string {
	return fmt.Sprintf("a%d", a.Index)
}

func (l Local) String() string {
	return fmt.Sprintf("l%d", l.Index)
}

func (l Logical) String() string {
	return fmt.Sprintf("t%d", l.ID)
}

func (a AddressOf) String() string {
	return fmt.Sprintf("&%v%s", a.Of, offsetString(a.Offset))
}

func (c ContentsOf) String() string {
	return fmt.Sprintf("[%v%s]:%d", c.Of, offsetString(c.Offset), c.Width)
}
