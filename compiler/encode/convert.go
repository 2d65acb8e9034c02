package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

type conversion struct {
	target cil.ElementType
	// check is set for the range-checked conversions.
	check bool
	// unsigned treats an integer source as unsigned.
	unsigned bool
}

var conversions = map[code.Opcode]conversion{
	code.OpConvI1:      {target: cil.ElementI1},
	code.OpConvI2:      {target: cil.ElementI2},
	code.OpConvI4:      {target: cil.ElementI4},
	code.OpConvI8:      {target: cil.ElementI8},
	code.OpConvR4:      {target: cil.ElementR4},
	code.OpConvR8:      {target: cil.ElementR8},
	code.OpConvU1:      {target: cil.ElementU1},
	code.OpConvU2:      {target: cil.ElementU2},
	code.OpConvU4:      {target: cil.ElementU4},
	code.OpConvU8:      {target: cil.ElementU8},
	code.OpConvI:       {target: cil.ElementI},
	code.OpConvU:       {target: cil.ElementU},
	code.OpConvRUn:     {target: cil.ElementR8, unsigned: true},
	code.OpConvOvfI1:   {target: cil.ElementI1, check: true},
	code.OpConvOvfI2:   {target: cil.ElementI2, check: true},
	code.OpConvOvfI4:   {target: cil.ElementI4, check: true},
	code.OpConvOvfI8:   {target: cil.ElementI8, check: true},
	code.OpConvOvfU1:   {target: cil.ElementU1, check: true},
	code.OpConvOvfU2:   {target: cil.ElementU2, check: true},
	code.OpConvOvfU4:   {target: cil.ElementU4, check: true},
	code.OpConvOvfU8:   {target: cil.ElementU8, check: true},
	code.OpConvOvfI:    {target: cil.ElementI, check: true},
	code.OpConvOvfU:    {target: cil.ElementU, check: true},
	code.OpConvOvfI1Un: {target: cil.ElementI1, check: true, unsigned: true},
	code.OpConvOvfI2Un: {target: cil.ElementI2, check: true, unsigned: true},
	code.OpConvOvfI4Un: {target: cil.ElementI4, check: true, unsigned: true},
	code.OpConvOvfI8Un: {target: cil.ElementI8, check: true, unsigned: true},
	code.OpConvOvfU1Un: {target: cil.ElementU1, check: true, unsigned: true},
	code.OpConvOvfU2Un: {target: cil.ElementU2, check: true, unsigned: true},
	code.OpConvOvfU4Un: {target: cil.ElementU4, check: true, unsigned: true},
	code.OpConvOvfU8Un: {target: cil.ElementU8, check: true, unsigned: true},
	code.OpConvOvfIUn:  {target: cil.ElementI, check: true, unsigned: true},
	code.OpConvOvfUUn:  {target: cil.ElementU, check: true, unsigned: true},
}

// rangeCheck returns the check for converting to a target of the given signedness.
func rangeCheck(src cil.Category, signedTarget, unsignedSource bool) tac.Op {
	switch {
	case signedTarget && unsignedSource && !src.IsFloat():
		return tac.OpCheckConvIUn
	case signedTarget:
		return tac.OpCheckConvI
	case unsignedSource && !src.IsFloat():
		return tac.OpCheckConvUUn
	}
	return tac.OpCheckConvU
}

func (e *Encoder) convert(op code.Opcode, v method.StackEntry) ([]method.StackEntry, error) {
	conv := conversions[op]
	target := cil.Primitive(conv.target)
	dst := cil.CategoryOf(target)
	signed := !conv.target.IsUnsigned()

	src := v.Category()
	switch src {
	case cil.Object, cil.ByRef:
		if !dst.IsInteger() || dst == cil.Int32 {
			return nil, e.ctx.Errorf(method.ErrVerification, "%v of a value of category %v", op, src)
		}
		if err := e.ctx.Verify("%v of a reference of category %v", op, src); err != nil {
			return nil, err
		}
		src = cil.NativeInt
	case cil.ValueType, cil.Void:
		return nil, e.ctx.Errorf(method.ErrVerification, "%v of a value of category %v", op, src)
	}

	tw := conv.target.Width()
	if tw == 0 {
		tw = e.ptr()
	}
	sw := e.width(src)

	if conv.check && !dst.IsFloat() {
		e.Emit(&tac.Instr{Op: rangeCheck(src, signed, conv.unsigned), Cat: src, A: v.Var, Size: tw})
	}

	r := e.NewVar()
	switch {
	case dst.IsFloat() && src.IsFloat():
		switch {
		case src == dst:
			return e.push(target, v.Var), nil
		case dst == cil.Float64:
			e.Emit(&tac.Instr{Op: tac.OpFExt, Cat: dst, Result: r, A: v.Var, Size: 4})
		default:
			e.Emit(&tac.Instr{Op: tac.OpFTrunc, Cat: dst, Result: r, A: v.Var, Size: 8})
		}
	case dst.IsFloat():
		tacOp := tac.OpIToF
		if conv.unsigned {
			tacOp = tac.OpUToF
		}
		e.Emit(&tac.Instr{Op: tacOp, Cat: dst, Result: r, A: v.Var, Size: sw})
	case src.IsFloat():
		tacOp := tac.OpFToI
		if !signed {
			tacOp = tac.OpFToU
		}
		e.Emit(&tac.Instr{Op: tacOp, Cat: dst, Result: r, A: e.promote(v, cil.Float64), Size: tw})
	case tw < 4:
		tacOp := tac.OpSext
		if !signed {
			tacOp = tac.OpZext
		}
		e.Emit(&tac.Instr{Op: tacOp, Cat: dst, Result: r, A: v.Var, Size: tw})
	case tw == sw:
		if src == dst {
			return e.push(target, v.Var), nil
		}
		e.Emit(&tac.Instr{Op: tac.OpMov, Cat: dst, Result: r, A: v.Var})
	case tw > sw:
		tacOp := tac.OpSext
		if !signed || conv.unsigned {
			tacOp = tac.OpZext
		}
		e.Emit(&tac.Instr{Op: tacOp, Cat: dst, Result: r, A: v.Var, Size: sw})
	default:
		e.Emit(&tac.Instr{Op: tac.OpTrunc, Cat: dst, Result: r, A: v.Var, Size: tw})
	}
	return e.push(target, r), nil
}
