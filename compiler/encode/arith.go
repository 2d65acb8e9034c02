package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

type binop struct {
	op tac.Op
	// check is the overflow check that follows the operation, if any.
	check   tac.Op
	intOnly bool
	// byref is set for the operators that accept managed pointer operands.
	byref bool
}

var binops = map[code.Opcode]binop{
	code.OpAdd:      {op: tac.OpAdd, byref: true},
	code.OpSub:      {op: tac.OpSub, byref: true},
	code.OpMul:      {op: tac.OpMul},
	code.OpDiv:      {op: tac.OpDiv},
	code.OpDivUn:    {op: tac.OpDivUn, intOnly: true},
	code.OpRem:      {op: tac.OpRem},
	code.OpRemUn:    {op: tac.OpRemUn, intOnly: true},
	code.OpAnd:      {op: tac.OpAnd, intOnly: true},
	code.OpOr:       {op: tac.OpOr, intOnly: true},
	code.OpXor:      {op: tac.OpXor, intOnly: true},
	code.OpAddOvf:   {op: tac.OpAdd, check: tac.OpCheckOverflow, intOnly: true},
	code.OpAddOvfUn: {op: tac.OpAdd, check: tac.OpCheckOverflowUn, intOnly: true, byref: true},
	code.OpSubOvf:   {op: tac.OpSub, check: tac.OpCheckOverflow, intOnly: true},
	code.OpSubOvfUn: {op: tac.OpSub, check: tac.OpCheckOverflowUn, intOnly: true, byref: true},
	code.OpMulOvf:   {op: tac.OpMul, check: tac.OpCheckOverflow, intOnly: true},
	code.OpMulOvfUn: {op: tac.OpMul, check: tac.OpCheckOverflowUn, intOnly: true},
}

// binaryCategory returns the category binary arithmetic on operands of categories a and b
// produces. Int32 and NativeInt operands combine to NativeInt, float operands widen to the wider
// float, and managed pointers may be offset by integers.
func binaryCategory(op tac.Op, bin binop, a, b cil.Category) (cil.Category, bool) {
	switch {
	case a == b && a.IsInteger():
		return a, true
	case a.IsFloat() && b.IsFloat():
		if bin.intOnly {
			return 0, false
		}
		if a == cil.Float64 || b == cil.Float64 {
			return cil.Float64, true
		}
		return cil.Float32, true
	case a == cil.Int32 && b == cil.NativeInt, a == cil.NativeInt && b == cil.Int32:
		return cil.NativeInt, true
	case bin.byref && a == cil.ByRef && (b == cil.Int32 || b == cil.NativeInt):
		return cil.ByRef, true
	case bin.byref && op == tac.OpAdd && (a == cil.Int32 || a == cil.NativeInt) && b == cil.ByRef:
		return cil.ByRef, true
	}
	return 0, false
}

// promote widens an operand to the given category. Constants are folded.
func (e *Encoder) promote(v method.StackEntry, to cil.Category) tac.Var {
	from := v.Category()
	switch {
	case from == to:
		return v.Var
	case from == cil.Int32 && (to == cil.NativeInt || to == cil.ByRef || to == cil.Int64):
		if c, ok := v.Var.(tac.Const); ok {
			if to == cil.Int64 {
				return tac.I64(c.Int())
			}
			return tac.Native(c.Int())
		}
		if to != cil.Int64 && e.ptr() == 4 {
			return v.Var
		}
		r := e.NewVar()
		cat := cil.NativeInt
		if to == cil.Int64 {
			cat = cil.Int64
		}
		e.Emit(&tac.Instr{Op: tac.OpSext, Cat: cat, Result: r, A: v.Var, Size: 4})
		return r
	case from == cil.Float32 && to == cil.Float64:
		if c, ok := v.Var.(tac.Const); ok {
			return tac.F64(c.Float())
		}
		r := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpFExt, Cat: cil.Float64, Result: r, A: v.Var, Size: 4})
		return r
	}
	return v.Var
}

// resultType returns the stack type of an arithmetic result.
func resultType(cat cil.Category, a, b method.StackEntry) *cil.Type {
	if cat == cil.ByRef {
		if a.Category() == cil.ByRef {
			return a.Type
		}
		return b.Type
	}
	return cil.TypeOf(cat)
}

func (e *Encoder) binary(op code.Opcode, a, b method.StackEntry) ([]method.StackEntry, error) {
	bin := binops[op]
	cat, ok := binaryCategory(bin.op, bin, a.Category(), b.Category())
	if !ok {
		return nil, e.ctx.Unsupported("%v on operands of categories %v and %v", op, a.Category(), b.Category())
	}

	va, vb := e.promote(a, cat), e.promote(b, cat)
	r := e.NewVar()
	instr := &tac.Instr{Op: bin.op, Cat: cat, Result: r, A: va, B: vb}
	e.Emit(instr)
	if bin.check != tac.OpInvalid {
		check := &tac.Instr{Op: bin.check, Cat: cat, A: r, Link: instr}
		instr.Link = check
		e.Emit(check)
	}
	return e.push(resultType(cat, a, b), r), nil
}

var shiftOps = map[code.Opcode]tac.Op{
	code.OpShl:   tac.OpShl,
	code.OpShr:   tac.OpShr,
	code.OpShrUn: tac.OpShrUn,
}

func (e *Encoder) shift(op code.Opcode, value, amount method.StackEntry) ([]method.StackEntry, error) {
	cat := value.Category()
	if !cat.IsInteger() {
		return nil, e.ctx.Errorf(method.ErrVerification, "%v of a value of category %v", op, cat)
	}
	if a := amount.Category(); a != cil.Int32 && a != cil.NativeInt {
		return nil, e.ctx.Errorf(method.ErrVerification, "%v by an amount of category %v", op, a)
	}

	r := e.NewVar()
	e.Emit(&tac.Instr{Op: shiftOps[op], Cat: cat, Result: r, A: value.Var, B: amount.Var})
	return e.push(cil.TypeOf(cat), r), nil
}

func (e *Encoder) unary(op code.Opcode, v method.StackEntry) ([]method.StackEntry, error) {
	cat := v.Category()
	switch {
	case cat.IsInteger():
	case cat.IsFloat() && op == code.OpNeg:
	default:
		return nil, e.ctx.Errorf(method.ErrVerification, "%v of a value of category %v", op, cat)
	}

	tacOp := tac.OpNeg
	if op == code.OpNot {
		tacOp = tac.OpNot
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: tacOp, Cat: cat, Result: r, A: v.Var})
	return e.push(cil.TypeOf(cat), r), nil
}

// compareCategory returns the category in which operands of categories a and b are compared.
// Managed pointers compare with native ints and object references with each other only for
// equality, except that cgt.un tests an object reference against null.
func compareCategory(op tac.Op, a, b cil.Category) (cil.Category, bool) {
	eq := op == tac.OpCeq || op == tac.OpCne
	switch {
	case a == b && (a.IsInteger() || a == cil.ByRef):
		return a, true
	case a.IsFloat() && b.IsFloat():
		if a == cil.Float64 || b == cil.Float64 {
			return cil.Float64, true
		}
		return cil.Float32, true
	case a == cil.Int32 && b == cil.NativeInt, a == cil.NativeInt && b == cil.Int32:
		return cil.NativeInt, true
	case a == cil.ByRef && b == cil.NativeInt, a == cil.NativeInt && b == cil.ByRef:
		return cil.NativeInt, eq
	case a == cil.Object && b == cil.Object:
		return cil.Object, eq || op == tac.OpCgtUn || op == tac.OpCltUn
	}
	return 0, false
}

var compareOps = map[code.Opcode]tac.Op{
	code.OpCeq:    tac.OpCeq,
	code.OpCgt:    tac.OpCgt,
	code.OpCgtUn:  tac.OpCgtUn,
	code.OpClt:    tac.OpClt,
	code.OpCltUn:  tac.OpCltUn,
	code.OpBeq:    tac.OpCeq,
	code.OpBeqS:   tac.OpCeq,
	code.OpBneUn:  tac.OpCne,
	code.OpBneUnS: tac.OpCne,
	code.OpBge:    tac.OpCge,
	code.OpBgeS:   tac.OpCge,
	code.OpBgeUn:  tac.OpCgeUn,
	code.OpBgeUnS: tac.OpCgeUn,
	code.OpBgt:    tac.OpCgt,
	code.OpBgtS:   tac.OpCgt,
	code.OpBgtUn:  tac.OpCgtUn,
	code.OpBgtUnS: tac.OpCgtUn,
	code.OpBle:    tac.OpCle,
	code.OpBleS:   tac.OpCle,
	code.OpBleUn:  tac.OpCleUn,
	code.OpBleUnS: tac.OpCleUn,
	code.OpBlt:    tac.OpClt,
	code.OpBltS:   tac.OpClt,
	code.OpBltUn:  tac.OpCltUn,
	code.OpBltUnS: tac.OpCltUn,
}

// operands checks and promotes the operands of a comparison.
func (e *Encoder) operands(op code.Opcode, a, b method.StackEntry) (tac.Op, cil.Category, tac.Var, tac.Var, error) {
	cmp := compareOps[op]
	cat, ok := compareCategory(cmp, a.Category(), b.Category())
	if !ok {
		return 0, 0, nil, nil, e.ctx.Unsupported("%v on operands of categories %v and %v", op, a.Category(), b.Category())
	}
	return cmp, cat, e.promote(a, cat), e.promote(b, cat), nil
}

func (e *Encoder) compare(op code.Opcode, a, b method.StackEntry) ([]method.StackEntry, error) {
	cmp, cat, va, vb, err := e.operands(op, a, b)
	if err != nil {
		return nil, err
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: cmp, Cat: cat, Result: r, A: va, B: vb})
	return e.push(cil.TypeOf(cil.Int32), r), nil
}

func (e *Encoder) ckfinite(v method.StackEntry) ([]method.StackEntry, error) {
	if !v.Category().IsFloat() {
		return nil, e.ctx.Errorf(method.ErrVerification, "ckfinite of a value of category %v", v.Category())
	}
	e.Emit(&tac.Instr{Op: tac.OpCheckFinite, Cat: v.Category(), A: v.Var})
	return []method.StackEntry{v}, nil
}
