package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// elements maps the typed ldelem and stelem opcodes to the element type they access.
var elements = map[code.Opcode]cil.ElementType{
	code.OpLdelemI1:  cil.ElementI1,
	code.OpLdelemU1:  cil.ElementU1,
	code.OpLdelemI2:  cil.ElementI2,
	code.OpLdelemU2:  cil.ElementU2,
	code.OpLdelemI4:  cil.ElementI4,
	code.OpLdelemU4:  cil.ElementU4,
	code.OpLdelemI8:  cil.ElementI8,
	code.OpLdelemI:   cil.ElementI,
	code.OpLdelemR4:  cil.ElementR4,
	code.OpLdelemR8:  cil.ElementR8,
	code.OpLdelemRef: cil.ElementObject,
	code.OpStelemI:   cil.ElementI,
	code.OpStelemI1:  cil.ElementI1,
	code.OpStelemI2:  cil.ElementI2,
	code.OpStelemI4:  cil.ElementI4,
	code.OpStelemI8:  cil.ElementI8,
	code.OpStelemR4:  cil.ElementR4,
	code.OpStelemR8:  cil.ElementR8,
	code.OpStelemRef: cil.ElementObject,
}

// elementType returns the element type a typed array access uses. Reference accesses take the
// element type from the array's static type.
func elementType(op code.Opcode, arr method.StackEntry) *cil.Type {
	el := elements[op]
	if el == cil.ElementObject && arr.Type.IsArray() && cil.CategoryOf(arr.Type.Elem) == cil.Object {
		return arr.Type.Elem
	}
	return cil.Primitive(el)
}

func (e *Encoder) array(arr method.StackEntry) error {
	if arr.Category() != cil.Object {
		return e.ctx.Errorf(method.ErrVerification, "array access on a value of category %v", arr.Category())
	}
	return nil
}

// element emits the bounds check and address arithmetic for arr[idx]. It returns the base
// address and the constant offset of the element from it.
func (e *Encoder) element(arr, idx method.StackEntry, elem *cil.Type) (tac.Var, int, error) {
	if err := e.array(arr); err != nil {
		return nil, 0, err
	}
	if c := idx.Category(); c != cil.Int32 && c != cil.NativeInt {
		return nil, 0, e.ctx.Errorf(method.ErrVerification, "array index of category %v", c)
	}

	arrType := arr.Type
	if !arrType.IsArray() {
		arrType = cil.ArrayOf(elem)
	}
	l, err := e.layout(arrType)
	if err != nil {
		return nil, 0, err
	}

	length := e.NewVar()
	i := e.promote(idx, cil.NativeInt)
	e.Emit(
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: length, A: tac.Deref(arr.Var, l.LengthOffset, 4)},
		&tac.Instr{Op: tac.OpCheckBounds, Cat: cil.NativeInt, A: length, B: i},
	)

	if c, ok := i.(tac.Const); ok {
		return arr.Var, l.DataOffset + int(c.Int())*l.ElementSize, nil
	}

	offset := i
	if l.ElementSize != 1 {
		scaled := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpMul, Cat: cil.NativeInt, Result: scaled, A: i, B: tac.Native(int64(l.ElementSize))})
		offset = scaled
	}
	p := e.NewVar()
	e.Emit(&tac.Instr{Op: tac.OpAdd, Cat: cil.ByRef, Result: p, A: arr.Var, B: offset})
	return p, l.DataOffset, nil
}

func (e *Encoder) newarr(elem *cil.Type, n method.StackEntry) ([]method.StackEntry, error) {
	if c := n.Category(); c != cil.Int32 && c != cil.NativeInt {
		return nil, e.ctx.Errorf(method.ErrVerification, "array length of category %v", c)
	}
	t := cil.ArrayOf(elem)
	e.env.RequestTypeInfo(t)
	r, err := e.helper(cil.HelperNewArray, tac.Symbol{Name: e.env.TypeInfo(t)}, e.promote(n, cil.NativeInt))
	if err != nil {
		return nil, err
	}
	return e.push(t, r), nil
}

func (e *Encoder) ldlen(arr method.StackEntry) ([]method.StackEntry, error) {
	if err := e.array(arr); err != nil {
		return nil, err
	}
	arrType := arr.Type
	if !arrType.IsArray() {
		arrType = cil.ArrayOf(cil.TypeOf(cil.Object))
	}
	l, err := e.layout(arrType)
	if err != nil {
		return nil, err
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: r, A: tac.Deref(arr.Var, l.LengthOffset, 4)})
	return e.push(cil.Primitive(cil.ElementU), r), nil
}

func (e *Encoder) ldelema(elem *cil.Type, arr, idx method.StackEntry) ([]method.StackEntry, error) {
	base, off, err := e.element(arr, idx, elem)
	if err != nil {
		return nil, err
	}
	return e.push(cil.ByRefTo(elem), e.offsetAddress(base, off)), nil
}

func (e *Encoder) ldelem(op code.Opcode, arr, idx method.StackEntry) ([]method.StackEntry, error) {
	t := elementType(op, arr)
	base, off, err := e.element(arr, idx, t)
	if err != nil {
		return nil, err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return nil, err
	}
	return e.load(tac.Deref(base, off, size), t, false)
}

func (e *Encoder) stelem(op code.Opcode, arr, idx, v method.StackEntry) error {
	t := elementType(op, arr)
	if op == code.OpStelemRef {
		if c, ok := v.Var.(tac.Const); !ok || !c.IsZero() {
			if err := e.array(arr); err != nil {
				return err
			}
			if _, err := e.helper(cil.HelperArrayStoreCheck, arr.Var, v.Var); err != nil {
				return err
			}
		}
	}
	base, off, err := e.element(arr, idx, t)
	if err != nil {
		return err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return err
	}
	return e.store(tac.Deref(base, off, size), t, v, false)
}
