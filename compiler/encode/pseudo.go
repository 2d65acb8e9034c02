package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

func (e *Encoder) typeInfoSymbol(t *cil.Type) ([]method.StackEntry, error) {
	e.env.RequestTypeInfo(t)
	return e.push(cil.Primitive(cil.ElementI), tac.Symbol{Name: e.env.TypeInfo(t)}), nil
}

func (e *Encoder) alloc(t *cil.Type) ([]method.StackEntry, error) {
	e.env.RequestTypeInfo(t)
	obj, err := e.helper(cil.HelperAllocObject, tac.Symbol{Name: e.env.TypeInfo(t)})
	if err != nil {
		return nil, err
	}
	return e.push(t, obj), nil
}

// boxedOf returns the type an object must have to pass a type test against t.
func (e *Encoder) boxedOf(t *cil.Type) (*cil.Type, error) {
	if !t.IsValueType() {
		return t, nil
	}
	boxed, err := e.env.Boxed(t)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	return boxed, nil
}

func (e *Encoder) typeTest(t *cil.Type, o method.StackEntry) ([]method.StackEntry, error) {
	if o.Category() != cil.Object {
		return nil, e.ctx.Errorf(method.ErrVerification, "type test of a value of category %v", o.Category())
	}
	target, err := e.boxedOf(t)
	if err != nil {
		return nil, err
	}

	h := cil.HelperIsInstanceOfClass
	switch {
	case target.IsInterface():
		h = cil.HelperIsInstanceOfInterface
	case target.IsArray():
		h = cil.HelperIsInstanceOfArray
	}
	e.env.RequestTypeInfo(target)
	r, err := e.helper(h, o.Var, tac.Symbol{Name: e.env.TypeInfo(target)})
	if err != nil {
		return nil, err
	}
	return e.push(target, r), nil
}

// castCheck throws unless the type test result r is the tested object o. A null object passes.
func (e *Encoder) castCheck(t *cil.Type, o, r method.StackEntry) ([]method.StackEntry, error) {
	ok, fail := e.newBlock(), e.newBlock()
	e.Emit(&tac.Branch{Op: tac.OpCeq, Cat: cil.Object, A: o.Var, B: r.Var, Target: ok})
	e.startBlock(fail)
	if _, err := e.helper(cil.HelperThrowInvalidCast); err != nil {
		return nil, err
	}
	e.startBlock(ok)
	return e.push(r.Type, r.Var), nil
}

// makeHandle wraps a runtime info pointer in a handle value.
func (e *Encoder) makeHandle(t *cil.Type, p method.StackEntry) ([]method.StackEntry, error) {
	size, err := e.sizeOf(t)
	if err != nil {
		return nil, err
	}
	ptr := e.ptr()
	h := e.NewVar()
	if size > ptr {
		e.Emit(&tac.Instr{Op: tac.OpZero, Cat: cil.ValueType, A: tac.Addr(h, 0), Size: size})
	}
	e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: tac.Deref(tac.Addr(h, 0), 0, ptr), A: p.Var})
	return e.push(t, h), nil
}

// unbox checks that o is a boxed t and yields the address of its value.
func (e *Encoder) unbox(t *cil.Type, o method.StackEntry) ([]method.StackEntry, error) {
	if o.Category() != cil.Object {
		return nil, e.ctx.Errorf(method.ErrVerification, "unbox of a value of category %v", o.Category())
	}
	if !t.IsValueType() {
		return nil, e.ctx.Errorf(method.ErrVerification, "unbox to reference type %v", t)
	}
	boxed, err := e.boxedOf(t)
	if err != nil {
		return nil, err
	}

	var value *cil.Field
	for _, f := range boxed.Fields {
		if !f.Static {
			value = f
			break
		}
	}
	if value == nil {
		return nil, e.ctx.Errorf(method.ErrResolution, "boxed type %v has no value field", boxed)
	}
	off, err := e.fieldOffset(value)
	if err != nil {
		return nil, err
	}

	e.env.RequestTypeInfo(boxed)
	if _, err := e.helper(cil.HelperUnboxCheck, o.Var, tac.Symbol{Name: e.env.TypeInfo(boxed)}); err != nil {
		return nil, err
	}
	return e.push(cil.ByRefTo(t), e.offsetAddress(o.Var, off)), nil
}
