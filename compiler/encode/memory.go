package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// load reads a value of type t from the memory operand mem into a fresh temporary. Narrow signed
// integers are sign-extended; narrow unsigned integers are zero-extended by the move itself.
func (e *Encoder) load(mem tac.Var, t *cil.Type, volatile bool) ([]method.StackEntry, error) {
	cat := cil.CategoryOf(t)
	size, err := e.sizeOf(t)
	if err != nil {
		return nil, err
	}

	mov := tac.OpMov
	if volatile {
		mov = tac.OpMovVolatile
	}

	r := e.NewVar()
	switch {
	case cat == cil.ValueType:
		e.Emit(&tac.Instr{Op: mov, Cat: cat, Result: r, A: mem, Size: size})
	case cat == cil.Int32 && size < 4 && !underlying(t).IsUnsigned():
		if volatile {
			raw := e.NewVar()
			e.Emit(&tac.Instr{Op: mov, Cat: cat, Result: raw, A: mem})
			mem = raw
		}
		e.Emit(&tac.Instr{Op: tac.OpSext, Cat: cat, Result: r, A: mem, Size: size})
	default:
		e.Emit(&tac.Instr{Op: mov, Cat: cat, Result: r, A: mem})
	}
	return e.push(t, r), nil
}

// store writes v, coerced to type t, to the memory operand mem.
func (e *Encoder) store(mem tac.Var, t *cil.Type, v method.StackEntry, volatile bool) error {
	val, err := e.coerce(v, t)
	if err != nil {
		return err
	}
	size, err := e.valueSize(t)
	if err != nil {
		return err
	}

	mov := tac.OpMov
	if volatile {
		mov = tac.OpMovVolatile
	}
	e.Emit(&tac.Instr{Op: mov, Cat: cil.CategoryOf(t), Result: mem, A: val, Size: size})
	return nil
}

func underlying(t *cil.Type) cil.ElementType {
	if t.IsEnum() && t.Elem != nil {
		return underlying(t.Elem)
	}
	return t.Element
}

// coerce converts a stack value to the representation of a storage location or parameter of type
// t. Int32 and NativeInt interconvert, as do the float categories. Managed pointers and native
// ints interconvert with a verification warning.
func (e *Encoder) coerce(v method.StackEntry, t *cil.Type) (tac.Var, error) {
	from, to := v.Category(), cil.CategoryOf(t)
	switch {
	case from == to:
		return v.Var, nil
	case from == cil.Int32 && to == cil.NativeInt, from == cil.Float32 && to == cil.Float64:
		return e.promote(v, to), nil
	case from == cil.NativeInt && to == cil.Int32:
		if c, ok := v.Var.(tac.Const); ok {
			return tac.I32(int32(c.Int())), nil
		}
		if e.ptr() == 4 {
			return v.Var, nil
		}
		r := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpTrunc, Cat: cil.Int32, Result: r, A: v.Var, Size: 4})
		return r, nil
	case from == cil.Float64 && to == cil.Float32:
		r := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpFTrunc, Cat: cil.Float32, Result: r, A: v.Var, Size: 8})
		return r, nil
	case from == cil.NativeInt && to == cil.ByRef, from == cil.ByRef && to == cil.NativeInt:
		if err := e.ctx.Verify("%v value used as %v", from, t); err != nil {
			return nil, err
		}
		return v.Var, nil
	}
	return nil, e.ctx.Errorf(method.ErrVerification, "value of type %v (%v) used as %v (%v)", v.Type, from, t, to)
}

func (e *Encoder) argType(n int) (*cil.Type, error) {
	if n < 0 || n >= e.ctx.Method.Sig.ArgCount() {
		return nil, e.ctx.Errorf(method.ErrVerification, "argument %d out of range", n)
	}
	return e.ctx.Method.ParamType(n), nil
}

func (e *Encoder) localType(n int) (*cil.Type, error) {
	if n < 0 || n >= len(e.ctx.Method.Locals) {
		return nil, e.ctx.Errorf(method.ErrVerification, "local %d out of range", n)
	}
	return e.ctx.Method.Locals[n], nil
}

func (e *Encoder) ldarg(n int) ([]method.StackEntry, error) {
	t, err := e.argType(n)
	if err != nil {
		return nil, err
	}
	return e.read(tac.Arg{Index: n}, t)
}

func (e *Encoder) ldloc(n int) ([]method.StackEntry, error) {
	t, err := e.localType(n)
	if err != nil {
		return nil, err
	}
	return e.read(tac.Local{Index: n}, t)
}

// read copies an argument or local into a fresh temporary, so later stores to the slot do not
// affect values already on the stack.
func (e *Encoder) read(slot tac.Var, t *cil.Type) ([]method.StackEntry, error) {
	e.f.Use(slot)
	size, err := e.valueSize(t)
	if err != nil {
		return nil, err
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.CategoryOf(t), Result: r, A: slot, Size: size})
	return e.push(t, r), nil
}

func (e *Encoder) starg(n int, v method.StackEntry) error {
	t, err := e.argType(n)
	if err != nil {
		return err
	}
	return e.write(tac.Arg{Index: n}, t, v)
}

func (e *Encoder) stloc(n int, v method.StackEntry) error {
	t, err := e.localType(n)
	if err != nil {
		return err
	}
	return e.write(tac.Local{Index: n}, t, v)
}

func (e *Encoder) write(slot tac.Var, t *cil.Type, v method.StackEntry) error {
	e.f.Use(slot)
	val, err := e.coerce(v, t)
	if err != nil {
		return err
	}
	size, err := e.valueSize(t)
	if err != nil {
		return err
	}
	e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.CategoryOf(t), Result: slot, A: val, Size: size})
	return nil
}

func (e *Encoder) ldarga(n int) ([]method.StackEntry, error) {
	t, err := e.argType(n)
	if err != nil {
		return nil, err
	}
	slot := tac.Arg{Index: n}
	e.f.Use(slot)
	return e.push(cil.ByRefTo(t), tac.Addr(slot, 0)), nil
}

func (e *Encoder) ldloca(n int) ([]method.StackEntry, error) {
	t, err := e.localType(n)
	if err != nil {
		return nil, err
	}
	slot := tac.Local{Index: n}
	e.f.Use(slot)
	return e.push(cil.ByRefTo(t), tac.Addr(slot, 0)), nil
}

func (e *Encoder) ldstr(s string) ([]method.StackEntry, error) {
	str, err := e.env.WellKnown(cil.KnownString)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	e.env.RequestString(s)
	return e.push(str, tac.Symbol{Name: e.env.StringLiteral(s)}), nil
}

// indirect maps the typed ldind and stind opcodes to the element type they access.
var indirect = map[code.Opcode]cil.ElementType{
	code.OpLdindI1:  cil.ElementI1,
	code.OpLdindU1:  cil.ElementU1,
	code.OpLdindI2:  cil.ElementI2,
	code.OpLdindU2:  cil.ElementU2,
	code.OpLdindI4:  cil.ElementI4,
	code.OpLdindU4:  cil.ElementU4,
	code.OpLdindI8:  cil.ElementI8,
	code.OpLdindI:   cil.ElementI,
	code.OpLdindR4:  cil.ElementR4,
	code.OpLdindR8:  cil.ElementR8,
	code.OpLdindRef: cil.ElementObject,
	code.OpStindI1:  cil.ElementI1,
	code.OpStindI2:  cil.ElementI2,
	code.OpStindI4:  cil.ElementI4,
	code.OpStindI8:  cil.ElementI8,
	code.OpStindI:   cil.ElementI,
	code.OpStindR4:  cil.ElementR4,
	code.OpStindR8:  cil.ElementR8,
	code.OpStindRef: cil.ElementObject,
}

// address checks that v can be dereferenced.
func (e *Encoder) address(v method.StackEntry) error {
	switch v.Category() {
	case cil.ByRef:
		return nil
	case cil.NativeInt:
		return e.ctx.Verify("dereference of an unmanaged pointer")
	}
	return e.ctx.Errorf(method.ErrVerification, "dereference of a value of category %v", v.Category())
}

// indirectType returns the type an ldind or stind accesses through addr. Reference accesses
// take the pointee type from a typed managed pointer.
func indirectType(op code.Opcode, addr method.StackEntry) *cil.Type {
	el := indirect[op]
	if el == cil.ElementObject && addr.Type.Elem != nil && cil.CategoryOf(addr.Type.Elem) == cil.Object {
		return addr.Type.Elem
	}
	return cil.Primitive(el)
}

func (e *Encoder) ldind(op code.Opcode, addr method.StackEntry) ([]method.StackEntry, error) {
	if err := e.address(addr); err != nil {
		return nil, err
	}
	t := indirectType(op, addr)
	size, err := e.sizeOf(t)
	if err != nil {
		return nil, err
	}
	return e.load(tac.Deref(addr.Var, 0, size), t, e.rec.IsVolatile())
}

func (e *Encoder) stind(op code.Opcode, addr, v method.StackEntry) error {
	if err := e.address(addr); err != nil {
		return err
	}
	t := indirectType(op, addr)
	size, err := e.sizeOf(t)
	if err != nil {
		return err
	}
	return e.store(tac.Deref(addr.Var, 0, size), t, v, e.rec.IsVolatile())
}

// fieldBase returns the address an instance field offset applies to.
func (e *Encoder) fieldBase(f *cil.Field, recv method.StackEntry) (tac.Var, error) {
	if f.Static {
		return nil, e.ctx.Errorf(method.ErrVerification, "instance access to static field %v", f)
	}
	switch recv.Category() {
	case cil.Object, cil.ByRef:
		return recv.Var, nil
	case cil.NativeInt:
		if err := e.ctx.Verify("field access through an unmanaged pointer"); err != nil {
			return nil, err
		}
		return recv.Var, nil
	case cil.ValueType:
		return tac.Addr(recv.Var, 0), nil
	}
	return nil, e.ctx.Errorf(method.ErrVerification, "field access on a value of category %v", recv.Category())
}

func (e *Encoder) fieldOffset(f *cil.Field) (int, error) {
	l, err := e.layout(f.DeclaringType)
	if err != nil {
		return 0, err
	}
	off, ok := l.Fields[f]
	if !ok {
		off, ok = l.StaticFields[f]
	}
	if !ok {
		return 0, e.ctx.Errorf(method.ErrResolution, "no layout for field %v", f)
	}
	return off, nil
}

// instanceField returns the memory operand of an instance field.
func (e *Encoder) instanceField(f *cil.Field, recv method.StackEntry) (tac.Var, error) {
	base, err := e.fieldBase(f, recv)
	if err != nil {
		return nil, err
	}
	off, err := e.fieldOffset(f)
	if err != nil {
		return nil, err
	}
	size, err := e.sizeOf(f.Type)
	if err != nil {
		return nil, err
	}
	return tac.Deref(base, off, size), nil
}

func (e *Encoder) ldfld(f *cil.Field, recv method.StackEntry) ([]method.StackEntry, error) {
	mem, err := e.instanceField(f, recv)
	if err != nil {
		return nil, err
	}
	return e.load(mem, f.Type, e.rec.IsVolatile())
}

func (e *Encoder) stfld(f *cil.Field, recv, v method.StackEntry) error {
	mem, err := e.instanceField(f, recv)
	if err != nil {
		return err
	}
	return e.store(mem, f.Type, v, e.rec.IsVolatile())
}

// offsetAddress returns base plus a constant offset, folding into address-of composites.
func (e *Encoder) offsetAddress(base tac.Var, off int) tac.Var {
	if v, ok := tac.Offset(base, off); ok {
		return v
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: tac.OpAdd, Cat: cil.ByRef, Result: r, A: base, B: tac.Native(int64(off))})
	return r
}

func (e *Encoder) ldflda(f *cil.Field, recv method.StackEntry) ([]method.StackEntry, error) {
	if recv.Category() == cil.ValueType {
		return nil, e.ctx.Errorf(method.ErrVerification, "ldflda on a value-type value")
	}
	base, err := e.fieldBase(f, recv)
	if err != nil {
		return nil, err
	}
	off, err := e.fieldOffset(f)
	if err != nil {
		return nil, err
	}
	return e.push(cil.ByRefTo(f.Type), e.offsetAddress(base, off)), nil
}

// staticInit marks the current block as requiring the initialization of t. Field accesses
// always require it; calls and allocations only for types not marked beforefieldinit.
func (e *Encoder) staticInit(t *cil.Type, field bool) {
	if t == e.ctx.Method.DeclaringType {
		return
	}
	cctor := t.StaticConstructor()
	if cctor == nil || !field && t.Flags&cil.TypeBeforeFieldInit != 0 {
		return
	}
	e.f.Block(e.block).StaticInit.Add(t)
	e.env.RequestMethod(cctor)
}

// staticField returns the memory operand of a static field.
func (e *Encoder) staticField(f *cil.Field) (tac.Var, error) {
	if !f.Static {
		return nil, e.ctx.Errorf(method.ErrVerification, "static access to instance field %v", f)
	}
	off, err := e.fieldOffset(f)
	if err != nil {
		return nil, err
	}
	size, err := e.sizeOf(f.Type)
	if err != nil {
		return nil, err
	}
	e.env.RequestStatics(f.DeclaringType)
	e.staticInit(f.DeclaringType, true)
	return tac.Deref(tac.Symbol{Name: e.env.StaticStorage(f.DeclaringType)}, off, size), nil
}

func (e *Encoder) ldsfld(f *cil.Field) ([]method.StackEntry, error) {
	mem, err := e.staticField(f)
	if err != nil {
		return nil, err
	}
	return e.load(mem, f.Type, e.rec.IsVolatile())
}

func (e *Encoder) stsfld(f *cil.Field, v method.StackEntry) error {
	mem, err := e.staticField(f)
	if err != nil {
		return err
	}
	return e.store(mem, f.Type, v, e.rec.IsVolatile())
}

func (e *Encoder) ldsflda(f *cil.Field) ([]method.StackEntry, error) {
	mem, err := e.staticField(f)
	if err != nil {
		return nil, err
	}
	c := mem.(tac.ContentsOf)
	addr := tac.Var(c.Of)
	if c.Offset != 0 {
		r := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpAdd, Cat: cil.ByRef, Result: r, A: c.Of, B: tac.Native(int64(c.Offset))})
		addr = r
	}
	return e.push(cil.ByRefTo(f.Type), addr), nil
}

func (e *Encoder) ldobj(t *cil.Type, addr method.StackEntry) ([]method.StackEntry, error) {
	if err := e.address(addr); err != nil {
		return nil, err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return nil, err
	}
	return e.load(tac.Deref(addr.Var, 0, size), t, e.rec.IsVolatile())
}

func (e *Encoder) stobj(t *cil.Type, addr, v method.StackEntry) error {
	if err := e.address(addr); err != nil {
		return err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return err
	}
	return e.store(tac.Deref(addr.Var, 0, size), t, v, e.rec.IsVolatile())
}

func (e *Encoder) cpobj(t *cil.Type, dst, src method.StackEntry) error {
	if err := e.address(dst); err != nil {
		return err
	}
	if err := e.address(src); err != nil {
		return err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return err
	}
	vsize, err := e.valueSize(t)
	if err != nil {
		return err
	}
	e.Emit(&tac.Instr{
		Op:     tac.OpMov,
		Cat:    cil.CategoryOf(t),
		Result: tac.Deref(dst.Var, 0, size),
		A:      tac.Deref(src.Var, 0, size),
		Size:   vsize,
	})
	return nil
}

func (e *Encoder) initobj(t *cil.Type, addr method.StackEntry) error {
	if err := e.address(addr); err != nil {
		return err
	}
	size, err := e.sizeOf(t)
	if err != nil {
		return err
	}
	e.Emit(&tac.Instr{Op: tac.OpZero, Cat: cil.ValueType, A: addr.Var, Size: size})
	return nil
}

// block3 lowers cpblk and initblk to calls to the runtime's memory helpers.
func (e *Encoder) block3(h cil.Helper, args []method.StackEntry) error {
	m, err := e.env.Helper(h)
	if err != nil {
		return e.ctx.Resolution(err)
	}
	vals, err := e.arguments(m, args)
	if err != nil {
		return err
	}
	_, err = e.helper(h, vals...)
	return err
}

func (e *Encoder) localloc(n method.StackEntry) ([]method.StackEntry, error) {
	if c := n.Category(); c != cil.Int32 && c != cil.NativeInt {
		return nil, e.ctx.Errorf(method.ErrVerification, "localloc of a size of category %v", c)
	}
	r := e.NewVar()
	e.Emit(&tac.Instr{Op: tac.OpLocalloc, Cat: cil.NativeInt, Result: r, A: e.promote(n, cil.NativeInt)})
	return e.push(cil.TypeOf(cil.NativeInt), r), nil
}
