package encode

import (
	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/intrinsic"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// coerceArgs converts call arguments to the parameter types of sig. A nil owner leaves the
// implicit this argument unconverted.
func (e *Encoder) coerceArgs(sig *cil.Signature, owner *cil.Type, args []method.StackEntry) ([]tac.Var, error) {
	vals := make([]tac.Var, len(args))
	for i, a := range args {
		t := sig.ArgType(i, owner)
		if t == nil {
			vals[i] = a.Var
			continue
		}
		v, err := e.coerce(a, t)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (e *Encoder) arguments(m *cil.Method, args []method.StackEntry) ([]tac.Var, error) {
	return e.coerceArgs(m.Sig, m.DeclaringType, args)
}

// callNode builds a call through target. The node is not emitted.
func (e *Encoder) callNode(op tac.Op, target tac.Var, m *cil.Method, sig *cil.Signature, args []tac.Var) (*tac.Call, error) {
	conv, err := e.env.Build(m, sig, op)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	c := &tac.Call{Op: op, Cat: cil.Void, Target: target, Args: args, Conv: conv}
	if sig.ReturnsValue() {
		c.Cat, c.Result = cil.CategoryOf(sig.Return), e.NewVar()
		if c.Size, err = e.valueSize(sig.Return); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// noReturn reports whether a helper never returns normally.
func noReturn(h cil.Helper) bool {
	switch h {
	case cil.HelperThrowInvalidCast, cil.HelperThrowMissingMethod, cil.HelperThrowNullReference,
		cil.HelperThrowIndexOutOfRange, cil.HelperThrowOverflow, cil.HelperThrow, cil.HelperRethrow:
		return true
	}
	return false
}

// helper emits a direct call to a runtime helper and returns its result, if any.
func (e *Encoder) helper(h cil.Helper, args ...tac.Var) (tac.Var, error) {
	m, err := e.env.Helper(h)
	if err != nil {
		return nil, e.ctx.Resolution(err)
	}
	c, err := e.callNode(tac.OpCall, tac.Symbol{Name: e.env.Mangler.Method(m)}, m, m.Sig, args)
	if err != nil {
		return nil, err
	}
	c.NoReturn = noReturn(h)
	e.Emit(c)
	return c.Result, nil
}

func (e *Encoder) callHelper(rec *method.Record, args []method.StackEntry) ([]method.StackEntry, error) {
	vals, err := e.arguments(rec.Method, args)
	if err != nil {
		return nil, err
	}
	r, err := e.helper(rec.Helper, vals...)
	if err != nil || !rec.Method.Sig.ReturnsValue() {
		return nil, err
	}
	return e.push(rec.Method.Sig.Return, r), nil
}

// devirtualized reports whether a callvirt to m always reaches m itself.
func devirtualized(m *cil.Method) bool {
	if m.DeclaringType.IsInterface() {
		return false
	}
	return !m.IsVirtual() || m.IsFinal() || m.DeclaringType.IsSealed()
}

func (e *Encoder) call(rec *method.Record, args []method.StackEntry) ([]method.StackEntry, error) {
	m, virtual := rec.Method, rec.Opcode == code.OpCallvirt
	tail := rec.Prefix&code.PrefixTail != 0

	if rec.Prefix&code.PrefixConstrained != 0 {
		impl := rec.ConstrainedType.Implementation(m)
		if impl == nil {
			return nil, e.ctx.Unsupported("constrained call to %v on %v", m, rec.ConstrainedType)
		}
		m, virtual = impl, false
	}
	if virtual && m.IsStatic() {
		return nil, e.ctx.Errorf(method.ErrVerification, "callvirt to static method %v", m)
	}

	vals, err := e.arguments(m, args)
	if err != nil {
		return nil, err
	}

	var result tac.Var
	switch {
	case !virtual:
		result, err = e.invoke(m, vals, tail)
	case devirtualized(m):
		e.nullCheck(args[0])
		result, err = e.invoke(m, vals, tail)
	default:
		result, err = e.dispatch(m, vals, tail)
	}
	if err != nil || !m.Sig.ReturnsValue() {
		return nil, err
	}
	return e.push(m.Sig.Return, result), nil
}

// nullCheck guards a devirtualized call on a receiver that may be null.
func (e *Encoder) nullCheck(recv method.StackEntry) {
	if recv.Category() != cil.Object {
		return
	}
	if _, ok := recv.Var.(tac.Symbol); ok {
		return
	}
	e.Emit(&tac.Instr{Op: tac.OpCheckNull, Cat: cil.Object, A: recv.Var})
}

// invoke emits a call to a known method, substituting an intrinsic fragment if the gate has one.
func (e *Encoder) invoke(m *cil.Method, args []tac.Var, tail bool) (tac.Var, error) {
	handled, result, err := e.gate.Substitute(e, m, args)
	switch {
	case errors.Is(err, intrinsic.ErrNoIntrinsic):
		return nil, e.ctx.Unsupported("%v", err)
	case err != nil:
		return nil, e.ctx.Resolution(err)
	case handled:
		if m.Sig.ReturnsValue() && result == nil {
			return nil, e.ctx.Errorf(method.ErrResolution, "intrinsic for %v produced no value", m)
		}
		return result, nil
	}
	return e.direct(m, args, tail)
}

func (e *Encoder) direct(m *cil.Method, args []tac.Var, tail bool) (tac.Var, error) {
	if m.IsAbstract() {
		return nil, e.ctx.Errorf(method.ErrVerification, "direct call to abstract method %v", m)
	}
	if m.IsStatic() {
		e.staticInit(m.DeclaringType, false)
	}
	if !m.IsInternalCall() {
		e.env.RequestMethod(m)
	}

	c, err := e.callNode(tac.OpCall, tac.Symbol{Name: e.env.Mangler.Method(m)}, m, m.Sig, args)
	if err != nil {
		return nil, err
	}
	c.Tail = tail
	e.Emit(c)
	return c.Result, nil
}

// dispatch emits a virtual or interface call to m.
func (e *Encoder) dispatch(m *cil.Method, args []tac.Var, tail bool) (tac.Var, error) {
	fn, adj, err := e.lookup(m, args[0])
	if err != nil {
		return nil, err
	}

	args = append([]tac.Var(nil), args...)
	if !zeroAdjustment(adj) {
		this := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpAdd, Cat: cil.Object, Result: this, A: args[0], B: adj})
		args[0] = this
	}

	c, err := e.callNode(tac.OpCallIndirect, fn, m, m.Sig, args)
	if err != nil {
		return nil, err
	}
	c.Symbol, c.Tail = e.env.Mangler.Method(m), tail
	e.Emit(c)

	if !m.IsAbstract() && !m.IsInternalCall() {
		e.env.RequestMethod(m)
	}
	return c.Result, nil
}

// lookup emits the code that finds the implementation of m for the receiver this. It returns the
// code address and the adjustment to apply to the receiver.
func (e *Encoder) lookup(m *cil.Method, this tac.Var) (fn, adj tac.Var, err error) {
	if m.DeclaringType.IsInterface() {
		return e.interfaceLookup(m, this)
	}

	ti, err := e.typeInfo(m.DeclaringType)
	if err != nil {
		return nil, nil, err
	}
	slot, ok := ti.Slots[m.Root()]
	if !ok {
		return nil, nil, e.ctx.Errorf(method.ErrResolution, "%v has no vtable slot", m)
	}

	ptr := e.ptr()
	vt, f := e.NewVar(), e.NewVar()
	e.Emit(
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: vt, A: tac.Deref(this, 0, ptr)},
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: f, A: tac.Deref(vt, slot, ptr)},
	)
	return f, tac.Native(0), nil
}

// interfaceLookup scans the receiver's interface table for the record of m's interface. Each
// table entry points to a record holding the interface's type-info address, the receiver
// adjustment, and the implementations of the interface's methods in declaration order. A null
// entry ends the table.
func (e *Encoder) interfaceLookup(m *cil.Method, this tac.Var) (fn, adj tac.Var, err error) {
	iface := m.DeclaringType
	ti, err := e.typeInfo(iface)
	if err != nil {
		return nil, nil, err
	}
	index, ok := ti.InterfaceSlots[m]
	if !ok {
		return nil, nil, e.ctx.Errorf(method.ErrResolution, "%v has no interface slot", m)
	}
	e.env.RequestTypeInfo(iface)

	ptr := e.ptr()
	vt, table := e.NewVar(), e.NewVar()
	loop, check, next, missing, found := e.newBlock(), e.newBlock(), e.newBlock(), e.newBlock(), e.newBlock()
	e.Emit(
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: vt, A: tac.Deref(this, 0, ptr)},
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: table, A: tac.Deref(vt, ti.ITableOffset, ptr)},
		&tac.Branch{Op: tac.OpBr, Target: loop},
	)

	entry := &tac.Phi{Result: e.NewVar(), Cat: cil.NativeInt}
	entry.AddEdge(e.block, table)
	e.startBlock(loop)
	rec := e.NewVar()
	e.Emit(
		entry,
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: rec, A: tac.Deref(entry.Result, 0, ptr)},
		&tac.Branch{Op: tac.OpBrFalse, Cat: cil.NativeInt, A: rec, Target: missing},
	)

	e.startBlock(check)
	e.Emit(&tac.Branch{
		Op:     tac.OpCeq,
		Cat:    cil.NativeInt,
		A:      tac.Deref(rec, 0, ptr),
		B:      tac.Symbol{Name: ti.Label},
		Target: found,
	})

	e.startBlock(next)
	advanced := e.NewVar()
	e.Emit(
		&tac.Instr{Op: tac.OpAdd, Cat: cil.NativeInt, Result: advanced, A: entry.Result, B: tac.Native(int64(ptr))},
		&tac.Branch{Op: tac.OpBr, Target: loop},
	)
	entry.AddEdge(next, advanced)

	e.startBlock(missing)
	if _, err := e.helper(cil.HelperThrowMissingMethod); err != nil {
		return nil, nil, err
	}

	e.startBlock(found)
	f, a := e.NewVar(), e.NewVar()
	e.Emit(
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: f, A: tac.Deref(rec, (2+index)*ptr, ptr)},
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: a, A: tac.Deref(rec, ptr, ptr)},
	)
	return f, a, nil
}

func (e *Encoder) calli(sig *cil.Signature, args []method.StackEntry) ([]method.StackEntry, error) {
	fnptr := args[len(args)-1]
	vals, err := e.coerceArgs(sig, nil, args[:len(args)-1])
	if err != nil {
		return nil, err
	}

	var fn tac.Var
	switch fnptr.Category() {
	case cil.ValueType:
		ptr := e.ptr()
		pair := tac.Addr(fnptr.Var, 0)
		fn = e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: fn, A: tac.Deref(pair, 0, ptr)})
		if sig.HasThis && !sig.ExplicitThis {
			adj, this := e.NewVar(), e.NewVar()
			e.Emit(
				&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: adj, A: tac.Deref(pair, ptr, ptr)},
				&tac.Instr{Op: tac.OpAdd, Cat: cil.Object, Result: this, A: vals[0], B: adj},
			)
			vals[0] = this
		}
	case cil.NativeInt:
		fn = fnptr.Var
	default:
		return nil, e.ctx.Errorf(method.ErrVerification, "calli through a value of category %v", fnptr.Category())
	}

	c, err := e.callNode(tac.OpCallIndirect, fn, nil, sig, vals)
	if err != nil {
		return nil, err
	}
	c.Tail = e.rec.Prefix&code.PrefixTail != 0
	e.Emit(c)
	if !sig.ReturnsValue() {
		return nil, nil
	}
	return e.push(sig.Return, c.Result), nil
}

type fnptrSource struct {
	method *cil.Method
	adj    tac.Var
}

// zeroAdjustment reports whether a receiver adjustment is statically known to be zero.
func zeroAdjustment(adj tac.Var) bool {
	c, ok := adj.(tac.Const)
	return ok && c.IsZero()
}

// fnptr builds a function-pointer pair holding a code address and a receiver adjustment.
func (e *Encoder) fnptr(m *cil.Method, fn, adj tac.Var) []method.StackEntry {
	ptr := e.ptr()
	pair := e.NewVar()
	e.Emit(
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: tac.Deref(tac.Addr(pair, 0), 0, ptr), A: fn},
		&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: tac.Deref(tac.Addr(pair, 0), ptr, ptr), A: adj},
	)
	e.fnptrs[pair] = fnptrSource{method: m, adj: adj}
	return e.push(cil.FnPtrOf(m.Sig), pair)
}

func (e *Encoder) ldftn(m *cil.Method) ([]method.StackEntry, error) {
	if m.IsAbstract() {
		return nil, e.ctx.Errorf(method.ErrVerification, "ldftn of abstract method %v", m)
	}
	if !m.IsInternalCall() {
		e.env.RequestMethod(m)
	}
	return e.fnptr(m, tac.Symbol{Name: e.env.Mangler.Method(m)}, tac.Native(0)), nil
}

func (e *Encoder) ldvirtftn(m *cil.Method, obj method.StackEntry) ([]method.StackEntry, error) {
	if obj.Category() != cil.Object {
		return nil, e.ctx.Errorf(method.ErrVerification, "ldvirtftn on a value of category %v", obj.Category())
	}
	if devirtualized(m) {
		e.nullCheck(obj)
		return e.ldftn(m)
	}
	fn, adj, err := e.lookup(m, obj.Var)
	if err != nil {
		return nil, err
	}
	if !m.IsAbstract() && !m.IsInternalCall() {
		e.env.RequestMethod(m)
	}
	return e.fnptr(m, fn, adj), nil
}

func (e *Encoder) newobj(ctor *cil.Method, args []method.StackEntry) ([]method.StackEntry, error) {
	t := ctor.DeclaringType
	switch {
	case !ctor.IsConstructor():
		return nil, e.ctx.Errorf(method.ErrVerification, "newobj of non-constructor %v", ctor)
	case t.Element == cil.ElementString:
		return nil, e.ctx.Unsupported("string construction through %v", ctor)
	case t.IsArray():
		return nil, e.ctx.Unsupported("multi-dimensional array construction")
	case t.Flags&cil.TypeAbstract != 0:
		return nil, e.ctx.Errorf(method.ErrVerification, "newobj of abstract type %v", t)
	}

	if t.IsValueType() {
		size, err := e.sizeOf(t)
		if err != nil {
			return nil, err
		}
		v := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpZero, Cat: cil.ValueType, A: tac.Addr(v, 0), Size: size})
		this := method.StackEntry{Type: cil.ByRefTo(t), Var: tac.Addr(v, 0)}
		if err := e.construct(ctor, this, args); err != nil {
			return nil, err
		}
		return e.push(t, v), nil
	}

	if t.IsDelegate() && len(args) == 2 && args[1].Category() == cil.ValueType {
		pair, ptr := args[1].Var, e.ptr()
		src, known := e.fnptrs[pair]
		if known {
			e.env.RequestDelegateTarget(src.method)
		}
		fn := e.NewVar()
		e.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: fn, A: tac.Deref(tac.Addr(pair, 0), 0, ptr)})

		// The delegate stores a plain code address, so the receiver adjustment is applied to the
		// target object here.
		target := args[0]
		if target.Category() == cil.Object && !(known && zeroAdjustment(src.adj)) {
			adj, this := e.NewVar(), e.NewVar()
			e.Emit(
				&tac.Instr{Op: tac.OpMov, Cat: cil.NativeInt, Result: adj, A: tac.Deref(tac.Addr(pair, 0), ptr, ptr)},
				&tac.Instr{Op: tac.OpAdd, Cat: cil.Object, Result: this, A: target.Var, B: adj},
			)
			target = method.StackEntry{Type: target.Type, Var: this}
		}
		args = []method.StackEntry{target, {Type: cil.Primitive(cil.ElementI), Var: fn}}
	}

	e.staticInit(t, false)
	e.env.RequestTypeInfo(t)
	obj, err := e.helper(cil.HelperAllocObject, tac.Symbol{Name: e.env.TypeInfo(t)})
	if err != nil {
		return nil, err
	}
	if err := e.construct(ctor, method.StackEntry{Type: t, Var: obj}, args); err != nil {
		return nil, err
	}
	return e.push(t, obj), nil
}

// construct calls a constructor on a new instance.
func (e *Encoder) construct(ctor *cil.Method, this method.StackEntry, args []method.StackEntry) error {
	all := append([]method.StackEntry{this}, args...)
	vals, err := e.arguments(ctor, all)
	if err != nil {
		return err
	}
	_, err = e.invoke(ctor, vals, false)
	return err
}
