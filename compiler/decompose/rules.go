package decompose

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
)

// constrainedCall rewrites a constrained. callvirt into a call on a dereferenced or boxed
// receiver. Calls on value types that implement the method directly are left alone; the encoder
// calls the implementation directly.
func (d *decomposer) constrainedCall() ([]*method.Record, error) {
	t, m := d.rec.ConstrainedType, d.rec.Method
	depth := m.Sig.ArgCount() - 1
	if depth < 0 || depth >= d.rec.Stack.Depth() {
		return nil, d.ctx.Errorf(method.ErrVerification, "constrained call to %v without a receiver", m)
	}

	receiver := d.rec.Stack.Peek(depth).Type
	if receiver.Element != cil.ElementByRef || !cil.SameType(receiver.Elem, t) {
		if err := d.ctx.Verify("constrained. %v: receiver has type %v, expected %v&", t, receiver, t); err != nil {
			return nil, err
		}
	}

	call := d.clone(code.PrefixConstrained)
	switch {
	case t.IsReferenceType() || t.IsInterface():
		seq := atDepth(depth, record(code.Op(code.OpLdindRef)))
		return append(seq, call), nil
	case t.IsValueType() && t.Implementation(m) != nil:
		return nil, nil
	default:
		seq := atDepth(depth, typed(code.OpLdobj, t), typed(code.OpBox, t))
		return append(seq, call), nil
	}
}

// objectMethodCall casts an interface receiver to System.Object before a call to a method that
// System.Object declares.
func (d *decomposer) objectMethodCall() ([]*method.Record, error) {
	m := d.rec.Method
	if m.IsStatic() || !m.Sig.HasThis || !d.isObject(m.DeclaringType) {
		return nil, nil
	}

	depth := m.Sig.ArgCount() - 1
	if depth >= d.rec.Stack.Depth() {
		return nil, nil
	}
	receiver := d.rec.Stack.Peek(depth).Type
	if receiver == nil || !receiver.IsInterface() {
		return nil, nil
	}

	object, err := d.wellKnown(cil.KnownObject)
	if err != nil {
		return nil, err
	}
	seq := atDepth(depth, typed(code.OpCastclass, object))
	return append(seq, d.clone(0)), nil
}

// box allocates a boxed wrapper and stores the value into its field. Boxing a reference type is
// a no-op.
func (d *decomposer) box() ([]*method.Record, error) {
	t := d.rec.Type
	if !t.IsValueType() {
		return []*method.Record{}, nil
	}

	boxed, err := d.env.Boxed(t)
	if err != nil {
		return nil, d.ctx.Resolution(err)
	}
	var value *cil.Field
	for _, f := range boxed.Fields {
		if !f.Static {
			value = f
			break
		}
	}
	if value == nil {
		return nil, d.ctx.Errorf(method.ErrResolution, "boxed type %v has no value field", boxed)
	}

	store := record(code.Op(code.OpStfld))
	store.Field = value
	return []*method.Record{
		typed(code.OpPseudoAlloc, boxed),
		record(code.Dup()),
		record(code.Rotate(2)),
		store,
	}, nil
}

// ldtoken loads the runtime info of a type, method or field and wraps it in the matching handle.
func (d *decomposer) ldtoken() ([]*method.Record, error) {
	var info *method.Record
	var handle cil.WellKnown
	switch {
	case d.rec.Method != nil:
		info = record(code.Op(code.OpPseudoMethodInfo))
		info.Method, handle = d.rec.Method, cil.KnownRuntimeMethodHandle
	case d.rec.Field != nil:
		info = record(code.Op(code.OpPseudoFieldInfo))
		info.Field, handle = d.rec.Field, cil.KnownRuntimeFieldHandle
	default:
		info = typed(code.OpPseudoTypeInfo, d.rec.Type)
		handle = cil.KnownRuntimeTypeHandle
	}

	t, err := d.wellKnown(handle)
	if err != nil {
		return nil, err
	}
	return []*method.Record{info, typed(code.OpPseudoMakeHandle, t)}, nil
}

// assignable returns true if the value on top of the stack is statically known to be an
// instance of t.
func (d *decomposer) assignable(t *cil.Type) bool {
	if d.rec.Stack.Depth() == 0 {
		return false
	}
	top := d.rec.Stack.Peek(0).Type
	return top != nil && (top.IsAssignableTo(t) || d.isObject(t) && top.IsInterface())
}

func (d *decomposer) castclass() ([]*method.Record, error) {
	if d.assignable(d.rec.Type) {
		return []*method.Record{typed(code.OpPseudoRetype, d.rec.Type)}, nil
	}
	return []*method.Record{
		record(code.Dup()),
		typed(code.OpPseudoTypeTest, d.rec.Type),
		typed(code.OpPseudoCastCheck, d.rec.Type),
	}, nil
}

func (d *decomposer) isinst() ([]*method.Record, error) {
	if d.assignable(d.rec.Type) {
		return []*method.Record{typed(code.OpPseudoRetype, d.rec.Type)}, nil
	}
	return []*method.Record{typed(code.OpPseudoTypeTest, d.rec.Type)}, nil
}

func (d *decomposer) unboxAny() ([]*method.Record, error) {
	t := d.rec.Type
	if t.IsValueType() {
		return []*method.Record{typed(code.OpUnbox, t), typed(code.OpLdobj, t)}, nil
	}
	return []*method.Record{typed(code.OpCastclass, t)}, nil
}

// elementTag returns the element type that selects the fixed-width array access for t, or
// ElementValueType if the access must go through the element's address.
func elementTag(t *cil.Type) cil.ElementType {
	if t.IsEnum() && t.Elem != nil {
		return elementTag(t.Elem)
	}
	switch {
	case t.Element.IsPrimitive():
		return t.Element
	case t.IsReferenceType():
		return cil.ElementClass
	case t.Element == cil.ElementPtr:
		return cil.ElementI
	}
	return cil.ElementValueType
}

var ldelemOps = map[cil.ElementType]code.Opcode{
	cil.ElementBoolean: code.OpLdelemU1,
	cil.ElementI1:      code.OpLdelemI1,
	cil.ElementU1:      code.OpLdelemU1,
	cil.ElementChar:    code.OpLdelemU2,
	cil.ElementI2:      code.OpLdelemI2,
	cil.ElementU2:      code.OpLdelemU2,
	cil.ElementI4:      code.OpLdelemI4,
	cil.ElementU4:      code.OpLdelemU4,
	cil.ElementI8:      code.OpLdelemI8,
	cil.ElementU8:      code.OpLdelemI8,
	cil.ElementI:       code.OpLdelemI,
	cil.ElementU:       code.OpLdelemI,
	cil.ElementR4:      code.OpLdelemR4,
	cil.ElementR8:      code.OpLdelemR8,
	cil.ElementClass:   code.OpLdelemRef,
}

var stelemOps = map[cil.ElementType]code.Opcode{
	cil.ElementBoolean: code.OpStelemI1,
	cil.ElementI1:      code.OpStelemI1,
	cil.ElementU1:      code.OpStelemI1,
	cil.ElementChar:    code.OpStelemI2,
	cil.ElementI2:      code.OpStelemI2,
	cil.ElementU2:      code.OpStelemI2,
	cil.ElementI4:      code.OpStelemI4,
	cil.ElementU4:      code.OpStelemI4,
	cil.ElementI8:      code.OpStelemI8,
	cil.ElementU8:      code.OpStelemI8,
	cil.ElementI:       code.OpStelemI,
	cil.ElementU:       code.OpStelemI,
	cil.ElementR4:      code.OpStelemR4,
	cil.ElementR8:      code.OpStelemR8,
	cil.ElementClass:   code.OpStelemRef,
}

func (d *decomposer) ldelem() ([]*method.Record, error) {
	if op, ok := ldelemOps[elementTag(d.rec.Type)]; ok {
		return []*method.Record{record(code.Op(op))}, nil
	}
	return []*method.Record{typed(code.OpLdelema, d.rec.Type), typed(code.OpLdobj, d.rec.Type)}, nil
}

func (d *decomposer) stelem() ([]*method.Record, error) {
	if op, ok := stelemOps[elementTag(d.rec.Type)]; ok {
		return []*method.Record{record(code.Op(op))}, nil
	}
	// array index value -> value array index -> value &elem -> &elem value
	return []*method.Record{
		record(code.Rotate(2)),
		record(code.Rotate(2)),
		typed(code.OpLdelema, d.rec.Type),
		record(code.Rotate(1)),
		typed(code.OpStobj, d.rec.Type),
	}, nil
}

func (d *decomposer) sizeof() ([]*method.Record, error) {
	size := d.env.PointerSize()
	if d.rec.Type.IsValueType() {
		layout, err := d.env.ObjectLayout(d.rec.Type)
		if err != nil {
			return nil, d.ctx.Resolution(err)
		}
		size = layout.Size
	}
	return []*method.Record{record(code.LdcI4(int32(size)))}, nil
}
