package static

import (
	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/env"
)

// Word indices of the type-info object: the base type-info pointer, the interface-table pointer
// and the instance size, followed by the vtable slots.
const (
	TypeInfoBase = iota
	TypeInfoITable
	TypeInfoSize
	TypeInfoSlots
)

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

func (m *Module) PointerSize() int {
	return m.target.PointerSize
}

// storage returns the size and alignment of a value of type t stored in a field, array element
// or local.
func (m *Module) storage(t *cil.Type) (int, int, error) {
	ptr := m.target.PointerSize
	if t == nil {
		// The receiver of a stand-alone signature.
		return ptr, ptr, nil
	}
	if t.IsEnum() && t.Elem != nil {
		return m.storage(t.Elem)
	}
	if w := t.Element.Width(); w != 0 {
		return w, w, nil
	}
	switch t.Element {
	case cil.ElementFnPtr:
		return 2 * ptr, ptr, nil
	case cil.ElementValueType, cil.ElementTypedByRef:
		l, err := m.instanceLayout(t)
		if err != nil {
			return 0, 0, err
		}
		return l.Size, l.Align, nil
	case cil.ElementVoid:
		return 0, 1, nil
	}
	return ptr, ptr, nil
}

// ObjectLayout lays out fields in declaration order at their natural alignment. Reference types
// start with a type-info pointer and include their base class's fields first.
func (m *Module) ObjectLayout(t *cil.Type) (*env.ObjectLayout, error) {
	if t.IsGenericParameter() {
		return nil, errors.Newf("cannot lay out open generic parameter %v", t)
	}
	l, err := m.instanceLayout(t)
	if err != nil {
		return nil, err
	}
	return l, m.layoutStatics(t, l)
}

func (m *Module) instanceLayout(t *cil.Type) (*env.ObjectLayout, error) {
	ptr := m.target.PointerSize
	l := &env.ObjectLayout{Align: 1, Fields: map[*cil.Field]int{}, StaticFields: map[*cil.Field]int{}}

	if t.IsEnum() && t.Elem != nil {
		l.Size, l.Align = t.Elem.Element.Width(), t.Elem.Element.Width()
		return l, nil
	}

	if t.IsValueType() && t.Element != cil.ElementValueType && t.Element != cil.ElementTypedByRef {
		size, a, err := m.storage(t)
		if err != nil {
			return nil, err
		}
		l.Size, l.Align = size, a
		for _, f := range t.Fields {
			if !f.Static {
				l.Fields[f] = 0
			}
		}
		return l, nil
	}

	if t.IsArray() {
		elemSize, elemAlign, err := m.storage(t.Elem)
		if err != nil {
			return nil, err
		}
		l.Size, l.Align = ptr+4, ptr
		l.LengthOffset, l.DataOffset = ptr, align(ptr+4, max(elemAlign, ptr))
		l.ElementSize = elemSize
		return l, nil
	}

	offset := 0
	if t.IsReferenceType() {
		l.Align = ptr
		offset = ptr
		if t.Base != nil && !t.IsValueType() {
			base, err := m.instanceLayout(t.Base)
			if err != nil {
				return nil, err
			}
			for f, o := range base.Fields {
				l.Fields[f] = o
			}
			offset = base.Size
		}
	}

	for _, f := range t.Fields {
		if f.Static {
			continue
		}
		size, a, err := m.storage(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "laying out %v", f)
		}
		offset = align(offset, a)
		l.Fields[f] = offset
		offset += size
		l.Align = max(l.Align, a)
	}
	if offset == 0 && t.IsValueType() {
		offset = 1
	}
	l.Size = align(offset, l.Align)

	if t.Element == cil.ElementString {
		length, data := t.FindField("_length"), t.FindField("_firstChar")
		if length == nil || data == nil {
			return nil, errors.Newf("string type %v lacks its length and data fields", t)
		}
		l.LengthOffset, l.DataOffset, l.ElementSize = l.Fields[length], l.Fields[data], 2
	}
	return l, nil
}

func (m *Module) layoutStatics(t *cil.Type, l *env.ObjectLayout) error {
	offset, a := 0, 1
	for _, f := range t.Fields {
		if !f.Static {
			continue
		}
		size, fa, err := m.storage(f.Type)
		if err != nil {
			return errors.Wrapf(err, "laying out %v", f)
		}
		offset = align(offset, fa)
		l.StaticFields[f] = offset
		offset += size
		a = max(a, fa)
	}
	l.StaticSize = align(offset, a)
	return nil
}

// chain returns t and its base classes, most-derived last.
func chain(t *cil.Type) []*cil.Type {
	var types []*cil.Type
	for c := t; c != nil; c = c.Base {
		types = append([]*cil.Type{c}, types...)
	}
	return types
}

// VTable returns the virtual slots of t, keyed by the method that introduced each slot, and the
// most-derived implementation occupying each slot.
func (m *Module) VTable(t *cil.Type) (map[*cil.Method]int, []*cil.Method) {
	ptr := m.target.PointerSize
	slots := map[*cil.Method]int{}
	var impls []*cil.Method
	for _, c := range chain(t) {
		for _, meth := range c.Methods {
			if !meth.IsVirtual() || meth.IsStatic() {
				continue
			}
			root := meth.Root()
			if offset, ok := slots[root]; ok {
				impls[offset/ptr-TypeInfoSlots] = meth
				continue
			}
			slots[root] = (TypeInfoSlots + len(impls)) * ptr
			impls = append(impls, meth)
		}
	}
	return slots, impls
}

// Interfaces returns every interface t implements, including those inherited from its bases and
// from other interfaces, in first-seen order.
func Interfaces(t *cil.Type) []*cil.Type {
	var out []*cil.Type
	seen := map[*cil.Type]bool{}
	var visit func(i *cil.Type)
	visit = func(i *cil.Type) {
		if seen[i] {
			return
		}
		seen[i] = true
		out = append(out, i)
		for _, j := range i.Interfaces {
			visit(j)
		}
	}
	for _, c := range chain(t) {
		for _, i := range c.Interfaces {
			visit(i)
		}
	}
	return out
}

// TypeInfoLayout lays out the type-info object of t.
func (m *Module) TypeInfoLayout(t *cil.Type) (*env.TypeInfoLayout, error) {
	if t.IsGenericParameter() {
		return nil, errors.Newf("cannot lay out open generic parameter %v", t)
	}

	ptr := m.target.PointerSize
	l := &env.TypeInfoLayout{
		Label:          m.TypeInfo(t),
		ITableOffset:   TypeInfoITable * ptr,
		InterfaceSlots: map[*cil.Method]int{},
	}
	if t.IsInterface() {
		l.Slots = map[*cil.Method]int{}
		for i, meth := range t.Methods {
			if !meth.IsStatic() {
				l.InterfaceSlots[meth] = i
			}
		}
		l.Size = TypeInfoSlots * ptr
		return l, nil
	}

	slots, impls := m.VTable(t)
	l.Slots = slots
	l.Size = (TypeInfoSlots + len(impls)) * ptr
	return l, nil
}
