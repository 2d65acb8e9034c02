package cil

import "strings"

// CallingConvention is the calling-convention byte of a method signature.
type CallingConvention byte

const (
	CallDefault  CallingConvention = 0x00
	CallC        CallingConvention = 0x01
	CallStdCall  CallingConvention = 0x02
	CallThisCall CallingConvention = 0x03
	CallFastCall CallingConvention = 0x04
	CallVarArg   CallingConvention = 0x05
)

// A Signature is the parameter/return shape of a method or a stand-alone call site.
type Signature struct {
	HasThis      bool
	ExplicitThis bool
	Convention   CallingConvention
	Params       []*Type
	Return       *Type
}

// ArgCount returns the number of stack arguments a call with this signature consumes, including
// the implicit this argument.
func (s *Signature) ArgCount() int {
	n := len(s.Params)
	if s.HasThis && !s.ExplicitThis {
		n++
	}
	return n
}

// ReturnsValue returns true if calls with this signature push a result.
func (s *Signature) ReturnsValue() bool {
	return s.Return != nil && s.Return.Element != ElementVoid
}

// ArgType returns the type of stack argument i. The implicit this argument of an instance
// method on owner has type owner (or a byref to owner for value types).
func (s *Signature) ArgType(i int, owner *Type) *Type {
	if s.HasThis && !s.ExplicitThis {
		if i == 0 {
			if owner != nil && owner.IsValueType() {
				return ByRefTo(owner)
			}
			return owner
		}
		i--
	}
	return s.Params[i]
}

// Equal returns true if the two signatures have the same shape.
func (s *Signature) Equal(o *Signature) bool {
	switch {
	case s == o:
		return true
	case s == nil || o == nil:
		return false
	case s.HasThis != o.HasThis || len(s.Params) != len(o.Params) || !SameType(s.Return, o.Return):
		return false
	}
	for i, p := range s.Params {
		if !SameType(p, o.Params[i]) {
			return false
		}
	}
	return true
}

// ParamString formats the parameter list, e.g. "(int32,char[])".
func (s *Signature) ParamString() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.FullName())
	}
	b.WriteByte(')')
	return b.String()
}

func (s *Signature) String() string {
	ret := "void"
	if s.Return != nil {
		ret = s.Return.FullName()
	}
	return ret + s.ParamString()
}

// SameType returns true if a and b denote the same type. Constructed types compare
// structurally; definitions compare by identity.
func SameType(a, b *Type) bool {
	switch {
	case a == b:
		return true
	case a == nil || b == nil:
		return false
	case a.Element != b.Element:
		return false
	}
	switch a.Element {
	case ElementSZArray, ElementPtr, ElementByRef:
		return SameType(a.Elem, b.Elem)
	case ElementArray:
		return a.Rank == b.Rank && SameType(a.Elem, b.Elem)
	case ElementVar, ElementMVar:
		return a.GenericIndex == b.GenericIndex
	case ElementFnPtr:
		return a.FnSig.Equal(b.FnSig)
	}
	if a.Element.IsPrimitive() || a.Element == ElementString || a.Element == ElementObject {
		return true
	}
	return false
}

// ByRefTo returns the managed pointer type to t.
func ByRefTo(t *Type) *Type {
	return &Type{Element: ElementByRef, Elem: t}
}

// PointerTo returns the unmanaged pointer type to t.
func PointerTo(t *Type) *Type {
	return &Type{Element: ElementPtr, Elem: t}
}

// ArrayOf returns the single-dimensional zero-based array type of t.
func ArrayOf(t *Type) *Type {
	return &Type{Element: ElementSZArray, Elem: t, Rank: 1}
}

// FnPtrOf returns the function-pointer type for sig.
func FnPtrOf(sig *Signature) *Type {
	return &Type{Element: ElementFnPtr, FnSig: sig}
}
