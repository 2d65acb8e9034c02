package cil

import (
	"fmt"
	"strings"
)

// ElementType is the base-type tag of a type, as used in metadata signatures.
type ElementType byte

const (
	ElementEnd         ElementType = 0x00
	ElementVoid        ElementType = 0x01
	ElementBoolean     ElementType = 0x02
	ElementChar        ElementType = 0x03
	ElementI1          ElementType = 0x04
	ElementU1          ElementType = 0x05
	ElementI2          ElementType = 0x06
	ElementU2          ElementType = 0x07
	ElementI4          ElementType = 0x08
	ElementU4          ElementType = 0x09
	ElementI8          ElementType = 0x0a
	ElementU8          ElementType = 0x0b
	ElementR4          ElementType = 0x0c
	ElementR8          ElementType = 0x0d
	ElementString      ElementType = 0x0e
	ElementPtr         ElementType = 0x0f
	ElementByRef       ElementType = 0x10
	ElementValueType   ElementType = 0x11
	ElementClass       ElementType = 0x12
	ElementVar         ElementType = 0x13
	ElementArray       ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI           ElementType = 0x18
	ElementU           ElementType = 0x19
	ElementFnPtr       ElementType = 0x1b
	ElementObject      ElementType = 0x1c
	ElementSZArray     ElementType = 0x1d
	ElementMVar        ElementType = 0x1e
)

var elementNames = map[ElementType]string{
	ElementVoid:       "void",
	ElementBoolean:    "bool",
	ElementChar:       "char",
	ElementI1:         "int8",
	ElementU1:         "uint8",
	ElementI2:         "int16",
	ElementU2:         "uint16",
	ElementI4:         "int32",
	ElementU4:         "uint32",
	ElementI8:         "int64",
	ElementU8:         "uint64",
	ElementR4:         "float32",
	ElementR8:         "float64",
	ElementString:     "string",
	ElementTypedByRef: "typedref",
	ElementI:          "native int",
	ElementU:          "native uint",
	ElementObject:     "object",
}

func (e ElementType) String() string {
	if n, ok := elementNames[e]; ok {
		return n
	}
	return fmt.Sprintf("element(0x%02x)", byte(e))
}

// IsPrimitive returns true if the element type denotes a built-in scalar.
func (e ElementType) IsPrimitive() bool {
	switch e {
	case ElementBoolean, ElementChar, ElementI1, ElementU1, ElementI2, ElementU2, ElementI4, ElementU4,
		ElementI8, ElementU8, ElementR4, ElementR8, ElementI, ElementU:
		return true
	}
	return false
}

// IsUnsigned returns true for the unsigned integer element types (including bool and char).
func (e ElementType) IsUnsigned() bool {
	switch e {
	case ElementBoolean, ElementChar, ElementU1, ElementU2, ElementU4, ElementU8, ElementU:
		return true
	}
	return false
}

// TypeFlags records the attributes of a type definition that matter for lowering.
type TypeFlags uint32

const (
	TypeInterface TypeFlags = 1 << iota
	TypeSealed
	TypeAbstract
	TypeBeforeFieldInit
	TypeDelegate
	TypeEnum
)

// A Type describes a type definition, a constructed type (array, pointer, byref), or a generic
// parameter.
type Type struct {
	Namespace string
	Name      string
	Element   ElementType
	Flags     TypeFlags

	// Base is the base class, if any. Value types derive from System.ValueType.
	Base       *Type
	Interfaces []*Type

	Fields  []*Field
	Methods []*Method

	// Elem is the element type of arrays, pointers and byrefs, or the underlying type of an enum.
	Elem *Type
	// Rank is the array rank for ElementArray.
	Rank int
	// GenericIndex is the parameter index for ElementVar and ElementMVar.
	GenericIndex int
	// FnSig is the signature of an ElementFnPtr type.
	FnSig *Signature
}

func (t *Type) IsInterface() bool { return t.Flags&TypeInterface != 0 }
func (t *Type) IsSealed() bool { return t.Flags&TypeSealed != 0 }
func (t *Type) IsDelegate() bool { return t.Flags&TypeDelegate != 0 }
func (t *Type) IsEnum() bool { return t.Flags&TypeEnum != 0 }

// IsValueType returns true if instances of the type are stored inline rather than by reference.
func (t *Type) IsValueType() bool {
	switch t.Element {
	case ElementValueType, ElementTypedByRef, ElementFnPtr:
		return true
	case ElementVar, ElementMVar, ElementClass, ElementString, ElementObject, ElementArray, ElementSZArray,
		ElementPtr, ElementByRef, ElementVoid:
		return false
	}
	return t.Element.IsPrimitive()
}

// IsReferenceType returns true if instances of the type are heap objects referenced by pointer.
func (t *Type) IsReferenceType() bool {
	switch t.Element {
	case ElementClass, ElementString, ElementObject, ElementArray, ElementSZArray:
		return true
	}
	return false
}

// IsArray returns true for single- and multi-dimensional arrays.
func (t *Type) IsArray() bool {
	return t.Element == ElementArray || t.Element == ElementSZArray
}

// IsGenericParameter returns true for type and method generic parameters.
func (t *Type) IsGenericParameter() bool {
	return t.Element == ElementVar || t.Element == ElementMVar
}

// FullName returns the namespace-qualified name of the type.
func (t *Type) FullName() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Element {
	case ElementSZArray:
		return t.Elem.FullName() + "[]"
	case ElementArray:
		return t.Elem.FullName() + "[" + strings.Repeat(",", t.Rank-1) + "]"
	case ElementPtr:
		return t.Elem.FullName() + "*"
	case ElementByRef:
		return t.Elem.FullName() + "&"
	case ElementVar:
		return fmt.Sprintf("!%d", t.GenericIndex)
	case ElementMVar:
		return fmt.Sprintf("!!%d", t.GenericIndex)
	case ElementFnPtr:
		return "method " + t.FnSig.String()
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *Type) String() string {
	return t.FullName()
}

// IsSubclassOf returns true if t derives, directly or indirectly, from base.
func (t *Type) IsSubclassOf(base *Type) bool {
	for b := t.Base; b != nil; b = b.Base {
		if b == base {
			return true
		}
	}
	return false
}

// Implements returns true if t or one of its bases lists the given interface.
func (t *Type) Implements(iface *Type) bool {
	for c := t; c != nil; c = c.Base {
		for _, i := range c.Interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// IsAssignableTo returns true if a value of static type t can be used where target is expected
// without a runtime check.
func (t *Type) IsAssignableTo(target *Type) bool {
	switch {
	case t == target:
		return true
	case t == nil || target == nil:
		return false
	case target.Element == ElementObject:
		// Every reference type and interface instance is an object.
		return t.IsReferenceType() || t.IsInterface()
	case target.IsInterface():
		return t.Implements(target)
	case t.IsArray() && target.IsArray():
		return t.Rank == target.Rank && t.Elem.IsReferenceType() && t.Elem.IsAssignableTo(target.Elem)
	}
	return t.IsSubclassOf(target)
}

// FindMethod returns the method declared directly on t with the given name and signature, if any.
func (t *Type) FindMethod(name string, sig *Signature) *Method {
	for _, m := range t.Methods {
		if m.Name == name && m.Sig.Equal(sig) {
			return m
		}
	}
	return nil
}

// FindField returns the field declared directly on t with the given name, if any.
func (t *Type) FindField(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Implementation returns the instance method declared directly on t that implements or
// overrides target, if any. Explicit interface implementations are named after the interface.
func (t *Type) Implementation(target *Method) *Method {
	explicit := target.DeclaringType.FullName() + "." + target.Name
	for _, m := range t.Methods {
		if m.IsStatic() {
			continue
		}
		if (m.Name == target.Name || m.Name == explicit) && m.Sig.Equal(target.Sig) {
			return m
		}
		for o := m.Overrides; o != nil; o = o.Overrides {
			if o == target {
				return m
			}
		}
	}
	return nil
}

// StaticConstructor returns the type initializer of t, if any.
func (t *Type) StaticConstructor() *Method {
	for _, m := range t.Methods {
		if m.Name == ".cctor" && m.IsStatic() {
			return m
		}
	}
	return nil
}

// MethodFlags records the attributes of a method definition that matter for lowering.
type MethodFlags uint32

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodAbstract
	MethodFinal
	MethodNewSlot
	// MethodInternalCall marks methods whose body is supplied by the runtime; these must be
	// resolved through the intrinsic catalog.
	MethodInternalCall
)

// A Method describes a method definition or a method instantiation.
type Method struct {
	Name          string
	DeclaringType *Type
	Sig           *Signature
	Flags         MethodFlags

	// Locals holds the types of the method's local variables.
	Locals []*Type
	// Overrides is the method this method overrides, if any.
	Overrides *Method
}

func (m *Method) IsStatic() bool { return m.Flags&MethodStatic != 0 }
func (m *Method) IsVirtual() bool { return m.Flags&MethodVirtual != 0 }
func (m *Method) IsAbstract() bool { return m.Flags&MethodAbstract != 0 }
func (m *Method) IsFinal() bool { return m.Flags&MethodFinal != 0 }
func (m *Method) IsInternalCall() bool { return m.Flags&MethodInternalCall != 0 }
func (m *Method) IsConstructor() bool { return m.Name == ".ctor" && !m.IsStatic() }
func (m *Method) IsTypeInitializer() bool { return m.Name == ".cctor" && m.IsStatic() }

// Root returns the method that introduced the virtual slot m occupies.
func (m *Method) Root() *Method {
	r := m
	for r.Overrides != nil {
		r = r.Overrides
	}
	return r
}

// FullName returns the declaring type, name and signature of the method.
func (m *Method) FullName() string {
	return fmt.Sprintf("%v::%v%v", m.DeclaringType, m.Name, m.Sig.ParamString())
}

func (m *Method) String() string {
	return m.FullName()
}

// ParamType returns the type of argument i, counting the implicit this argument for instance
// methods.
func (m *Method) ParamType(i int) *Type {
	return m.Sig.ArgType(i, m.DeclaringType)
}

// A Field describes a field definition.
type Field struct {
	Name          string
	DeclaringType *Type
	Type          *Type
	Static        bool
}

func (f *Field) FullName() string {
	return fmt.Sprintf("%v::%v", f.DeclaringType, f.Name)
}

func (f *Field) String() string {
	return f.FullName()
}

// MemberKind distinguishes the metadata entries a token may reference.
type MemberKind int

const (
	MemberType MemberKind = iota
	MemberMethod
	MemberField
)

// A Member is a resolved type, method or field reference.
type Member struct {
	Kind   MemberKind
	Type   *Type
	Method *Method
	Field  *Field
}

// Context is the generic context of a method body: the type and method whose generic
// parameters are in scope.
type Context struct {
	Type   *Type
	Method *Method
}
