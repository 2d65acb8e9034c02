package cil

// A Category is the coarse runtime representation class of a value on the evaluation stack.
type Category byte

const (
	Void Category = iota
	Int32
	Int64
	NativeInt
	Float32
	Float64
	Object
	ByRef
	ValueType
)

var categoryNames = [...]string{
	Void:      "void",
	Int32:     "i4",
	Int64:     "i8",
	NativeInt: "i",
	Float32:   "r4",
	Float64:   "r8",
	Object:    "o",
	ByRef:     "&",
	ValueType: "vt",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "?"
}

// IsInteger returns true for the integral categories.
func (c Category) IsInteger() bool {
	return c == Int32 || c == Int64 || c == NativeInt
}

// IsFloat returns true for the floating-point categories.
func (c Category) IsFloat() bool {
	return c == Float32 || c == Float64
}

// IsPointerLike returns true for categories whose values are machine addresses.
func (c Category) IsPointerLike() bool {
	return c == NativeInt || c == Object || c == ByRef
}

// CategoryOf returns the stack category of values of type t.
func CategoryOf(t *Type) Category {
	if t == nil {
		return Void
	}
	switch t.Element {
	case ElementVoid:
		return Void
	case ElementBoolean, ElementChar, ElementI1, ElementU1, ElementI2, ElementU2, ElementI4, ElementU4:
		return Int32
	case ElementI8, ElementU8:
		return Int64
	case ElementI, ElementU, ElementPtr:
		return NativeInt
	case ElementR4:
		return Float32
	case ElementR8:
		return Float64
	case ElementByRef:
		return ByRef
	case ElementValueType:
		if t.IsEnum() && t.Elem != nil {
			return CategoryOf(t.Elem)
		}
		return ValueType
	case ElementTypedByRef, ElementFnPtr:
		return ValueType
	}
	return Object
}

// Width returns the storage width in bytes of a primitive element type, or 0 for types whose
// width depends on the target or on layout.
func (e ElementType) Width() int {
	switch e {
	case ElementBoolean, ElementI1, ElementU1:
		return 1
	case ElementChar, ElementI2, ElementU2:
		return 2
	case ElementI4, ElementU4, ElementR4:
		return 4
	case ElementI8, ElementU8, ElementR8:
		return 8
	}
	return 0
}
