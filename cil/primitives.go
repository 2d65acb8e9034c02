package cil

var primitives = map[ElementType]*Type{}

func init() {
	for e, name := range map[ElementType]string{
		ElementVoid:    "Void",
		ElementBoolean: "Boolean",
		ElementChar:    "Char",
		ElementI1:      "SByte",
		ElementU1:      "Byte",
		ElementI2:      "Int16",
		ElementU2:      "UInt16",
		ElementI4:      "Int32",
		ElementU4:      "UInt32",
		ElementI8:      "Int64",
		ElementU8:      "UInt64",
		ElementR4:      "Single",
		ElementR8:      "Double",
		ElementI:       "IntPtr",
		ElementU:       "UIntPtr",
		ElementString:  "String",
		ElementObject:  "Object",
	} {
		primitives[e] = &Type{Namespace: "System", Name: name, Element: e, Flags: TypeSealed}
	}
	primitives[ElementObject].Flags = 0
}

// Primitive returns the canonical descriptor of a built-in type. It panics for element types
// that do not name a built-in type.
func Primitive(e ElementType) *Type {
	t, ok := primitives[e]
	if !ok {
		panic("not a primitive element type: " + e.String())
	}
	return t
}

// TypeOf returns the canonical stack type for values of category c. Object, ByRef and ValueType
// values carry their own types and have no canonical type other than System.Object for Object.
func TypeOf(c Category) *Type {
	switch c {
	case Int32:
		return primitives[ElementI4]
	case Int64:
		return primitives[ElementI8]
	case NativeInt:
		return primitives[ElementI]
	case Float32:
		return primitives[ElementR4]
	case Float64:
		return primitives[ElementR8]
	case Object:
		return primitives[ElementObject]
	case Void:
		return primitives[ElementVoid]
	}
	return nil
}
