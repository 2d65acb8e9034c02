package static

import "github.com/pgavlin/cil2tac/cil"

func sig(ret *cil.Type, params ...*cil.Type) *cil.Signature {
	return &cil.Signature{Params: params, Return: ret}
}

func instanceSig(ret *cil.Type, params ...*cil.Type) *cil.Signature {
	return &cil.Signature{HasThis: true, Params: params, Return: ret}
}

// addCoreLibrary registers the core library types the lowering rules refer to, the runtime
// helper class, and value-type definitions of the primitive types.
func (m *Module) addCoreLibrary() {
	void := cil.Primitive(cil.ElementVoid)
	i4 := cil.Primitive(cil.ElementI4)
	i := cil.Primitive(cil.ElementI)
	char := cil.Primitive(cil.ElementChar)
	sbyte := cil.Primitive(cil.ElementI1)
	boolean := cil.Primitive(cil.ElementBoolean)

	object := &cil.Type{Namespace: "System", Name: "Object", Element: cil.ElementObject}
	str := &cil.Type{
		Namespace: "System", Name: "String", Element: cil.ElementString, Flags: cil.TypeSealed, Base: object,
	}
	object.Methods = []*cil.Method{
		{Name: ".ctor", Sig: instanceSig(void)},
		{Name: "ToString", Sig: instanceSig(str), Flags: cil.MethodVirtual | cil.MethodNewSlot},
		{Name: "Equals", Sig: instanceSig(boolean, object), Flags: cil.MethodVirtual | cil.MethodNewSlot},
		{Name: "GetHashCode", Sig: instanceSig(i4), Flags: cil.MethodVirtual | cil.MethodNewSlot},
		{Name: "GetType", Sig: instanceSig(object), Flags: cil.MethodInternalCall},
	}
	m.addTypeLocked(object)
	m.wellKnown[cil.KnownObject] = object

	valueType := &cil.Type{
		Namespace: "System", Name: "ValueType", Element: cil.ElementClass, Flags: cil.TypeAbstract, Base: object,
	}
	m.addTypeLocked(valueType)
	m.wellKnown[cil.KnownValueType] = valueType

	encoding := &cil.Type{
		Namespace: "System.Text", Name: "Encoding", Element: cil.ElementClass, Flags: cil.TypeAbstract, Base: object,
	}
	m.addTypeLocked(encoding)
	m.wellKnown[cil.KnownEncoding] = encoding

	charArray, charPtr, sbytePtr := cil.ArrayOf(char), cil.PointerTo(char), cil.PointerTo(sbyte)
	str.Fields = []*cil.Field{
		{Name: "_length", Type: i4},
		{Name: "_firstChar", Type: char},
	}
	str.Methods = []*cil.Method{
		{Name: ".ctor", Sig: instanceSig(void, charArray)},
		{Name: ".ctor", Sig: instanceSig(void, charArray, i4, i4)},
		{Name: ".ctor", Sig: instanceSig(void, char, i4)},
		{Name: ".ctor", Sig: instanceSig(void, charPtr)},
		{Name: ".ctor", Sig: instanceSig(void, charPtr, i4, i4)},
		{Name: ".ctor", Sig: instanceSig(void, sbytePtr)},
		{Name: ".ctor", Sig: instanceSig(void, sbytePtr, i4, i4)},
		{Name: ".ctor", Sig: instanceSig(void, sbytePtr, i4, i4, encoding)},
		{Name: "get_Length", Sig: instanceSig(i4), Flags: cil.MethodInternalCall},
		{Name: "ToString", Sig: instanceSig(str), Flags: cil.MethodVirtual | cil.MethodFinal},
	}
	str.Methods[len(str.Methods)-1].Overrides = object.Methods[1]
	m.addTypeLocked(str)
	m.wellKnown[cil.KnownString] = str

	array := &cil.Type{
		Namespace: "System", Name: "Array", Element: cil.ElementClass, Flags: cil.TypeAbstract, Base: object,
	}
	array.Methods = []*cil.Method{
		{Name: "get_Length", Sig: instanceSig(i4), Flags: cil.MethodInternalCall},
	}
	m.addTypeLocked(array)
	m.wellKnown[cil.KnownArray] = array

	delegate := &cil.Type{
		Namespace: "System", Name: "Delegate", Element: cil.ElementClass, Flags: cil.TypeAbstract, Base: object,
		Fields: []*cil.Field{
			{Name: "_target", Type: object},
			{Name: "_methodPtr", Type: i},
		},
	}
	m.addTypeLocked(delegate)
	m.wellKnown[cil.KnownDelegate] = delegate

	exception := &cil.Type{
		Namespace: "System", Name: "Exception", Element: cil.ElementClass, Base: object,
		Fields: []*cil.Field{{Name: "_message", Type: str}},
	}
	exception.Methods = []*cil.Method{{Name: ".ctor", Sig: instanceSig(void)}}
	m.addTypeLocked(exception)

	for _, h := range []struct {
		w    cil.WellKnown
		name string
	}{
		{cil.KnownRuntimeTypeHandle, "RuntimeTypeHandle"},
		{cil.KnownRuntimeMethodHandle, "RuntimeMethodHandle"},
		{cil.KnownRuntimeFieldHandle, "RuntimeFieldHandle"},
	} {
		t := &cil.Type{
			Namespace: "System", Name: h.name, Element: cil.ElementValueType, Flags: cil.TypeSealed, Base: valueType,
			Fields: []*cil.Field{{Name: "m_value", Type: i}},
		}
		m.addTypeLocked(t)
		m.wellKnown[h.w] = t
	}

	for _, p := range []struct {
		e    cil.ElementType
		name string
		w    cil.WellKnown
	}{
		{cil.ElementBoolean, "Boolean", -1},
		{cil.ElementChar, "Char", cil.KnownChar},
		{cil.ElementI1, "SByte", cil.KnownSByte},
		{cil.ElementU1, "Byte", -1},
		{cil.ElementI2, "Int16", -1},
		{cil.ElementU2, "UInt16", -1},
		{cil.ElementI4, "Int32", cil.KnownInt32},
		{cil.ElementU4, "UInt32", -1},
		{cil.ElementI8, "Int64", -1},
		{cil.ElementU8, "UInt64", -1},
		{cil.ElementR4, "Single", -1},
		{cil.ElementR8, "Double", -1},
		{cil.ElementI, "IntPtr", cil.KnownIntPtr},
		{cil.ElementU, "UIntPtr", -1},
	} {
		t := &cil.Type{Namespace: "System", Name: p.name, Element: p.e, Flags: cil.TypeSealed, Base: valueType}
		toString := &cil.Method{Name: "ToString", Sig: instanceSig(str), Flags: cil.MethodVirtual, Overrides: object.Methods[1]}
		hash := &cil.Method{Name: "GetHashCode", Sig: instanceSig(i4), Flags: cil.MethodVirtual, Overrides: object.Methods[3]}
		t.Methods = []*cil.Method{toString, hash}
		if p.e == cil.ElementI {
			t.Methods = append(t.Methods, &cil.Method{Name: "get_Size", Sig: sig(i4), Flags: cil.MethodStatic | cil.MethodInternalCall})
		}
		t.Fields = []*cil.Field{{Name: "m_value", Type: cil.Primitive(p.e)}}
		m.addTypeLocked(t)
		m.primitives[p.e] = t
		if p.w >= 0 {
			m.wellKnown[p.w] = t
		}
	}

	i8 := cil.Primitive(cil.ElementI8)
	math := &cil.Type{
		Namespace: "System", Name: "Math", Element: cil.ElementClass,
		Flags: cil.TypeSealed | cil.TypeAbstract, Base: object,
		Methods: []*cil.Method{
			{Name: "Abs", Sig: sig(i4, i4), Flags: cil.MethodStatic | cil.MethodInternalCall},
			{Name: "Abs", Sig: sig(i8, i8), Flags: cil.MethodStatic | cil.MethodInternalCall},
		},
	}
	m.addTypeLocked(math)

	helpers := &cil.Type{
		Namespace: "Internal.Runtime", Name: "Helpers", Element: cil.ElementClass,
		Flags: cil.TypeSealed | cil.TypeAbstract, Base: object,
	}
	helperSigs := map[cil.Helper]*cil.Signature{
		cil.HelperAllocString:           sig(str, i4),
		cil.HelperStringCharCount:       sig(i4, sbytePtr, i4, i4, encoding),
		cil.HelperAllocObject:           sig(object, i),
		cil.HelperNewArray:              sig(object, i, i),
		cil.HelperIsInstanceOfClass:     sig(object, object, i),
		cil.HelperIsInstanceOfInterface: sig(object, object, i),
		cil.HelperIsInstanceOfArray:     sig(object, object, i),
		cil.HelperThrowInvalidCast:      sig(void),
		cil.HelperThrowMissingMethod:    sig(void),
		cil.HelperThrowNullReference:    sig(void),
		cil.HelperThrowIndexOutOfRange:  sig(void),
		cil.HelperThrowOverflow:         sig(void),
		cil.HelperThrow:                 sig(void, object),
		cil.HelperRethrow:               sig(void),
		cil.HelperUnboxCheck:            sig(void, object, i),
		cil.HelperArrayStoreCheck:       sig(void, object, object),
		cil.HelperMemmove:               sig(void, i, i, i),
		cil.HelperMemset:                sig(void, i, i4, i),
		cil.HelperStaticInit:            sig(void, i),
	}
	for _, h := range cil.Helpers() {
		meth := &cil.Method{
			Name:  h.String(),
			Sig:   helperSigs[h],
			Flags: cil.MethodStatic | cil.MethodInternalCall,
		}
		helpers.Methods = append(helpers.Methods, meth)
		m.helpers[h] = meth
	}
	m.addTypeLocked(helpers)
}
