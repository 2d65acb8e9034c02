package static

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModule(t *testing.T) (*Module, *cil.Type, *cil.Type) {
	m := New(Target{PointerSize: 8})

	i4, err := m.LookupType("int32")
	require.NoError(t, err)
	object, err := m.WellKnown(cil.KnownObject)
	require.NoError(t, err)

	point := &cil.Type{Namespace: "N", Name: "Point", Element: cil.ElementValueType, Base: m.wellKnown[cil.KnownValueType]}
	point.Fields = []*cil.Field{
		{Name: "X", Type: i4},
		{Name: "Y", Type: cil.Primitive(cil.ElementI1)},
		{Name: "Origin", Type: point, Static: true},
	}
	m.AddType(point)

	shape := &cil.Type{Namespace: "N", Name: "Shape", Element: cil.ElementClass, Base: object}
	shape.Fields = []*cil.Field{{Name: "Center", Type: point}, {Name: "Name", Type: m.wellKnown[cil.KnownString]}}
	shape.Methods = []*cil.Method{
		{Name: "Area", Sig: instanceSig(cil.Primitive(cil.ElementR8)), Flags: cil.MethodVirtual | cil.MethodNewSlot},
		{Name: "ToString", Sig: instanceSig(m.wellKnown[cil.KnownString]), Flags: cil.MethodVirtual, Overrides: object.Methods[1]},
		{Name: "Scale", Sig: instanceSig(cil.Primitive(cil.ElementVoid), i4)},
	}
	m.AddType(shape)
	return m, point, shape
}

func TestLookup(t *testing.T) {
	m, point, shape := testModule(t)

	typ, err := m.LookupType("N.Point[]&")
	require.NoError(t, err)
	assert.Equal(t, "N.Point[]&", typ.FullName())

	meth, err := m.LookupMethod("N.Shape::Scale(int32)")
	require.NoError(t, err)
	assert.Same(t, shape.Methods[2], meth)

	meth, err = m.LookupMethod("System.String::.ctor(char,int32)")
	require.NoError(t, err)
	assert.Equal(t, "System.String::.ctor(System.Char,System.Int32)", meth.FullName())

	_, err = m.LookupMethod("System.String::.ctor")
	assert.Error(t, err)

	f, err := m.LookupField("N.Point::Y")
	require.NoError(t, err)
	assert.Same(t, point.Fields[1], f)

	_, err = m.LookupType("N.Missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTokens(t *testing.T) {
	m, _, shape := testModule(t)

	tok, err := m.Token(code.OperandMethod, "N.Shape::Area()")
	require.NoError(t, err)
	assert.Equal(t, cil.TableMethodDef, tok.Table())
	meth, err := m.ResolveMethod(tok, cil.Context{})
	require.NoError(t, err)
	assert.Same(t, shape.Methods[0], meth)

	tok, err = m.Token(code.OperandToken, "N.Shape::Center")
	require.NoError(t, err)
	member, err := m.ResolveMember(tok, cil.Context{})
	require.NoError(t, err)
	assert.Equal(t, cil.MemberField, member.Kind)

	tok, err = m.String("hello")
	require.NoError(t, err)
	again, err := m.String("hello")
	require.NoError(t, err)
	assert.Equal(t, tok, again)
	s, err := m.ResolveString(tok)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	tok, err = m.Token(code.OperandSignature, "instance int32(nint, float64)")
	require.NoError(t, err)
	sig, err := m.ResolveSignature(tok, cil.Context{})
	require.NoError(t, err)
	assert.True(t, sig.HasThis)
	assert.Equal(t, "System.Int32(System.IntPtr,System.Double)", sig.String())

	_, err = m.ResolveType(cil.MakeToken(cil.TableTypeDef, 9999), cil.Context{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestObjectLayout(t *testing.T) {
	m, point, shape := testModule(t)

	l, err := m.ObjectLayout(point)
	require.NoError(t, err)
	assert.Equal(t, 8, l.Size)
	assert.Equal(t, 0, l.Fields[point.Fields[0]])
	assert.Equal(t, 4, l.Fields[point.Fields[1]])
	assert.Equal(t, 0, l.StaticFields[point.Fields[2]])
	assert.Equal(t, 8, l.StaticSize)

	l, err = m.ObjectLayout(shape)
	require.NoError(t, err)
	assert.Equal(t, 8, l.Fields[shape.Fields[0]])
	assert.Equal(t, 16, l.Fields[shape.Fields[1]])
	assert.Equal(t, 24, l.Size)

	l, err = m.ObjectLayout(m.wellKnown[cil.KnownString])
	require.NoError(t, err)
	assert.Equal(t, 8, l.LengthOffset)
	assert.Equal(t, 12, l.DataOffset)
	assert.Equal(t, 2, l.ElementSize)

	l, err = m.ObjectLayout(cil.ArrayOf(point))
	require.NoError(t, err)
	assert.Equal(t, 8, l.LengthOffset)
	assert.Equal(t, 16, l.DataOffset)
	assert.Equal(t, 8, l.ElementSize)
}

func TestTypeInfoLayout(t *testing.T) {
	m, _, shape := testModule(t)
	object := m.wellKnown[cil.KnownObject]

	l, err := m.TypeInfoLayout(shape)
	require.NoError(t, err)
	assert.Equal(t, "N.Shape$typeinfo", l.Label)
	assert.Equal(t, 8, l.ITableOffset)

	// Object introduces ToString, Equals and GetHashCode; Shape adds Area and overrides ToString.
	assert.Equal(t, 24, l.Slots[object.Methods[1]])
	assert.Equal(t, 48, l.Slots[shape.Methods[0]])
	assert.Equal(t, 56, l.Size)

	_, impls := m.VTable(shape)
	assert.Same(t, shape.Methods[1], impls[0])
}

func TestBoxed(t *testing.T) {
	m, point, _ := testModule(t)

	boxed, err := m.Boxed(point)
	require.NoError(t, err)
	again, err := m.Boxed(point)
	require.NoError(t, err)
	assert.Same(t, boxed, again)
	assert.True(t, boxed.IsReferenceType())

	l, err := m.ObjectLayout(boxed)
	require.NoError(t, err)
	assert.Equal(t, 8, l.Fields[boxed.Fields[0]])

	unboxed, ok := m.Unboxed(boxed)
	assert.True(t, ok)
	assert.Same(t, point, unboxed)

	// Boxing the canonical primitive and the core library's definition share a boxed form.
	i4, err := m.Boxed(cil.Primitive(cil.ElementI4))
	require.NoError(t, err)
	def, err := m.Boxed(m.primitives[cil.ElementI4])
	require.NoError(t, err)
	assert.Same(t, i4, def)

	_, err = m.Boxed(m.wellKnown[cil.KnownString])
	assert.Error(t, err)
}

func TestCallingConvention(t *testing.T) {
	m, point, shape := testModule(t)

	conv, err := m.Build(shape.Methods[2], nil, tac.OpCall)
	require.NoError(t, err)
	assert.Equal(t, "managed", conv.Name)
	assert.Equal(t, []tac.Slot{{Register: 0, Size: 8}, {Register: 1, Size: 4}}, conv.Args)

	big := &cil.Type{Namespace: "N", Name: "Big", Element: cil.ElementValueType}
	big.Fields = []*cil.Field{{Name: "A", Type: point}, {Name: "B", Type: point}, {Name: "C", Type: point}}
	m.AddType(big)
	conv, err = m.Build(nil, sig(big, big), tac.OpCallIndirect)
	require.NoError(t, err)
	assert.Equal(t, []tac.Slot{{Register: -1, Offset: 0, Size: 24}}, conv.Args)
	assert.True(t, conv.StructReturn)

	helper, err := m.Helper(cil.HelperAllocObject)
	require.NoError(t, err)
	conv, err = m.Build(helper, nil, tac.OpCall)
	require.NoError(t, err)
	assert.Equal(t, "runtime", conv.Name)
}
