package tacvm_test

import (
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/compiler/lower"
	"github.com/pgavlin/cil2tac/internal/tacvm"
	"github.com/pgavlin/cil2tac/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arith = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Arith
  methods:
  - name: Add
    sig: int32(int32, int32)
    body: |
      ldarg.0
      ldarg.1
      add
      ret
  - name: AddOvf
    sig: int32(int32, int32)
    body: |
      ldarg.0
      ldarg.1
      add.ovf
      ret
  - name: MulOvfUn
    sig: uint32(uint32, uint32)
    body: |
      ldarg.0
      ldarg.1
      mul.ovf.un
      ret
  - name: Div
    sig: int32(int32, int32)
    body: |
      ldarg.0
      ldarg.1
      div
      ret
  - name: ToByte
    sig: uint8(int32)
    body: |
      ldarg.0
      conv.ovf.u1
      ret
  - name: Truncate
    sig: int32(float64)
    body: |
      ldarg.0
      conv.i4
      ret
  - name: Widen
    sig: int64(int32)
    body: |
      ldarg.0
      conv.i8
      ret
  - name: Sum
    sig: int32(int32)
    locals: [int32, int32]
    body: |
      ldc.i4.0
      stloc.0
      ldc.i4.1
      stloc.1
      br.s test
      loop:
      ldloc.0
      ldloc.1
      add
      stloc.0
      ldloc.1
      ldc.i4.1
      add
      stloc.1
      test:
      ldloc.1
      ldarg.0
      ble.s loop
      ldloc.0
      ret
  - name: Max
    sig: int64(int64, int64)
    body: |
      ldarg.0
      ldarg.1
      bge.s first
      ldarg.1
      ret
      first:
      ldarg.0
      ret
  - name: Classify
    sig: int32(int32)
    body: |
      ldarg.0
      switch (zero, one)
      ldc.i4.m1
      ret
      zero:
      ldc.i4.s 10
      ret
      one:
      ldc.i4.s 20
      ret
`

func machine(t *testing.T, src string) *tacvm.Machine {
	mod, err := load.LoadModule(strings.NewReader(src))
	require.NoError(t, err)

	result, err := lower.Module(mod, nil, nil)
	require.NoError(t, err)

	m, err := tacvm.New(mod)
	require.NoError(t, err)
	for _, r := range result.Methods {
		m.Load(r.Func)
	}
	m.AddTypes(result.TypeInfos...)
	m.AddTypes(result.Statics...)
	m.AddStrings(result.Strings...)
	return m
}

func i32(v int32) uint64 {
	return uint64(uint32(v))
}

func requireException(t *testing.T, err error, typ string) {
	var exn *tacvm.Exception
	require.True(t, errors.As(err, &exn), "expected %v, got %v", typ, err)
	assert.Equal(t, typ, exn.Type)
}

func TestArithmetic(t *testing.T) {
	m := machine(t, arith)

	r, err := m.Call("N.Arith::Add(System.Int32,System.Int32)", i32(40), i32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(42), int32(r))

	r, err = m.Call("N.Arith::Add(System.Int32,System.Int32)", i32(math.MaxInt32), i32(1))
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), int32(r))

	r, err = m.Call("N.Arith::AddOvf(System.Int32,System.Int32)", i32(-5), i32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(-2), int32(r))

	_, err = m.Call("N.Arith::AddOvf(System.Int32,System.Int32)", i32(math.MaxInt32), i32(1))
	requireException(t, err, "System.OverflowException")

	r, err = m.Call("N.Arith::MulOvfUn(System.UInt32,System.UInt32)", 1<<15, 1<<16)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<31), r)

	_, err = m.Call("N.Arith::MulOvfUn(System.UInt32,System.UInt32)", 1<<16, 1<<16)
	requireException(t, err, "System.OverflowException")

	r, err = m.Call("N.Arith::Div(System.Int32,System.Int32)", i32(-7), i32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(-3), int32(r))

	_, err = m.Call("N.Arith::Div(System.Int32,System.Int32)", i32(1), i32(0))
	requireException(t, err, "System.DivideByZeroException")
}

func TestConversions(t *testing.T) {
	m := machine(t, arith)

	r, err := m.Call("N.Arith::ToByte(System.Int32)", i32(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(200), r)

	_, err = m.Call("N.Arith::ToByte(System.Int32)", i32(300))
	requireException(t, err, "System.OverflowException")

	_, err = m.Call("N.Arith::ToByte(System.Int32)", i32(-1))
	requireException(t, err, "System.OverflowException")

	r, err = m.Call("N.Arith::Truncate(System.Double)", math.Float64bits(-2.75))
	require.NoError(t, err)
	assert.Equal(t, int32(-2), int32(r))

	r, err = m.Call("N.Arith::Widen(System.Int32)", i32(-9))
	require.NoError(t, err)
	assert.Equal(t, int64(-9), int64(r))
}

func TestControlFlow(t *testing.T) {
	m := machine(t, arith)

	r, err := m.Call("N.Arith::Sum(System.Int32)", i32(10))
	require.NoError(t, err)
	assert.Equal(t, int32(55), int32(r))

	r, err = m.Call("N.Arith::Sum(System.Int32)", i32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(0), int32(r))

	r, err = m.Call("N.Arith::Max(System.Int64,System.Int64)", uint64(3), uint64(math.MaxUint64))
	require.NoError(t, err)
	assert.Equal(t, int64(3), int64(r))

	for in, want := range map[int32]int32{0: 10, 1: 20, 2: -1, -1: -1} {
		r, err = m.Call("N.Arith::Classify(System.Int32)", i32(in))
		require.NoError(t, err)
		assert.Equal(t, want, int32(r), "Classify(%d)", in)
	}
}

const shapes = `
target:
  pointerSize: 8
types:
- namespace: N
  name: IShape
  kind: interface
  methods:
  - {name: Sides, sig: instance int32()}
- namespace: N
  name: Shape
  kind: class
  flags: [abstract]
  interfaces: [N.IShape]
  methods:
  - name: .ctor
    sig: instance void()
    body: |
      ldarg.0
      call System.Object::.ctor()
      ret
  - {name: Sides, sig: instance int32(), flags: [virtual, abstract, newslot]}
  - name: Describe
    sig: instance int32()
    body: |
      ldarg.0
      callvirt N.Shape::Sides()
      ldc.i4.s 100
      mul
      ret
- namespace: N
  name: Square
  base: N.Shape
  fields:
  - {name: side, type: int32}
  methods:
  - name: .ctor
    sig: instance void(int32)
    body: |
      ldarg.0
      call N.Shape::.ctor()
      ldarg.0
      ldarg.1
      stfld N.Square::side
      ret
  - name: Sides
    sig: instance int32()
    flags: [virtual]
    body: |
      ldc.i4.4
      ret
  - name: Area
    sig: instance int32()
    body: |
      ldarg.0
      ldfld N.Square::side
      dup
      mul
      ret
- namespace: N
  name: Triangle
  base: N.Shape
  methods:
  - name: .ctor
    sig: instance void()
    body: |
      ldarg.0
      call N.Shape::.ctor()
      ret
  - name: Sides
    sig: instance int32()
    flags: [virtual]
    body: |
      ldc.i4.3
      ret
- namespace: N
  name: Config
  fields:
  - {name: count, type: int32, static: true}
  methods:
  - name: .cctor
    sig: void()
    body: |
      ldc.i4.7
      stsfld N.Config::count
      ret
- namespace: N
  name: Program
  methods:
  - name: Count
    sig: int32()
    body: |
      ldsfld N.Config::count
      ret
  - name: Virtual
    sig: int32(bool)
    locals: [N.Shape]
    body: |
      ldarg.0
      brfalse.s triangle
      ldc.i4.5
      newobj N.Square::.ctor(int32)
      stloc.0
      br.s done
      triangle:
      newobj N.Triangle::.ctor()
      stloc.0
      done:
      ldloc.0
      callvirt N.Shape::Describe()
      ret
  - name: Interface
    sig: int32(bool)
    locals: [N.IShape]
    body: |
      ldarg.0
      brfalse.s triangle
      ldc.i4.5
      newobj N.Square::.ctor(int32)
      stloc.0
      br.s done
      triangle:
      newobj N.Triangle::.ctor()
      stloc.0
      done:
      ldloc.0
      callvirt N.IShape::Sides()
      ret
  - name: Area
    sig: int32(object)
    body: |
      ldarg.0
      castclass N.Square
      call N.Square::Area()
      ret
  - name: IsSquare
    sig: int32(bool)
    body: |
      ldarg.0
      brfalse.s triangle
      ldc.i4.2
      newobj N.Square::.ctor(int32)
      br.s done
      triangle:
      newobj N.Triangle::.ctor()
      done:
      isinst N.Square
      ldnull
      cgt.un
      ret
  - name: MakeSquare
    sig: object(int32)
    body: |
      ldarg.0
      newobj N.Square::.ctor(int32)
      ret
  - name: MakeTriangle
    sig: object()
    body: |
      newobj N.Triangle::.ctor()
      ret
  - name: Box
    sig: int32(int32)
    locals: [object]
    body: |
      ldarg.0
      box int32
      stloc.0
      ldloc.0
      unbox.any int32
      ldc.i4.1
      add
      ret
  - name: BadUnbox
    sig: int64(int32)
    body: |
      ldarg.0
      box int32
      unbox.any int64
      ret
  - name: Array
    sig: int32(int32)
    locals: ["int32[]"]
    body: |
      ldc.i4.3
      newarr int32
      stloc.0
      ldloc.0
      ldc.i4.0
      ldc.i4.s 11
      stelem.i4
      ldloc.0
      ldc.i4.1
      ldc.i4.s 22
      stelem.i4
      ldloc.0
      ldc.i4.2
      ldc.i4.s 33
      stelem.i4
      ldloc.0
      ldarg.0
      ldelem.i4
      ret
  - name: Length
    sig: int32()
    body: |
      ldc.i4.s 12
      newarr int64
      ldlen
      conv.i4
      ret
  - name: Hello
    sig: string()
    body: |
      ldstr "héllo"
      ret
  - name: HelloLength
    sig: int32()
    body: |
      ldstr "héllo"
      callvirt System.String::get_Length()
      ret
  - name: "Null"
    sig: int32(N.Square)
    body: |
      ldarg.0
      ldfld N.Square::side
      ret
`

func TestDispatch(t *testing.T) {
	m := machine(t, shapes)

	r, err := m.Call("N.Program::Virtual(System.Boolean)", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(400), int32(r))

	r, err = m.Call("N.Program::Virtual(System.Boolean)", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(300), int32(r))

	r, err = m.Call("N.Program::Interface(System.Boolean)", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(4), int32(r))

	r, err = m.Call("N.Program::Interface(System.Boolean)", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), int32(r))
}

const interfaces = `
target:
  pointerSize: 8
types:
- namespace: N
  name: IA
  kind: interface
  methods:
  - {name: A, sig: instance int32()}
- namespace: N
  name: IB
  kind: interface
  methods:
  - {name: B, sig: instance int32()}
- namespace: N
  name: AB
  interfaces: [N.IA, N.IB]
  methods:
  - name: .ctor
    sig: instance void()
    body: |
      ldarg.0
      call System.Object::.ctor()
      ret
  - name: A
    sig: instance int32()
    flags: [virtual, final, newslot]
    body: |
      ldc.i4.1
      ret
  - name: B
    sig: instance int32()
    flags: [virtual, final, newslot]
    body: |
      ldc.i4.2
      ret
- namespace: N
  name: Program
  methods:
  - name: CallA
    sig: int32()
    body: |
      newobj N.AB::.ctor()
      callvirt N.IA::A()
      ret
  - name: CallB
    sig: int32()
    body: |
      newobj N.AB::.ctor()
      callvirt N.IB::B()
      ret
`

func TestInterfaceTableScan(t *testing.T) {
	m := machine(t, interfaces)

	// IA is the first entry of N.AB's interface table and IB the second.
	r, err := m.Call("N.Program::CallA()")
	require.NoError(t, err)
	assert.Equal(t, int32(1), int32(r))

	r, err = m.Call("N.Program::CallB()")
	require.NoError(t, err)
	assert.Equal(t, int32(2), int32(r))
}

func TestCasts(t *testing.T) {
	m := machine(t, shapes)

	r, err := m.Call("N.Program::IsSquare(System.Boolean)", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), int32(r))

	r, err = m.Call("N.Program::IsSquare(System.Boolean)", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), int32(r))

	square, err := m.Call("N.Program::MakeSquare(System.Int32)", i32(6))
	require.NoError(t, err)
	typ, err := m.TypeOf(square)
	require.NoError(t, err)
	assert.Equal(t, "N.Square", typ.FullName())

	r, err = m.Call("N.Program::Area(System.Object)", square)
	require.NoError(t, err)
	assert.Equal(t, int32(36), int32(r))

	triangle, err := m.Call("N.Program::MakeTriangle()")
	require.NoError(t, err)
	_, err = m.Call("N.Program::Area(System.Object)", triangle)
	requireException(t, err, "System.InvalidCastException")

	r, err = m.Call("N.Program::Box(System.Int32)", i32(41))
	require.NoError(t, err)
	assert.Equal(t, int32(42), int32(r))

	_, err = m.Call("N.Program::BadUnbox(System.Int32)", i32(1))
	requireException(t, err, "System.InvalidCastException")
}

func TestArrays(t *testing.T) {
	m := machine(t, shapes)

	for i, want := range []int32{11, 22, 33} {
		r, err := m.Call("N.Program::Array(System.Int32)", i32(int32(i)))
		require.NoError(t, err)
		assert.Equal(t, want, int32(r))
	}

	_, err := m.Call("N.Program::Array(System.Int32)", i32(3))
	requireException(t, err, "System.IndexOutOfRangeException")

	_, err = m.Call("N.Program::Array(System.Int32)", i32(-1))
	requireException(t, err, "System.IndexOutOfRangeException")

	r, err := m.Call("N.Program::Length()")
	require.NoError(t, err)
	assert.Equal(t, int32(12), int32(r))
}

func TestStrings(t *testing.T) {
	m := machine(t, shapes)

	str, err := m.Call("N.Program::Hello()")
	require.NoError(t, err)
	s, err := m.ReadString(str)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	r, err := m.Call("N.Program::HelloLength()")
	require.NoError(t, err)
	assert.Equal(t, int32(5), int32(r))
}

func TestStaticInit(t *testing.T) {
	m := machine(t, shapes)

	r, err := m.Call("N.Program::Count()")
	require.NoError(t, err)
	assert.Equal(t, int32(7), int32(r))
}

func TestNullReference(t *testing.T) {
	m := machine(t, shapes)

	_, err := m.Call("N.Program::Null(N.Square)", 0)
	requireException(t, err, "System.NullReferenceException")
}

func TestNatives(t *testing.T) {
	m := machine(t, arith)

	m.Define("N.Arith::Add(System.Int32,System.Int32)", func(m *tacvm.Machine, args []uint64) (uint64, error) {
		return args[0] * args[1], nil
	})
	r, err := m.Call("N.Arith::Add(System.Int32,System.Int32)", 6, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), r)

	_, err = m.Call("N.Arith::Missing()")
	assert.Error(t, err)
}

func TestPointerSize(t *testing.T) {
	mod, err := load.LoadModule(strings.NewReader("target: {pointerSize: 4}\n"))
	require.NoError(t, err)
	_, err = tacvm.New(mod)
	assert.Error(t, err)
}
