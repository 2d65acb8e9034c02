package encode_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/compiler/lower"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/worklist"
	"github.com/pgavlin/cil2tac/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listing lowers N.C::M from a module holding the given types and returns the body lines after
// the function name, without indentation.
func listing(t *testing.T, types, sig, body string) ([]string, error) {
	var src strings.Builder
	fmt.Fprintf(&src, "target: {pointerSize: 8}\ntypes:\n%s- namespace: N\n  name: C\n  methods:\n  - name: M\n    sig: %s\n    body: |\n", types, sig)
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		fmt.Fprintf(&src, "      %s\n", strings.TrimSpace(line))
	}

	m, err := load.LoadModule(strings.NewReader(src.String()))
	require.NoError(t, err)
	meth, err := m.LookupMethod("N.C::M")
	require.NoError(t, err)
	b, ok := m.Body(meth)
	require.True(t, ok)

	r, err := lower.Method(meth, b, m.Env(worklist.New()), nil)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(r.Func.String()), "\n")[1:]
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines, nil
}

func TestConversions(t *testing.T) {
	cases := []struct {
		sig  string
		op   string
		want []string
	}{
		{"int8(int32)", "conv.i1", []string{"t1 = sext.i4 t0 #1"}},
		{"uint16(int32)", "conv.u2", []string{"t1 = zext.i4 t0 #2"}},
		{"int64(int32)", "conv.i8", []string{"t1 = sext.i8 t0 #4"}},
		{"uint64(int32)", "conv.u8", []string{"t1 = zext.i8 t0 #4"}},
		{"uint32(int64)", "conv.u4", []string{"t1 = trunc.i4 t0 #4"}},
		{"nint(int64)", "conv.i", []string{"t1 = mov.i t0"}},
		{"float64(int32)", "conv.r8", []string{"t1 = itof.r8 t0 #4"}},
		{"float64(uint64)", "conv.r.un", []string{"t1 = utof.r8 t0 #8"}},
		{"float32(float64)", "conv.r4", []string{"t1 = ftrunc.r4 t0 #8"}},
		{"int32(float64)", "conv.i4", []string{"t1 = ftoi.i4 t0 #4"}},
		{"uint64(float64)", "conv.u8", []string{"t1 = ftou.i8 t0 #8"}},
		{"uint8(int32)", "conv.ovf.u1", []string{"checkconv.u.i4 t0 #1", "t1 = zext.i4 t0 #1"}},
		{"int8(uint32)", "conv.ovf.i1.un", []string{"checkconv.i.un.i4 t0 #1", "t1 = sext.i4 t0 #1"}},
		{"int32(float64)", "conv.ovf.i4", []string{"checkconv.i.r8 t0 #4", "t1 = ftoi.i4 t0 #4"}},
	}
	for _, c := range cases {
		t.Run(c.op+" "+c.sig, func(t *testing.T) {
			lines, err := listing(t, "", c.sig, "ldarg.0\n"+c.op+"\nret")
			require.NoError(t, err)
			require.Len(t, lines, 3+len(c.want))
			assert.Equal(t, c.want, lines[2:2+len(c.want)])
		})
	}
}

func TestInt32ToInt32IsFree(t *testing.T) {
	lines, err := listing(t, "", "int32(int32)", "ldarg.0\nconv.i4\nret")
	require.NoError(t, err)
	assert.Equal(t, []string{"B0:", "t0 = mov.i4 a0", "ret.i4 t0"}, lines)
}

func TestIndirectLoads(t *testing.T) {
	lines, err := listing(t, "", "int32(int8&)", "ldarg.0\nldind.i1\nret")
	require.NoError(t, err)
	assert.Equal(t, "t1 = sext.i4 [t0]:1 #1", lines[2])

	lines, err = listing(t, "", "int32(uint8&)", "ldarg.0\nldind.u1\nret")
	require.NoError(t, err)
	assert.Equal(t, "t1 = mov.i4 [t0]:1", lines[2])

	lines, err = listing(t, "", "void(int16&, int32)", "ldarg.0\nldarg.1\nstind.i2\nret")
	require.NoError(t, err)
	assert.Equal(t, "[t0]:2 = mov.i4 t1", lines[3])
}

const point = `- namespace: N
  name: P
  fields:
  - {name: x, type: int16}
  - {name: y, type: int64}
`

func TestFields(t *testing.T) {
	lines, err := listing(t, point, "int32(N.P)", "ldarg.0\nldfld N.P::x\nret")
	require.NoError(t, err)
	assert.Equal(t, "t1 = sext.i4 [t0+8]:2 #2", lines[2])

	lines, err = listing(t, point, "int64(N.P)", "ldarg.0\nldfld N.P::y\nret")
	require.NoError(t, err)
	assert.Equal(t, "t1 = mov.i8 [t0+16]:8", lines[2])
}

func TestArithmetic(t *testing.T) {
	lines, err := listing(t, "", "int64(int64, int32)", "ldarg.0\nldarg.1\nconv.i8\nsub.ovf.un\nret")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"B0:",
		"t0 = mov.i8 a0",
		"t1 = mov.i4 a1",
		"t2 = sext.i8 t1 #4",
		"t3 = sub.i8 t0, t2",
		"checkovf.un.i8 t3",
		"ret.i8 t3",
	}, lines)

	lines, err = listing(t, "", "int32(float64, float64)", "ldarg.0\nldarg.1\nclt.un\nret")
	require.NoError(t, err)
	assert.Equal(t, "t2 = clt.un.r8 t0, t1", lines[3])

	lines, err = listing(t, "", "int32(int32)", "ldarg.0\nldc.i4.3\nshl\nret")
	require.NoError(t, err)
	assert.Equal(t, "t1 = shl.i4 t0, 3", lines[2])
}

const shapes = `- namespace: N
  name: IShape
  kind: interface
  methods:
  - {name: Sides, sig: instance int32()}
- namespace: N
  name: Shape
  flags: [abstract]
  interfaces: [N.IShape]
  methods:
  - {name: Sides, sig: instance int32(), flags: [virtual, abstract, newslot]}
  - name: Final
    sig: instance int32()
    flags: [virtual, final, newslot]
    body: |
      ldc.i4.0
      ret
`

func TestDispatch(t *testing.T) {
	lines, err := listing(t, shapes, "int32(N.Shape)", "ldarg.0\ncallvirt N.Shape::Sides()\nret")
	require.NoError(t, err)
	require.Len(t, lines, 6)
	assert.Equal(t, "t1 = mov.i [t0]:8", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "t2 = mov.i [t1+"), lines[3])
	assert.Equal(t, "t3 = calli.i4 t2(t0) ; N.Shape::Sides()", lines[4])

	lines, err = listing(t, shapes, "int32(N.Shape)", "ldarg.0\ncallvirt N.Shape::Final()\nret")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"B0:",
		"t0 = mov.o a0",
		"checknull.o t0",
		"t1 = call.i4 @N.Shape::Final()(t0)",
		"ret.i4 t1",
	}, lines)
}

func TestInterfaceDispatch(t *testing.T) {
	lines, err := listing(t, shapes, "int32(N.IShape)", "ldarg.0\ncallvirt N.IShape::Sides()\nret")
	require.NoError(t, err)

	var labels []string
	for _, l := range lines {
		if strings.HasSuffix(l, ":") {
			labels = append(labels, l)
		}
	}
	assert.Equal(t, []string{"B0:", "B1:", "B2:", "B3:", "B4:", "B5:"}, labels)
	assert.Contains(t, lines, "t3 = phi.i [B0: t2, B3: t5]")
	assert.Contains(t, lines, "ceq.i B5, [t4]:8, @N.IShape$typeinfo")
	assert.Contains(t, lines, "t6 = mov.i [t4+16]:8")
	assert.Contains(t, lines, "t8 = add.o t0, t7")
	assert.Contains(t, lines, "t9 = calli.i4 t6(t8) ; N.IShape::Sides()")
}

func TestErrors(t *testing.T) {
	_, err := listing(t, "", "int32(int32, float64)", "ldarg.0\nldarg.1\nadd\nret")
	assert.True(t, errors.Is(err, method.ErrUnsupported))

	_, err = listing(t, "", "int32(int32, float64)", "ldarg.0\nldarg.1\nclt\nret")
	assert.True(t, errors.Is(err, method.ErrUnsupported))

	_, err = listing(t, "", "void(int32&, nint)", "ldarg.0\nldarg.1\nbgt.s next\nnext: ret")
	assert.True(t, errors.Is(err, method.ErrUnsupported))

	_, err = listing(t, "", "void()", "ldc.i4.0\nldc.i4.0\nshl\nbrtrue.s next\nnext: ret")
	assert.NoError(t, err)

	_, err = listing(t, "", "void(float64)", "ldarg.0\nbrtrue.s next\nnext: ret")
	assert.True(t, errors.Is(err, method.ErrVerification))

	_, err = listing(t, "", "int32()", "ldc.i4.0")
	assert.True(t, errors.Is(err, method.ErrVerification))

	_, err = listing(t, point, "int32(N.P)", "ldarg.0\nldsfld N.P::x\nret")
	assert.True(t, errors.Is(err, method.ErrVerification))
}

const delegates = shapes + `- namespace: N
  name: Fn
  kind: delegate
  methods:
  - {name: .ctor, sig: "instance void(object, nint)", flags: [internalcall]}
- namespace: N
  name: Util
  methods:
  - name: Three
    sig: int32()
    body: |
      ldc.i4.3
      ret
`

func TestDelegateReceiverAdjustment(t *testing.T) {
	lines, err := listing(t, delegates, "N.Fn(N.IShape)", "ldarg.0\ndup\nldvirtftn N.IShape::Sides()\nnewobj N.Fn::.ctor(object, nint)\nret")
	require.NoError(t, err)

	var adjusted, ctor string
	for _, l := range lines {
		switch {
		case strings.Contains(l, " = add.o "):
			require.Empty(t, adjusted, "more than one receiver adjustment")
			adjusted = strings.Fields(l)[0]
		case strings.Contains(l, "N.Fn::.ctor("):
			ctor = l
		}
	}
	require.NotEmpty(t, adjusted, strings.Join(lines, "\n"))
	require.NotEmpty(t, ctor, strings.Join(lines, "\n"))
	assert.Contains(t, ctor, ", "+adjusted+", ")

	lines, err = listing(t, delegates, "N.Fn()", "ldnull\nldftn N.Util::Three()\nnewobj N.Fn::.ctor(object, nint)\nret")
	require.NoError(t, err)
	for _, l := range lines {
		assert.NotContains(t, l, "add.o")
	}
}
