package load

import (
	"strings"
	"testing"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapes = `
target:
  pointerSize: 4
types:
- namespace: N
  name: IShape
  kind: interface
  methods:
  - {name: Area, sig: instance float64()}
- namespace: N
  name: Shape
  kind: class
  flags: [abstract]
  interfaces: [N.IShape]
  methods:
  - {name: Area, sig: instance float64(), flags: [virtual, abstract, newslot]}
- namespace: N
  name: Square
  base: N.Shape
  fields:
  - {name: side, type: float64}
  methods:
  - name: Area
    sig: instance float64()
    flags: [virtual]
    body: |
      ldarg.0
      ldfld N.Square::side
      dup
      mul
      ret
  - name: Safe
    sig: int32(N.Shape)
    locals: [int32]
    body: |
      ldc.i4.0
      stloc.0
      try:
      ldarg.0
      callvirt N.Shape::Area()
      pop
      leave.s done
      handler:
      pop
      ldc.i4.1
      stloc.0
      leave.s done
      done:
      ldloc.0
      ret
    regions:
    - {kind: catch, try: [try, handler], handler: [handler, done], catch: object}
- namespace: N
  name: Color
  kind: enum
  underlying: uint8
`

func TestLoadModule(t *testing.T) {
	m, err := LoadModule(strings.NewReader(shapes))
	require.NoError(t, err)
	assert.Equal(t, 4, m.PointerSize())

	shape, err := m.LookupType("N.Shape")
	require.NoError(t, err)
	iface, err := m.LookupType("N.IShape")
	require.NoError(t, err)
	square, err := m.LookupType("N.Square")
	require.NoError(t, err)

	assert.True(t, iface.IsInterface())
	assert.True(t, iface.Methods[0].IsAbstract())
	assert.Same(t, shape, square.Base)
	assert.True(t, square.Implements(iface))

	area := square.Methods[0]
	assert.Same(t, shape.Methods[0], area.Overrides)
	assert.Same(t, shape.Methods[0], area.Root())

	safe := square.Methods[1]
	assert.True(t, safe.IsStatic())
	require.Len(t, safe.Locals, 1)

	body, ok := m.Body(safe)
	require.True(t, ok)
	decoded, err := code.Decode(body.Code)
	require.NoError(t, err)
	require.Len(t, decoded.Instructions, 12)
	assert.Equal(t, code.OpLeaveS, decoded.Instructions[5].Opcode)
	assert.Equal(t, 10, decoded.Instructions[5].Label())

	require.Len(t, body.Regions, 1)
	r := body.Regions[0]
	assert.Equal(t, method.RegionCatch, r.Kind)
	assert.Equal(t, []int{2, 6, 6, 10}, []int{r.TryStart, r.TryEnd, r.HandlerStart, r.HandlerEnd})
	assert.Equal(t, "System.Object", r.CatchType.FullName())

	_, ok = m.Body(shape.Methods[0])
	assert.False(t, ok)

	color, err := m.LookupType("N.Color")
	require.NoError(t, err)
	assert.True(t, color.IsEnum())
	assert.Equal(t, cil.ElementU1, color.Elem.Element)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field": `
types:
- name: T
  colour: red
`,
		"unknown kind": `
types:
- name: T
  kind: union
`,
		"missing type": `
types:
- name: T
  fields:
  - {name: f, type: U}
`,
		"missing body": `
types:
- name: T
  methods:
  - {name: M, sig: void()}
`,
		"undefined label": `
types:
- name: T
  methods:
  - name: M
    sig: void()
    body: |
      ret
    regions:
    - {kind: finally, try: [a, b], handler: [b, c]}
`,
		"duplicate type": `
types:
- name: T
- name: T
`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadModule(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}
