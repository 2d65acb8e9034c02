package intrinsic

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builder struct {
	vars  int
	nodes []tac.Node
}

func (b *builder) NewVar() tac.Logical {
	v := tac.Logical{ID: b.vars}
	b.vars++
	return v
}

func (b *builder) Emit(nodes ...tac.Node) {
	b.nodes = append(b.nodes, nodes...)
}

func (b *builder) Env() *env.Env {
	return nil
}

func (b *builder) listing() []string {
	lines := make([]string, len(b.nodes))
	for i, n := range b.nodes {
		lines[i] = n.String()
	}
	return lines
}

var runtime = &cil.Type{Namespace: "N", Name: "Runtime", Element: cil.ElementClass}

func staticMethod(name string, flags cil.MethodFlags, ret *cil.Type, params ...*cil.Type) *cil.Method {
	return &cil.Method{
		Name:          name,
		DeclaringType: runtime,
		Sig:           &cil.Signature{Params: params, Return: ret},
		Flags:         cil.MethodStatic | flags,
	}
}

func TestKeyOf(t *testing.T) {
	m := staticMethod("Max", 0, cil.Primitive(cil.ElementI4), cil.Primitive(cil.ElementI4), cil.Primitive(cil.ElementI8))
	k := KeyOf(m)
	assert.Equal(t, Key{Type: "N.Runtime", Name: "Max", Params: "(System.Int32,System.Int64)"}, k)
	assert.Equal(t, "N.Runtime::Max(System.Int32,System.Int64)", k.String())
}

func TestAbs(t *testing.T) {
	i4 := cil.Primitive(cil.ElementI4)
	abs := &cil.Method{
		Name:          "Abs",
		DeclaringType: &cil.Type{Namespace: "System", Name: "Math", Element: cil.ElementClass},
		Sig:           &cil.Signature{Params: []*cil.Type{i4}, Return: i4},
		Flags:         cil.MethodStatic | cil.MethodInternalCall,
	}

	var b builder
	gate := NewGate(nil, true)
	require.True(t, gate.Provides(abs))

	handled, result, err := gate.Substitute(&b, abs, []tac.Var{tac.Arg{Index: 0}})
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, tac.Logical{ID: 2}, result)
	assert.Equal(t, []string{
		"t0 = shr.i4 a0, 31",
		"t1 = xor.i4 a0, t0",
		"t2 = sub.i4 t1, t0",
	}, b.listing())
}

func TestGate(t *testing.T) {
	i4 := cil.Primitive(cil.ElementI4)
	ticks := staticMethod("Ticks", cil.MethodInternalCall, i4)
	plain := staticMethod("Plain", 0, i4)
	seven := staticMethod("Seven", cil.MethodInternalCall, i4)

	catalog := Catalog{
		KeyOf(seven): func(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
			return tac.I32(7), nil
		},
	}

	var b builder
	lenient, strict := NewGate(catalog, false), NewGate(catalog, true)

	handled, result, err := lenient.Substitute(&b, seven, nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, tac.I32(7), result)

	handled, _, err = lenient.Substitute(&b, ticks, nil)
	assert.NoError(t, err)
	assert.False(t, handled)

	_, _, err = strict.Substitute(&b, ticks, nil)
	assert.True(t, errors.Is(err, ErrNoIntrinsic))
	assert.Contains(t, err.Error(), "N.Runtime::Ticks()")

	handled, _, err = strict.Substitute(&b, plain, nil)
	assert.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, b.nodes)
}

func TestFragmentErrors(t *testing.T) {
	i4 := cil.Primitive(cil.ElementI4)
	broken := staticMethod("Broken", cil.MethodInternalCall, i4)
	gate := NewGate(Catalog{
		KeyOf(broken): func(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
			return nil, errors.New("boom")
		},
	}, false)

	_, _, err := gate.Substitute(&builder{}, broken, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expanding N.Runtime::Broken()")
	assert.False(t, errors.Is(err, ErrNoIntrinsic))
}
