package decompose_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/decompose"
	"github.com/pgavlin/cil2tac/compiler/lower"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/compiler/worklist"
	"github.com/pgavlin/cil2tac/env"
	"github.com/pgavlin/cil2tac/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

const types = `- namespace: N
  name: IShape
  kind: interface
- namespace: N
  name: Shape
  interfaces: [N.IShape]
- namespace: N
  name: Square
  base: N.Shape
- namespace: N
  name: Pair
  kind: struct
  fields:
  - {name: a, type: int16}
  - {name: b, type: int64}
`

// lowerWith lowers N.C::M and returns the environment it was lowered in.
func lowerWith(t *testing.T, sig, body string) (*lower.Result, *env.Env, error) {
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

	e := m.Env(worklist.New())
	r, err := lower.Method(meth, b, e, nil)
	return r, e, err
}

func lowerBody(t *testing.T, sig, body string) (*lower.Result, error) {
	r, _, err := lowerWith(t, sig, body)
	return r, err
}

type rewrite struct {
	name    string
	sig     string
	body    string
	records int
	want    []string
	absent  []string
}

var rewrites = []rewrite{
	{
		name:    "box",
		sig:     "object(int32)",
		body:    "ldarg.0\nbox int32\nret",
		records: 6,
		want:    []string{"Helpers::AllocObject(", "@Boxed<System.Int32>$typeinfo"},
	},
	{
		name:    "box reference",
		sig:     "object(string)",
		body:    "ldarg.0\nbox string\nret",
		records: 2,
		absent:  []string{"AllocObject"},
	},
	{
		name:    "unbox.any",
		sig:     "int32(object)",
		body:    "ldarg.0\nunbox.any int32\nret",
		records: 4,
		want:    []string{"Helpers::UnboxCheck("},
	},
	{
		name:    "castclass",
		sig:     "N.Square(object)",
		body:    "ldarg.0\ncastclass N.Square\nret",
		records: 5,
		want:    []string{"Helpers::IsInstanceOfClass(", "Helpers::ThrowInvalidCast()"},
	},
	{
		name:    "upcast",
		sig:     "N.Shape(N.Square)",
		body:    "ldarg.0\ncastclass N.Shape\nret",
		records: 3,
		absent:  []string{"IsInstanceOf"},
	},
	{
		name:    "isinst interface",
		sig:     "object(object)",
		body:    "ldarg.0\nisinst N.IShape\nret",
		records: 3,
		want:    []string{"Helpers::IsInstanceOfInterface("},
	},
	{
		name:    "isinst array",
		sig:     "object(object)",
		body:    "ldarg.0\nisinst int32[]\nret",
		records: 3,
		want:    []string{"Helpers::IsInstanceOfArray(", "@System.Int32[]$typeinfo"},
	},
	{
		name:    "ldelem",
		sig:     "int32(int32[], int32)",
		body:    "ldarg.0\nldarg.1\nldelem int32\nret",
		records: 4,
		want:    []string{"checkbounds"},
	},
	{
		name:    "sizeof",
		sig:     "int32()",
		body:    "sizeof N.Pair\nret",
		records: 2,
		want:    []string{"ret.i4 16"},
	},
	{
		name:    "object method on interface",
		sig:     "int32(N.IShape)",
		body:    "ldarg.0\ncallvirt System.Object::GetHashCode()\nret",
		records: 4,
		want:    []string{"; System.Object::GetHashCode()"},
		absent:  []string{"IsInstanceOf"},
	},
	{
		name:    "ldtoken",
		sig:     "void()",
		body:    "ldtoken N.Pair\npop\nret",
		records: 4,
		want:    []string{"@N.Pair$typeinfo"},
	},
	{
		name:    "stelem value type",
		sig:     "void(N.Pair[], int32, N.Pair)",
		body:    "ldarg.0\nldarg.1\nldarg.2\nstelem N.Pair\nret",
		records: 9,
		want:    []string{"checkbounds"},
	},
	{
		name:    "string",
		sig:     "string(char, int32)",
		body:    "ldarg.0\nldarg.1\nnewobj System.String::.ctor(char, int32)\nret",
		want:    []string{"Helpers::AllocString(", "@System.String::.ctor(System.Char,System.Int32)"},
		absent:  []string{"AllocObject"},
	},
}

func TestRewrites(t *testing.T) {
	for _, c := range rewrites {
		t.Run(c.name, func(t *testing.T) {
			r, err := lowerBody(t, c.sig, c.body)
			require.NoError(t, err)

			listing := r.Func.String()
			assert.NotZero(t, r.Stats.Decompositions)
			if c.records != 0 {
				assert.Equal(t, c.records, r.Stats.Records, listing)
			}
			for _, w := range c.want {
				assert.Contains(t, listing, w)
			}
			for _, a := range c.absent {
				assert.NotContains(t, listing, a)
			}
		})
	}
}

func TestConstrainedCall(t *testing.T) {
	r, err := lowerBody(t, "int32(N.Pair&)", "ldarg.0\nconstrained. N.Pair callvirt System.Object::GetHashCode()\nret")
	require.NoError(t, err)

	listing := r.Func.String()
	assert.Equal(t, 2, r.Stats.Decompositions)
	assert.Contains(t, listing, "@Boxed<N.Pair>$typeinfo")
	assert.Contains(t, listing, "; System.Object::GetHashCode()")
}

func TestUnsupportedStringConstructor(t *testing.T) {
	_, err := lowerBody(t, "string(char*)", "ldarg.0\nnewobj System.String::.ctor(char*)\nret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, method.ErrUnsupported))
}

func TestStringSequence(t *testing.T) {
	r, err := lowerBody(t, "string(char, int32)", "ldarg.0\nldarg.1\nnewobj System.String::.ctor(char, int32)\nret")
	require.NoError(t, err)

	want := []code.Opcode{
		code.OpLdarg0,
		code.OpLdarg1,
		code.OpDup,
		code.OpPseudoCallHelper,
		code.OpDup,
		code.OpPseudoRotate,
		code.OpPseudoRotate,
		code.OpCall,
		code.OpRet,
	}
	recs := r.Body.Records
	require.Len(t, recs, len(want), r.Body.String())
	for i, op := range want {
		assert.Equal(t, op, recs[i].Opcode, "record %d: %v", i, recs[i])
	}

	assert.Equal(t, cil.HelperAllocString, recs[3].Helper)
	assert.Equal(t, 3, recs[5].Depth())
	assert.Equal(t, 3, recs[6].Depth())
	assert.Equal(t, "System.String::.ctor(System.Char,System.Int32)", recs[7].Method.FullName())

	// char, length, string, string before the rotations and string, string, char, length after.
	assert.Equal(t, 4, recs[5].Stack.Depth())
	assert.Equal(t, 4, recs[7].Stack.Depth())
	assert.Equal(t, 1, recs[8].Stack.Depth())
}

func TestFixedPoint(t *testing.T) {
	cases := append([]rewrite(nil), rewrites...)
	cases = append(cases, rewrite{
		name: "constrained call",
		sig:  "int32(N.Pair&)",
		body: "ldarg.0\nconstrained. N.Pair callvirt System.Object::GetHashCode()\nret",
	})
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, e, err := lowerWith(t, c.sig, c.body)
			require.NoError(t, err)

			ctx := method.NewContext(r.Body, tac.NewFunction("fixed"), slog.Default(), true)
			for i, rec := range r.Body.Records {
				changed, err := decompose.Decompose(ctx, e, i)
				require.NoError(t, err, "record %d: %v", i, rec)
				assert.False(t, changed, "record %d: %v", i, rec)
			}
		})
	}
}

func TestStackEffects(t *testing.T) {
	for _, c := range rewrites {
		t.Run(c.name, func(t *testing.T) {
			r, err := lowerBody(t, c.sig, c.body)
			require.NoError(t, err)

			recs := r.Body.Records
			for i, rec := range recs {
				info := rec.Info()
				depth := rec.Stack.Depth()
				if !info.Shuffle {
					if info.Pop != code.VarArity {
						assert.Equal(t, info.Pop, rec.Pops, "record %d: %v", i, rec)
					}
					if info.Push != code.VarArity {
						assert.Len(t, rec.Pushed, info.Push, "record %d: %v", i, rec)
					}
					depth += len(rec.Pushed) - rec.Pops
				}

				if i+1 == len(recs) || !info.Flow.FallsThrough() {
					continue
				}
				assert.Equal(t, depth, recs[i+1].Stack.Depth(), "record %d: %v", i+1, recs[i+1])
			}
		})
	}
}
