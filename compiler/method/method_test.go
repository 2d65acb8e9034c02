package method

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	int32Type = &cil.Type{Namespace: "System", Name: "Int32", Element: cil.ElementI4}
	testType  = &cil.Type{Namespace: "N", Name: "C", Element: cil.ElementClass}
	testM     = &cil.Method{Name: "M", DeclaringType: testType, Sig: &cil.Signature{}, Flags: cil.MethodStatic}
)

func entries(n int) Stack {
	var s Stack
	for i := 0; i < n; i++ {
		s = s.Push(StackEntry{Type: int32Type, Var: tac.Logical{ID: i}})
	}
	return s
}

func ids(s Stack) []int {
	out := make([]int, len(s))
	for i, e := range s {
		out[i] = e.Var.(tac.Logical).ID
	}
	return out
}

func TestStack(t *testing.T) {
	s := entries(4)
	assert.Equal(t, 4, s.Depth())
	assert.Equal(t, tac.Logical{ID: 3}, s.Peek(0).Var)
	assert.Equal(t, tac.Logical{ID: 0}, s.Peek(3).Var)
	assert.Equal(t, []int{0, 1}, ids(s.Pop(2)))
	assert.Equal(t, []int{0, 2, 3, 1}, ids(s.Rotate(2)))
	assert.Equal(t, []int{0, 3, 1, 2}, ids(s.MoveTo(2)))
	assert.Equal(t, []int{0, 1, 2, 3}, ids(s.Rotate(0)))
	assert.Equal(t, []int{3, 0, 1, 2}, ids(s.MoveTo(3)))

	// Operations never alias their input.
	popped := s.Pop(1)
	pushed := popped.Push(StackEntry{Type: int32Type, Var: tac.Logical{ID: 9}})
	assert.Equal(t, tac.Logical{ID: 3}, s.Peek(0).Var)
	assert.Equal(t, tac.Logical{ID: 9}, pushed.Peek(0).Var)

	// MoveTo(n) after Rotate(n-1) copies an operand: the idiom used to duplicate deep operands.
	copied := s.Rotate(3)
	copied = copied.Push(copied.Peek(0))
	copied = copied.MoveTo(4)
	assert.Equal(t, []int{0, 1, 2, 3, 0}, ids(copied))
}

func testBody() *Body {
	instrs := []code.Instruction{
		code.Ldarg(0),              // 0
		code.Brfalse(3),            // 1
		code.Box(0x02000001),       // 2
		code.Leave(5),              // 3
		code.Op(code.OpEndfinally), // 4
		code.Ret(),                 // 5
	}
	decoded := code.Body{Instructions: instrs, Offsets: []int{0, 1, 6, 11, 16, 17}, Size: 18}
	regions := []Region{{Kind: RegionFinally, TryStart: 0, TryEnd: 4, HandlerStart: 4, HandlerEnd: 5}}
	return NewBody(testM, decoded, regions)
}

func TestBodyReplace(t *testing.T) {
	b := testBody()

	// Replace the box with a two-record sequence.
	b.Replace(2, NewRecord(code.Dup()), NewRecord(code.Pop()))
	require.Len(t, b.Records, 7)
	assert.Equal(t, 2, b.Records[2].ID)
	assert.Equal(t, 6, b.Records[3].ID)
	assert.Equal(t, 6, b.Records[3].Offset)
	assert.Equal(t, code.OpDup, b.Record(2).Opcode)
	assert.Equal(t, 4, b.Index(3))

	// Delete the leading ldarg; its ID now stands for the brfalse.
	b.Replace(0)
	assert.Equal(t, 1, b.Canonical(0))
	assert.Equal(t, code.OpBrfalse, b.Record(0).Opcode)
	assert.Equal(t, 0, b.Index(0))
	assert.Equal(t, 6, b.Index(-1))

	targets := b.Targets()
	assert.True(t, targets.Test(1))  // first record
	assert.True(t, targets.Test(2))  // follows brfalse
	assert.True(t, targets.Test(3))  // brfalse target
	assert.True(t, targets.Test(4))  // handler
	assert.True(t, targets.Test(5))  // leave target
	assert.False(t, targets.Test(6)) // inside the replacement
}

func TestExitedFinally(t *testing.T) {
	b := testBody()
	exited := b.ExitedFinally(b.Index(3), b.Index(5))
	require.Len(t, exited, 1)
	assert.Equal(t, RegionFinally, exited[0].Kind)
	assert.Empty(t, b.ExitedFinally(b.Index(1), b.Index(3)))

	region, ok := b.HandlerOf(4)
	require.True(t, ok)
	assert.Equal(t, 5, region.HandlerEnd)
	assert.True(t, b.InHandler(region, b.Index(4)))
	assert.False(t, b.InHandler(region, b.Index(5)))
}

func TestVerifyPolicy(t *testing.T) {
	b := testBody()

	strict := NewContext(b, tac.NewFunction("M"), nil, true)
	strict.At(b.Records[2])
	err := strict.Verify("expected %v", "&T")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerification))
	assert.False(t, errors.Is(err, ErrUnsupported))

	var lowerErr *Error
	require.True(t, errors.As(err, &lowerErr))
	assert.Equal(t, 6, lowerErr.Offset)
	assert.Equal(t, code.OpBox, lowerErr.Opcode)
	assert.Same(t, testM, lowerErr.Method)
	assert.Contains(t, err.Error(), "IL_0006: box: expected &T")

	permissive := NewContext(b, tac.NewFunction("M"), nil, false)
	permissive.At(b.Records[2])
	require.NoError(t, permissive.Verify("expected %v", "&T"))
	require.Len(t, permissive.Warnings, 1)
	assert.Equal(t, "expected &T", permissive.Warnings[0].Msg)
	assert.Equal(t, 6, permissive.Warnings[0].Offset)
}

func TestErrorKinds(t *testing.T) {
	ctx := NewContext(testBody(), tac.NewFunction("M"), nil, true)
	assert.True(t, errors.Is(ctx.Unsupported("arglist"), ErrUnsupported))

	err := ctx.Resolution(errors.New("no such type"))
	assert.True(t, errors.Is(err, ErrResolution))
	assert.Same(t, err, ctx.Resolution(err))
}
