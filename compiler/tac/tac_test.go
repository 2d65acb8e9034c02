package tac

import (
	"testing"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarEquality(t *testing.T) {
	field := Deref(Addr(Local{Index: 1}, 0), 8, 4)
	assert.Equal(t, ContentsOf{Of: AddressOf{Of: Local{Index: 1}}, Offset: 8, Width: 4}, field)
	assert.True(t, field == Deref(Addr(Local{Index: 1}, 0), 8, 4))
	assert.False(t, field == Deref(Addr(Local{Index: 1}, 0), 8, 8))

	live := map[Var]int{}
	live[field]++
	live[Deref(Addr(Local{Index: 1}, 0), 8, 4)]++
	live[Logical{ID: 3}]++
	live[I32(7)]++
	live[I32(7)]++
	assert.Len(t, live, 3)
	assert.Equal(t, 2, live[field])
	assert.Equal(t, 2, live[I32(7)])

	assert.NotEqual(t, Var(I32(0)), Var(Native(0)))
	assert.NotEqual(t, Var(Arg{Index: 0}), Var(Local{Index: 0}))
}

func TestAddrComposition(t *testing.T) {
	assert.Panics(t, func() { Addr(Deref(Logical{ID: 0}, 0, 4), 0) })
	assert.Panics(t, func() { Addr(Addr(Local{Index: 0}, 0), 4) })
	assert.Panics(t, func() { Addr(I32(1), 0) })

	v, ok := Offset(Addr(Local{Index: 2}, 4), 8)
	require.True(t, ok)
	assert.Equal(t, AddressOf{Of: Local{Index: 2}, Offset: 12}, v)

	_, ok = Offset(Logical{ID: 1}, 8)
	assert.False(t, ok)

	assert.True(t, IsMemory(Deref(Symbol{Name: "statics"}, 0, 8)))
	assert.False(t, IsMemory(Addr(Arg{Index: 0}, 0)))
}

func TestConsts(t *testing.T) {
	assert.Equal(t, int64(-1), I32(-1).Int())
	assert.Equal(t, int64(-1), I64(-1).Int())
	assert.Equal(t, 1.5, F32(1.5).Float())
	assert.True(t, Null().IsZero())

	assert.Equal(t, "-1", I32(-1).String())
	assert.Equal(t, "5:i8", I64(5).String())
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "2.5:r8", F64(2.5).String())
}

func TestVarStrings(t *testing.T) {
	assert.Equal(t, "[t1+8]:4", Deref(Logical{ID: 1}, 8, 4).String())
	assert.Equal(t, "[&l0-4]:2", Deref(Addr(Local{Index: 0}, -4), 0, 2).String())
	assert.Equal(t, "@Foo_statics", Symbol{Name: "Foo_statics"}.String())
	assert.Equal(t, "a2", Arg{Index: 2}.String())
}

func TestNodes(t *testing.T) {
	add := &Instr{Op: OpAdd, Cat: cil.Int32, Result: Logical{ID: 2}, A: Logical{ID: 0}, B: I32(1)}
	assert.Equal(t, "t2 = add.i4 t0, 1", add.String())

	store := &Instr{Op: OpMov, Cat: cil.Int64, Result: Deref(Arg{Index: 0}, 16, 8), A: Logical{ID: 3}}
	assert.Equal(t, "[a0+16]:8 = mov.i8 t3", store.String())

	br := &Branch{Op: OpCltUn, Cat: cil.Float64, A: Logical{ID: 0}, B: Logical{ID: 1}, Target: 4, Float: true}
	assert.Equal(t, "clt.un.r8.f B4, t0, t1", br.String())
	assert.True(t, br.FallsThrough())
	assert.False(t, (&Branch{Op: OpBr, Target: 1}).FallsThrough())
	assert.Equal(t, "br B1", (&Branch{Op: OpBr, Target: 1}).String())

	call := &Call{Op: OpCall, Cat: cil.Void, Target: Symbol{Name: "f"}, Args: []Var{Arg{Index: 0}}, NoReturn: true}
	assert.Equal(t, "call.void @f(a0) noreturn", call.String())
	assert.False(t, call.FallsThrough())

	assert.False(t, (&Return{Op: OpRet}).FallsThrough())
	assert.Equal(t, "switch t0, (B1, B2)", (&Switch{A: Logical{ID: 0}, Targets: []int{1, 2}}).String())
}

func TestPhi(t *testing.T) {
	phi := &Phi{Result: Logical{ID: 5}, Cat: cil.Int32}
	phi.AddEdge(0, Logical{ID: 1})
	phi.AddEdge(2, Logical{ID: 3})
	phi.AddEdge(0, Logical{ID: 4})
	assert.Equal(t, []PhiEdge{{Block: 0, Var: Logical{ID: 4}}, {Block: 2, Var: Logical{ID: 3}}}, phi.Edges)
	assert.Equal(t, "t5 = phi.i4 [B0: t4, B2: t3]", phi.String())
}

func TestFunction(t *testing.T) {
	f := NewFunction("M")
	assert.Equal(t, Logical{ID: 0}, f.NewVar())
	assert.Equal(t, Logical{ID: 1}, f.NewVar())

	b0, b1 := f.NewBlock(), f.NewBlock()
	assert.Equal(t, 0, b0.ID)
	assert.Equal(t, 1, b1.ID)

	f.Use(Deref(Addr(Local{Index: 3}, 0), 0, 4))
	f.Use(Arg{Index: 1})
	assert.True(t, f.UsedLocals.Test(3))
	assert.True(t, f.UsedArgs.Test(1))
	assert.False(t, f.UsedArgs.Test(0))

	b1.StaticInit.Add(&cil.Type{Namespace: "N", Name: "C"})
	f.Append(&Label{Block: 0}, &Branch{Op: OpBr, Target: 1}, &Label{Block: 1}, &Return{Op: OpRet})
	assert.Equal(t, "M:\nB0:\n\tbr B1\nB1: ; cctor N.C\n\tret\n", f.String())
}
