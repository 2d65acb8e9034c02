package intrinsic

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		{Type: "System.Object", Name: ".ctor", Params: "()"}:         nop,
		{Type: "System.String", Name: "get_Length", Params: "()"}:    stringLength,
		{Type: "System.Array", Name: "get_Length", Params: "()"}:     arrayLength,
		{Type: "System.IntPtr", Name: "get_Size", Params: "()"}:      pointerSize,
		{Type: "System.Math", Name: "Abs", Params: "(System.Int32)"}: abs(cil.Int32, 31),
		{Type: "System.Math", Name: "Abs", Params: "(System.Int64)"}: abs(cil.Int64, 63),
	}
}

func nop(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
	return nil, nil
}

func stringLength(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
	l, err := b.Env().ObjectLayout(m.DeclaringType)
	if err != nil {
		return nil, err
	}
	t := b.NewVar()
	b.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.Int32, Result: t, A: tac.Deref(args[0], l.LengthOffset, 4)})
	return t, nil
}

func arrayLength(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
	l, err := b.Env().ObjectLayout(cil.ArrayOf(cil.Primitive(cil.ElementObject)))
	if err != nil {
		return nil, err
	}
	t := b.NewVar()
	b.Emit(&tac.Instr{Op: tac.OpMov, Cat: cil.Int32, Result: t, A: tac.Deref(args[0], l.LengthOffset, 4)})
	return t, nil
}

func pointerSize(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
	return tac.I32(int32(b.Env().PointerSize())), nil
}

// abs computes (x ^ s) - s where s is x shifted arithmetically by its width less one.
func abs(cat cil.Category, shift int32) Fragment {
	return func(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error) {
		s, x, r := b.NewVar(), b.NewVar(), b.NewVar()
		b.Emit(
			&tac.Instr{Op: tac.OpShr, Cat: cat, Result: s, A: args[0], B: tac.I32(shift)},
			&tac.Instr{Op: tac.OpXor, Cat: cat, Result: x, A: args[0], B: s},
			&tac.Instr{Op: tac.OpSub, Cat: cat, Result: r, A: x, B: s},
		)
		return r, nil
	}
}
