package encode

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

func (e *Encoder) br(label int) error {
	b, err := e.branchTo(label, e.rec.Stack)
	if err != nil {
		return err
	}
	e.Emit(&tac.Branch{Op: tac.OpBr, Target: b})
	return nil
}

func (e *Encoder) brcond(op code.Opcode, label int, v method.StackEntry) error {
	switch v.Category() {
	case cil.Int32, cil.Int64, cil.NativeInt, cil.Object, cil.ByRef:
	default:
		return e.ctx.Errorf(method.ErrVerification, "%v on a value of category %v", op, v.Category())
	}

	b, err := e.branchTo(label, e.rec.Stack.Pop(1))
	if err != nil {
		return err
	}
	tacOp := tac.OpBrTrue
	if op == code.OpBrfalse || op == code.OpBrfalseS {
		tacOp = tac.OpBrFalse
	}
	e.Emit(&tac.Branch{Op: tacOp, Cat: v.Category(), A: v.Var, Target: b})
	return nil
}

func (e *Encoder) bcompare(op code.Opcode, label int, a, b method.StackEntry) error {
	cmp, cat, va, vb, err := e.operands(op, a, b)
	if err != nil {
		return err
	}
	target, err := e.branchTo(label, e.rec.Stack.Pop(2))
	if err != nil {
		return err
	}
	e.Emit(&tac.Branch{Op: cmp, Cat: cat, A: va, B: vb, Target: target, Float: cat.IsFloat()})
	return nil
}

func (e *Encoder) switchOn(labels []int, v method.StackEntry) error {
	if c := v.Category(); c != cil.Int32 && c != cil.NativeInt {
		return e.ctx.Errorf(method.ErrVerification, "switch on a value of category %v", c)
	}
	stack := e.rec.Stack.Pop(1)
	targets := make([]int, len(labels))
	for i, l := range labels {
		b, err := e.branchTo(l, stack)
		if err != nil {
			return err
		}
		targets[i] = b
	}
	e.Emit(&tac.Switch{A: v.Var, Targets: targets})
	return nil
}

// leave runs the finally handlers of the protected regions it exits, innermost first, and then
// branches to its target with an empty stack.
func (e *Encoder) leave(label int) error {
	to := e.body.Index(label)
	for _, r := range e.body.ExitedFinally(e.index, to) {
		e.Emit(&tac.Branch{Op: tac.OpCallFinally, Target: e.blockOf(r.HandlerStart)})
	}
	b, err := e.branchTo(label, nil)
	if err != nil {
		return err
	}
	e.Emit(&tac.Branch{Op: tac.OpBr, Target: b})
	return nil
}

func (e *Encoder) ret(args []method.StackEntry) error {
	if e.rec.Stack.Depth() != len(args) {
		if err := e.ctx.Verify("ret with %d extra stack entries", e.rec.Stack.Depth()-len(args)); err != nil {
			return err
		}
	}

	sig := e.ctx.Method.Sig
	if !sig.ReturnsValue() {
		e.Emit(&tac.Return{Op: tac.OpRet, Cat: cil.Void})
		return nil
	}

	v, err := e.coerce(args[0], sig.Return)
	if err != nil {
		return err
	}
	size, err := e.valueSize(sig.Return)
	if err != nil {
		return err
	}
	if size != 0 {
		v = tac.Addr(v, 0)
	}
	e.Emit(&tac.Return{Op: tac.OpRet, Cat: cil.CategoryOf(sig.Return), Value: v, Size: size})
	return nil
}

func (e *Encoder) throw(v method.StackEntry) error {
	if v.Category() != cil.Object {
		return e.ctx.Errorf(method.ErrVerification, "throw of a value of category %v", v.Category())
	}
	_, err := e.helper(cil.HelperThrow, v.Var)
	return err
}
