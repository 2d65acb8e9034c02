// Package decompose rewrites instructions whose semantics depend on runtime type information into
// canonical sequences of simpler instructions.
package decompose

import (
	"context"
	"strings"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/env"
	"golang.org/x/exp/slog"
)

type decomposer struct {
	ctx *method.Context
	env *env.Env
	rec *method.Record
}

// Decompose examines the record at position i of the context's body and, if a rule applies,
// replaces it in place with its canonical sequence. It returns true if the stream changed, in
// which case the caller must re-scan from i. The record's operands must be resolved and its
// Stack must hold the PseudoStack before the instruction.
func Decompose(ctx *method.Context, e *env.Env, i int) (bool, error) {
	rec := ctx.Body.Records[i]
	ctx.At(rec)

	d := decomposer{ctx: ctx, env: e, rec: rec}
	seq, err := d.rewrite()
	if err != nil || seq == nil {
		return false, err
	}

	if ctx.Logger.Enabled(context.Background(), slog.LevelDebug) {
		into := make([]string, len(seq))
		for j, r := range seq {
			into[j] = r.String()
		}
		ctx.Logger.Debug("decomposed", "offset", rec.Offset, "opcode", rec.Opcode.String(), "into", strings.Join(into, "; "))
	}

	ctx.Body.Replace(i, seq...)
	return true, nil
}

// rewrite returns the replacement sequence for the current record, an empty non-nil sequence to
// delete it, or nil if no rule applies.
func (d *decomposer) rewrite() ([]*method.Record, error) {
	switch d.rec.Opcode {
	case code.OpNewobj:
		if d.isString(d.rec.Method.DeclaringType) && d.rec.Method.IsConstructor() {
			return d.newString()
		}
	case code.OpCall, code.OpCallvirt:
		if d.rec.Prefix&code.PrefixConstrained != 0 {
			return d.constrainedCall()
		}
		return d.objectMethodCall()
	case code.OpBox:
		return d.box()
	case code.OpLdtoken:
		return d.ldtoken()
	case code.OpCastclass:
		return d.castclass()
	case code.OpIsinst:
		return d.isinst()
	case code.OpUnboxAny:
		return d.unboxAny()
	case code.OpLdelem:
		return d.ldelem()
	case code.OpStelem:
		return d.stelem()
	case code.OpSizeof:
		return d.sizeof()
	}
	return nil, nil
}

func (d *decomposer) wellKnown(w cil.WellKnown) (*cil.Type, error) {
	t, err := d.env.WellKnown(w)
	if err != nil {
		return nil, d.ctx.Resolution(err)
	}
	return t, nil
}

func (d *decomposer) isString(t *cil.Type) bool {
	if t == nil {
		return false
	}
	if t.Element == cil.ElementString {
		return true
	}
	str, err := d.env.WellKnown(cil.KnownString)
	return err == nil && t == str
}

func (d *decomposer) isObject(t *cil.Type) bool {
	if t == nil {
		return false
	}
	if t.Element == cil.ElementObject {
		return true
	}
	obj, err := d.env.WellKnown(cil.KnownObject)
	return err == nil && t == obj
}

// record returns a synthesized record.
func record(instr code.Instruction) *method.Record {
	return method.NewRecord(instr)
}

// typed returns a synthesized record with a type operand.
func typed(op code.Opcode, t *cil.Type) *method.Record {
	r := method.NewRecord(code.Op(op))
	r.Type = t
	return r
}

// helper returns a synthesized call to a runtime helper.
func (d *decomposer) helper(h cil.Helper) (*method.Record, error) {
	m, err := d.env.Helper(h)
	if err != nil {
		return nil, d.ctx.Resolution(err)
	}
	r := method.NewRecord(code.Op(code.OpPseudoCallHelper))
	r.Helper, r.Method = h, m
	return r, nil
}

// clone returns a copy of the current record with the given prefixes removed.
func (d *decomposer) clone(clear code.Prefix) *method.Record {
	r := *d.rec
	r.Prefix &^= clear
	if clear&code.PrefixConstrained != 0 {
		r.Constrained, r.ConstrainedType = 0, nil
	}
	r.Stack, r.Nodes, r.Pushed = nil, nil, nil
	return &r
}

// atDepth wraps a sequence that operates on the top of the stack so that it operates on the
// entry at the given depth instead.
func atDepth(depth int, seq ...*method.Record) []*method.Record {
	if depth == 0 {
		return seq
	}
	out := []*method.Record{record(code.Rotate(depth))}
	out = append(out, seq...)
	return append(out, record(code.MoveTo(depth)))
}
