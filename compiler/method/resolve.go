package method

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/env"
)

// Resolve fills in the resolved operands of the current record from its tokens. Records that are
// already resolved are left alone.
func (c *Context) Resolve(r env.Resolver) error {
	rec := c.record
	if rec.Resolved {
		return nil
	}

	gctx := c.GenericContext()
	if rec.Prefix&code.PrefixConstrained != 0 {
		t, err := r.ResolveType(rec.Constrained, gctx)
		if err != nil {
			return c.Resolution(err)
		}
		rec.ConstrainedType = t
	}

	var err error
	switch info := rec.Info(); info.Operand {
	case code.OperandMethod:
		rec.Method, err = r.ResolveMethod(rec.Token(), gctx)
	case code.OperandField:
		rec.Field, err = r.ResolveField(rec.Token(), gctx)
	case code.OperandType:
		rec.Type, err = r.ResolveType(rec.Token(), gctx)
	case code.OperandString:
		rec.Literal, err = r.ResolveString(rec.Token())
	case code.OperandSignature:
		rec.Sig, err = r.ResolveSignature(rec.Token(), gctx)
	case code.OperandToken:
		var member cil.Member
		member, err = r.ResolveMember(rec.Token(), gctx)
		switch member.Kind {
		case cil.MemberType:
			rec.Type = member.Type
		case cil.MemberMethod:
			rec.Method = member.Method
		case cil.MemberField:
			rec.Field = member.Field
		}
	}
	if err != nil {
		return c.Resolution(err)
	}

	rec.Resolved = true
	return nil
}
