package main

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	m := &cil.Method{
		Name:          "M",
		DeclaringType: &cil.Type{Namespace: "N", Name: "C", Element: cil.ElementClass},
		Sig:           &cil.Signature{},
	}
	failure := func(kind error, offset int) error {
		cause := errors.Mark(errors.New("add on operands of categories i4 and r8"), kind)
		return errors.Wrap(&method.Error{Method: m, Offset: offset, Opcode: code.OpAdd, Err: cause}, "lowering module")
	}

	err := failure(method.ErrUnsupported, 2)
	assert.Equal(t, "unsupported code in N.C::M() at IL_0002 (add)\n  "+err.Error(), describe(err))
	assert.Equal(t, 3, exitCode(err))

	err = failure(method.ErrVerification, -1)
	assert.Equal(t, "unverifiable code in N.C::M()\n  "+err.Error(), describe(err))
	assert.Equal(t, 2, exitCode(err))

	err = failure(method.ErrResolution, 0)
	assert.Equal(t, 4, exitCode(err))

	err = errors.New("expected exactly one argument")
	assert.Equal(t, "expected exactly one argument", describe(err))
	assert.Equal(t, 1, exitCode(err))
}
