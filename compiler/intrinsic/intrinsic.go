// Package intrinsic substitutes inline TAC fragments for calls to recognized runtime-provided
// methods.
package intrinsic

import (
	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/env"
)

// ErrNoIntrinsic is returned in strict mode for a runtime-provided method without a catalog
// entry.
var ErrNoIntrinsic = errors.New("no intrinsic")

// Key identifies a method by its declaring type, name and parameter list.
type Key struct {
	Type   string
	Name   string
	Params string
}

// KeyOf returns the catalog key of a method.
func KeyOf(m *cil.Method) Key {
	return Key{Type: m.DeclaringType.FullName(), Name: m.Name, Params: m.Sig.ParamString()}
}

func (k Key) String() string {
	return k.Type + "::" + k.Name + k.Params
}

// A Builder receives the TAC a fragment emits.
type Builder interface {
	NewVar() tac.Logical
	Emit(nodes ...tac.Node)
	Env() *env.Env
}

// A Fragment emits the inline replacement of a call. Args holds the call's arguments, including
// the receiver of instance methods. It returns the variable holding the result, or nil for void
// methods.
type Fragment func(b Builder, m *cil.Method, args []tac.Var) (tac.Var, error)

// Catalog maps method keys to fragments.
type Catalog map[Key]Fragment

// Gate decides whether a call is substituted.
type Gate struct {
	catalog Catalog
	strict  bool
}

// NewGate creates a gate over the given catalog. In strict mode, calls to runtime-provided
// methods missing from the catalog are errors; otherwise they fall back to ordinary calls.
func NewGate(catalog Catalog, strict bool) *Gate {
	if catalog == nil {
		catalog = Default()
	}
	return &Gate{catalog: catalog, strict: strict}
}

// Provides reports whether calls to m are substituted, without emitting anything.
func (g *Gate) Provides(m *cil.Method) bool {
	_, ok := g.catalog[KeyOf(m)]
	return ok
}

// Substitute emits the fragment for a call to m if the catalog has one. It returns false if the
// caller must emit an ordinary call instead.
func (g *Gate) Substitute(b Builder, m *cil.Method, args []tac.Var) (bool, tac.Var, error) {
	fragment, ok := g.catalog[KeyOf(m)]
	if !ok {
		if g.strict && m.IsInternalCall() {
			return false, nil, errors.Wrapf(ErrNoIntrinsic, "%v", m)
		}
		return false, nil, nil
	}

	result, err := fragment(b, m, args)
	if err != nil {
		return false, nil, errors.Wrapf(err, "expanding %v", m)
	}
	return true, result, nil
}
