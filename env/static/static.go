// Package static implements the lowering collaborators over an in-memory module: a set of type
// definitions with their methods and fields, plus the core library types the lowering rules
// refer to. Tokens are assigned as definitions are added.
package static

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/env"
)

// ErrNotFound is returned when a token or name does not resolve.
var ErrNotFound = errors.New("not found")

// Target describes the machine the module is lowered for.
type Target struct {
	PointerSize int `yaml:"pointerSize"`
}

// Body is a method body: encoded IL plus protected regions whose boundaries are instruction
// indices. Local variable types are part of the method definition.
type Body struct {
	Code    []byte
	Regions []method.Region
}

type entry struct {
	member  cil.Member
	literal string
	sig     *cil.Signature
}

// Module is a collection of type definitions. All methods are safe for concurrent use once the
// module has been populated.
type Module struct {
	target Target

	mu      sync.RWMutex
	types   map[string]*cil.Type
	order   []*cil.Type
	tokens  map[cil.Token]entry
	rows    map[cil.TokenTable]uint32
	members map[interface{}]cil.Token
	bodies  map[*cil.Method]*Body

	wellKnown map[cil.WellKnown]*cil.Type
	helpers   map[cil.Helper]*cil.Method
	boxed     map[*cil.Type]*cil.Type
	// primitives maps element types to the core library's definitions of them.
	primitives map[cil.ElementType]*cil.Type
}

// New creates a module for the given target that holds the core library types.
func New(target Target) *Module {
	if target.PointerSize == 0 {
		target.PointerSize = 8
	}
	m := &Module{
		target:    target,
		types:     map[string]*cil.Type{},
		tokens:    map[cil.Token]entry{},
		rows:      map[cil.TokenTable]uint32{},
		members:   map[interface{}]cil.Token{},
		bodies:    map[*cil.Method]*Body{},
		wellKnown: map[cil.WellKnown]*cil.Type{},
		helpers:   map[cil.Helper]*cil.Method{},
		boxed:     map[*cil.Type]*cil.Type{},

		primitives: map[cil.ElementType]*cil.Type{},
	}
	m.addCoreLibrary()
	return m
}

// Env bundles the module's collaborators with a request sink.
func (m *Module) Env(sink env.Sink) *env.Env {
	return &env.Env{
		Resolver:           m,
		Layout:             m,
		Mangler:            m,
		Sink:               sink,
		CallingConventions: m,
		Runtime:            m,
	}
}

// Target returns the module's target description.
func (m *Module) Target() Target {
	return m.target
}

func (m *Module) token(table cil.TokenTable, e entry, key interface{}) cil.Token {
	if tok, ok := m.members[key]; ok {
		return tok
	}
	m.rows[table]++
	tok := cil.MakeToken(table, m.rows[table])
	m.tokens[tok] = e
	m.members[key] = tok
	return tok
}

// AddType registers a type definition together with its methods and fields. Methods and fields
// whose declaring type is unset are attached to t.
func (m *Module) AddType(t *cil.Type) *cil.Type {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addTypeLocked(t)
	return t
}

func (m *Module) addTypeLocked(t *cil.Type) {
	m.types[t.FullName()] = t
	m.order = append(m.order, t)
	m.token(cil.TableTypeDef, entry{member: cil.Member{Kind: cil.MemberType, Type: t}}, t)
	for _, f := range t.Fields {
		if f.DeclaringType == nil {
			f.DeclaringType = t
		}
		m.token(cil.TableField, entry{member: cil.Member{Kind: cil.MemberField, Field: f}}, f)
	}
	for _, meth := range t.Methods {
		if meth.DeclaringType == nil {
			meth.DeclaringType = t
		}
		m.token(cil.TableMethodDef, entry{member: cil.Member{Kind: cil.MemberMethod, Method: meth}}, meth)
	}
}

// Types returns the module's type definitions in registration order.
func (m *Module) Types() []*cil.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]*cil.Type(nil), m.order...)
}

// SetBody records the body of a method.
func (m *Module) SetBody(meth *cil.Method, body *Body) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bodies[meth] = body
}

// Body returns the body of a method, if it has one.
func (m *Module) Body(meth *cil.Method) (*Body, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bodies[meth]
	return b, ok
}

// TypeToken returns the token of a type, assigning a type-spec token to constructed types.
func (m *Module) TypeToken(t *cil.Type) cil.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := cil.TableTypeSpec
	if _, ok := m.types[t.FullName()]; ok {
		table = cil.TableTypeDef
	}
	return m.token(table, entry{member: cil.Member{Kind: cil.MemberType, Type: t}}, t)
}

// MethodToken returns the token of a method.
func (m *Module) MethodToken(meth *cil.Method) cil.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token(cil.TableMethodDef, entry{member: cil.Member{Kind: cil.MemberMethod, Method: meth}}, meth)
}

// FieldToken returns the token of a field.
func (m *Module) FieldToken(f *cil.Field) cil.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token(cil.TableField, entry{member: cil.Member{Kind: cil.MemberField, Field: f}}, f)
}

// StringToken returns the user-string token of a literal.
func (m *Module) StringToken(s string) cil.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token(cil.TableUserString, entry{literal: s}, "\x00"+s)
}

// SignatureToken returns the stand-alone signature token of a call-site signature.
func (m *Module) SignatureToken(sig *cil.Signature) cil.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token(cil.TableStandAlone, entry{sig: sig}, sig)
}

func (m *Module) lookup(tok cil.Token) (entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tokens[tok]
	if !ok {
		return entry{}, errors.Mark(errors.Newf("token %v", tok), ErrNotFound)
	}
	return e, nil
}

func (m *Module) ResolveType(tok cil.Token, ctx cil.Context) (*cil.Type, error) {
	e, err := m.lookup(tok)
	if err != nil {
		return nil, err
	}
	if e.member.Kind != cil.MemberType || e.member.Type == nil {
		return nil, errors.Newf("token %v does not refer to a type", tok)
	}
	return e.member.Type, nil
}

func (m *Module) ResolveMethod(tok cil.Token, ctx cil.Context) (*cil.Method, error) {
	e, err := m.lookup(tok)
	if err != nil {
		return nil, err
	}
	if e.member.Method == nil {
		return nil, errors.Newf("token %v does not refer to a method", tok)
	}
	return e.member.Method, nil
}

func (m *Module) ResolveField(tok cil.Token, ctx cil.Context) (*cil.Field, error) {
	e, err := m.lookup(tok)
	if err != nil {
		return nil, err
	}
	if e.member.Field == nil {
		return nil, errors.Newf("token %v does not refer to a field", tok)
	}
	return e.member.Field, nil
}

func (m *Module) ResolveMember(tok cil.Token, ctx cil.Context) (cil.Member, error) {
	e, err := m.lookup(tok)
	if err != nil {
		return cil.Member{}, err
	}
	if e.member.Type == nil && e.member.Method == nil && e.member.Field == nil {
		return cil.Member{}, errors.Newf("token %v does not refer to a member", tok)
	}
	return e.member, nil
}

func (m *Module) ResolveString(tok cil.Token) (string, error) {
	if tok.Table() != cil.TableUserString {
		return "", errors.Newf("token %v is not a string", tok)
	}
	e, err := m.lookup(tok)
	if err != nil {
		return "", err
	}
	return e.literal, nil
}

func (m *Module) ResolveSignature(tok cil.Token, ctx cil.Context) (*cil.Signature, error) {
	e, err := m.lookup(tok)
	if err != nil {
		return nil, err
	}
	if e.sig == nil {
		return nil, errors.Newf("token %v is not a signature", tok)
	}
	return e.sig, nil
}

func (m *Module) WellKnown(w cil.WellKnown) (*cil.Type, error) {
	t, ok := m.wellKnown[w]
	if !ok {
		return nil, errors.Mark(errors.Newf("well-known type %v", w), ErrNotFound)
	}
	return t, nil
}

func (m *Module) Helper(h cil.Helper) (*cil.Method, error) {
	meth, ok := m.helpers[h]
	if !ok {
		return nil, errors.Mark(errors.Newf("runtime helper %v", h), ErrNotFound)
	}
	return meth, nil
}

// Boxed returns the boxed form of a value type. Boxed forms are created on first use and are
// shared by all callers.
func (m *Module) Boxed(t *cil.Type) (*cil.Type, error) {
	if !t.IsValueType() {
		return nil, errors.Newf("cannot box reference type %v", t)
	}

	if t.Element.IsPrimitive() {
		if def, ok := m.primitives[t.Element]; ok {
			t = def
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.boxed[t]; ok {
		return b, nil
	}
	b := &cil.Type{
		Name:       "Boxed<" + t.FullName() + ">",
		Element:    cil.ElementClass,
		Flags:      cil.TypeSealed,
		Base:       m.wellKnown[cil.KnownValueType],
		Interfaces: t.Interfaces,
		Fields:     []*cil.Field{{Name: "value", Type: t}},
	}
	m.addTypeLocked(b)
	m.boxed[t] = b
	return b, nil
}

// Unboxed returns the value type a boxed form wraps, if t is one.
func (m *Module) Unboxed(t *cil.Type) (*cil.Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for v, b := range m.boxed {
		if b == t {
			return v, true
		}
	}
	return nil, false
}
