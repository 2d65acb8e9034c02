package static

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
)

var aliases = map[string]cil.ElementType{
	"void":    cil.ElementVoid,
	"bool":    cil.ElementBoolean,
	"char":    cil.ElementChar,
	"int8":    cil.ElementI1,
	"uint8":   cil.ElementU1,
	"int16":   cil.ElementI2,
	"uint16":  cil.ElementU2,
	"int32":   cil.ElementI4,
	"uint32":  cil.ElementU4,
	"int64":   cil.ElementI8,
	"uint64":  cil.ElementU8,
	"float32": cil.ElementR4,
	"float64": cil.ElementR8,
	"nint":    cil.ElementI,
	"nuint":   cil.ElementU,
	"string":  cil.ElementString,
	"object":  cil.ElementObject,
}

// LookupType resolves a type name. Names are either aliases of built-in types (int32, string,
// object, nint, ...) or namespace-qualified definition names, optionally followed by any number of
// [], * and & suffixes.
func (m *Module) LookupType(name string) (*cil.Type, error) {
	name = strings.TrimSpace(name)
	switch {
	case strings.HasSuffix(name, "[]"):
		elem, err := m.LookupType(name[:len(name)-2])
		if err != nil {
			return nil, err
		}
		return cil.ArrayOf(elem), nil
	case strings.HasSuffix(name, "*"):
		elem, err := m.LookupType(name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return cil.PointerTo(elem), nil
	case strings.HasSuffix(name, "&"):
		elem, err := m.LookupType(name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return cil.ByRefTo(elem), nil
	}

	if e, ok := aliases[name]; ok {
		switch e {
		case cil.ElementVoid:
			return cil.Primitive(e), nil
		case cil.ElementString:
			return m.wellKnown[cil.KnownString], nil
		case cil.ElementObject:
			return m.wellKnown[cil.KnownObject], nil
		}
		return m.primitives[e], nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("type %q", name), ErrNotFound)
	}
	return t, nil
}

// splitMember splits "Type::Member" at the last "::" that precedes any parameter list.
func splitMember(name string) (string, string, bool) {
	head := name
	if i := strings.IndexByte(name, '('); i != -1 {
		head = name[:i]
	}
	i := strings.LastIndex(head, "::")
	if i == -1 {
		return "", "", false
	}
	return name[:i], name[i+2:], true
}

func (m *Module) parseParams(list string) ([]*cil.Type, error) {
	if !strings.HasPrefix(list, "(") || !strings.HasSuffix(list, ")") {
		return nil, errors.Newf("malformed parameter list %q", list)
	}
	list = strings.TrimSpace(list[1 : len(list)-1])
	if list == "" {
		return nil, nil
	}

	var params []*cil.Type
	for _, p := range strings.Split(list, ",") {
		t, err := m.LookupType(p)
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	return params, nil
}

func sameParams(a, b []*cil.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !cil.SameType(a[i], b[i]) {
			return false
		}
	}
	return true
}

// LookupMethod resolves a method name of the form "Type::Name(param, ...)". The parameter list may
// be omitted if the name is not overloaded.
func (m *Module) LookupMethod(name string) (*cil.Method, error) {
	typeName, member, ok := splitMember(name)
	if !ok {
		return nil, errors.Newf("malformed method name %q", name)
	}
	t, err := m.LookupType(typeName)
	if err != nil {
		return nil, err
	}

	methodName, list := member, ""
	if i := strings.IndexByte(member, '('); i != -1 {
		methodName, list = member[:i], member[i:]
	}

	var params []*cil.Type
	if list != "" {
		if params, err = m.parseParams(list); err != nil {
			return nil, err
		}
	}

	var found *cil.Method
	for _, meth := range t.Methods {
		if meth.Name != methodName {
			continue
		}
		if list == "" {
			if found != nil {
				return nil, errors.Newf("ambiguous method name %q", name)
			}
			found = meth
			continue
		}
		if sameParams(meth.Sig.Params, params) {
			return meth, nil
		}
	}
	if found == nil {
		return nil, errors.Mark(errors.Newf("method %q", name), ErrNotFound)
	}
	return found, nil
}

// LookupField resolves a field name of the form "Type::Name".
func (m *Module) LookupField(name string) (*cil.Field, error) {
	typeName, member, ok := splitMember(name)
	if !ok {
		return nil, errors.Newf("malformed field name %q", name)
	}
	t, err := m.LookupType(typeName)
	if err != nil {
		return nil, err
	}
	if f := t.FindField(member); f != nil {
		return f, nil
	}
	return nil, errors.Mark(errors.Newf("field %q", name), ErrNotFound)
}

// ParseSignature parses a stand-alone signature of the form "[instance] ret(param, ...)".
func (m *Module) ParseSignature(text string) (*cil.Signature, error) {
	text = strings.TrimSpace(text)
	sig := &cil.Signature{}
	if rest := strings.TrimPrefix(text, "instance "); rest != text {
		sig.HasThis, text = true, strings.TrimSpace(rest)
	}

	i := strings.IndexByte(text, '(')
	if i == -1 {
		return nil, errors.Newf("malformed signature %q", text)
	}
	ret, err := m.LookupType(text[:i])
	if err != nil {
		return nil, err
	}
	params, err := m.parseParams(text[i:])
	if err != nil {
		return nil, err
	}
	sig.Return, sig.Params = ret, params
	return sig, nil
}

// Token implements asm.Symbols.
func (m *Module) Token(kind code.OperandKind, name string) (cil.Token, error) {
	switch kind {
	case code.OperandType:
		t, err := m.LookupType(name)
		if err != nil {
			return 0, err
		}
		return m.TypeToken(t), nil
	case code.OperandMethod:
		meth, err := m.LookupMethod(name)
		if err != nil {
			return 0, err
		}
		return m.MethodToken(meth), nil
	case code.OperandField:
		f, err := m.LookupField(name)
		if err != nil {
			return 0, err
		}
		return m.FieldToken(f), nil
	case code.OperandSignature:
		sig, err := m.ParseSignature(name)
		if err != nil {
			return 0, err
		}
		return m.SignatureToken(sig), nil
	case code.OperandToken:
		if _, _, ok := splitMember(name); !ok {
			return m.Token(code.OperandType, name)
		}
		if strings.HasSuffix(name, ")") {
			return m.Token(code.OperandMethod, name)
		}
		return m.Token(code.OperandField, name)
	}
	return 0, errors.Newf("operand kind %v has no named form", kind)
}

// String implements asm.Symbols.
func (m *Module) String(s string) (cil.Token, error) {
	return m.StringToken(s), nil
}
