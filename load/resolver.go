package load

import (
	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/asm"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/env/static"
)

var typeFlags = map[string]cil.TypeFlags{
	"sealed":          cil.TypeSealed,
	"abstract":        cil.TypeAbstract,
	"beforefieldinit": cil.TypeBeforeFieldInit,
}

var methodFlags = map[string]cil.MethodFlags{
	"static":       cil.MethodStatic,
	"virtual":      cil.MethodVirtual,
	"abstract":     cil.MethodAbstract,
	"final":        cil.MethodFinal,
	"newslot":      cil.MethodNewSlot,
	"internalcall": cil.MethodInternalCall,
}

var regionKinds = map[string]method.RegionKind{
	"catch":   method.RegionCatch,
	"finally": method.RegionFinally,
	"fault":   method.RegionFault,
	"filter":  method.RegionFilter,
}

// builder resolves a parsed file against a module in passes: definitions are registered first so
// that members may refer to any type in the file, then members, then overrides, then bodies.
type builder struct {
	module *static.Module
	file   *File

	types   []*cil.Type
	methods map[*cil.Method]*MethodDef
}

// Build creates a module holding the definitions in f.
func Build(f *File) (*static.Module, error) {
	b := builder{
		module:  static.New(f.Target),
		file:    f,
		methods: map[*cil.Method]*MethodDef{},
	}
	for _, pass := range []func() error{b.declare, b.members, b.overrides, b.bodies} {
		if err := pass(); err != nil {
			return nil, err
		}
	}
	return b.module, nil
}

func (b *builder) declare() error {
	for i := range b.file.Types {
		def := &b.file.Types[i]
		if def.Name == "" {
			return errors.Newf("type %d has no name", i)
		}

		t := &cil.Type{Namespace: def.Namespace, Name: def.Name}
		switch def.Kind {
		case "", "class":
			t.Element = cil.ElementClass
		case "struct":
			t.Element = cil.ElementValueType
		case "enum":
			t.Element, t.Flags = cil.ElementValueType, cil.TypeEnum|cil.TypeSealed
		case "interface":
			t.Element, t.Flags = cil.ElementClass, cil.TypeInterface|cil.TypeAbstract
		case "delegate":
			t.Element, t.Flags = cil.ElementClass, cil.TypeDelegate|cil.TypeSealed
		default:
			return errors.Newf("type %v: unknown kind %q", t, def.Kind)
		}
		for _, name := range def.Flags {
			flag, ok := typeFlags[name]
			if !ok {
				return errors.Newf("type %v: unknown flag %q", t, name)
			}
			t.Flags |= flag
		}

		if _, err := b.module.LookupType(t.FullName()); err == nil {
			return errors.Newf("duplicate definition of type %v", t)
		}
		b.types = append(b.types, b.module.AddType(t))
	}
	return nil
}

func (b *builder) lookup(name string) (*cil.Type, error) {
	t, err := b.module.LookupType(name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Newf("type %q has no definition", name)
	}
	return t, nil
}

// base returns the base class of a definition, defaulting by kind.
func (b *builder) base(def *TypeDef, t *cil.Type) (*cil.Type, error) {
	if def.Base != "" {
		return b.lookup(def.Base)
	}
	switch {
	case t.IsInterface():
		return nil, nil
	case t.IsDelegate():
		return b.module.WellKnown(cil.KnownDelegate)
	case t.IsValueType():
		return b.module.WellKnown(cil.KnownValueType)
	}
	return b.module.WellKnown(cil.KnownObject)
}

func (b *builder) members() error {
	for i, t := range b.types {
		def := &b.file.Types[i]

		base, err := b.base(def, t)
		if err != nil {
			return errors.Wrapf(err, "type %v", t)
		}
		t.Base = base

		for _, name := range def.Interfaces {
			iface, err := b.lookup(name)
			if err != nil {
				return errors.Wrapf(err, "type %v", t)
			}
			if !iface.IsInterface() {
				return errors.Newf("type %v: %v is not an interface", t, iface)
			}
			t.Interfaces = append(t.Interfaces, iface)
		}

		if t.IsEnum() {
			if def.Underlying == "" {
				def.Underlying = "int32"
			}
			elem, err := b.lookup(def.Underlying)
			if err != nil {
				return errors.Wrapf(err, "enum %v", t)
			}
			t.Elem = elem
		}

		for _, fd := range def.Fields {
			ft, err := b.lookup(fd.Type)
			if err != nil {
				return errors.Wrapf(err, "field %v::%v", t, fd.Name)
			}
			t.Fields = append(t.Fields, &cil.Field{Name: fd.Name, DeclaringType: t, Type: ft, Static: fd.Static})
		}

		for j := range def.Methods {
			md := &def.Methods[j]
			sig, err := b.module.ParseSignature(md.Sig)
			if err != nil {
				return errors.Wrapf(err, "method %v::%v", t, md.Name)
			}
			meth := &cil.Method{Name: md.Name, DeclaringType: t, Sig: sig}
			if !sig.HasThis {
				meth.Flags |= cil.MethodStatic
			}
			for _, name := range md.Flags {
				flag, ok := methodFlags[name]
				if !ok {
					return errors.Newf("method %v: unknown flag %q", meth, name)
				}
				meth.Flags |= flag
			}
			if t.IsInterface() && !meth.IsStatic() {
				meth.Flags |= cil.MethodVirtual | cil.MethodAbstract | cil.MethodNewSlot
			}
			for _, name := range md.Locals {
				lt, err := b.lookup(name)
				if err != nil {
					return errors.Wrapf(err, "method %v", meth)
				}
				meth.Locals = append(meth.Locals, lt)
			}
			t.Methods = append(t.Methods, meth)
			b.methods[meth] = md
		}
	}
	return nil
}

// overrides links virtual methods to the methods they override. A virtual method that is not
// marked newslot overrides the nearest base method with the same name and signature.
func (b *builder) overrides() error {
	for _, t := range b.types {
		for _, meth := range t.Methods {
			md := b.methods[meth]
			if md.Overrides != "" {
				o, err := b.module.LookupMethod(md.Overrides)
				if err != nil {
					return errors.Wrapf(err, "method %v", meth)
				}
				if !o.IsVirtual() {
					return errors.Newf("method %v overrides non-virtual method %v", meth, o)
				}
				meth.Overrides = o
				continue
			}
			if !meth.IsVirtual() || meth.Flags&cil.MethodNewSlot != 0 || t.IsInterface() {
				continue
			}
			for c := t.Base; c != nil && meth.Overrides == nil; c = c.Base {
				if o := c.FindMethod(meth.Name, meth.Sig); o != nil && o.IsVirtual() && !o.IsStatic() {
					meth.Overrides = o
				}
			}
		}
	}
	return nil
}

func (b *builder) bodies() error {
	for _, t := range b.types {
		for _, meth := range t.Methods {
			md := b.methods[meth]
			if md.Body == "" {
				if !meth.IsAbstract() && !meth.IsInternalCall() {
					return errors.Newf("method %v has no body", meth)
				}
				continue
			}
			body, err := b.body(md)
			if err != nil {
				return errors.Wrapf(err, "method %v", meth)
			}
			b.module.SetBody(meth, body)
		}
	}
	return nil
}

func (b *builder) body(md *MethodDef) (*static.Body, error) {
	instrs, labels, err := asm.AssembleWithLabels(md.Body, b.module)
	if err != nil {
		return nil, err
	}
	encoded, err := code.Encode(instrs)
	if err != nil {
		return nil, err
	}

	label := func(name string) (int, error) {
		index, ok := labels[name]
		if !ok {
			return 0, errors.Newf("undefined label %q", name)
		}
		return index, nil
	}
	span := func(what string, names []string) (int, int, error) {
		if len(names) != 2 {
			return 0, 0, errors.Newf("%v must name a start and an end label", what)
		}
		start, err := label(names[0])
		if err != nil {
			return 0, 0, err
		}
		end, err := label(names[1])
		if err != nil {
			return 0, 0, err
		}
		if end <= start {
			return 0, 0, errors.Newf("%v ends before it starts", what)
		}
		return start, end, nil
	}

	var regions []method.Region
	for _, rd := range md.Regions {
		kind, ok := regionKinds[rd.Kind]
		if !ok {
			return nil, errors.Newf("unknown region kind %q", rd.Kind)
		}
		r := method.Region{Kind: kind}
		if r.TryStart, r.TryEnd, err = span("try", rd.Try); err != nil {
			return nil, err
		}
		if r.HandlerStart, r.HandlerEnd, err = span("handler", rd.Handler); err != nil {
			return nil, err
		}
		if kind == method.RegionCatch {
			if rd.Catch == "" {
				rd.Catch = "object"
			}
			if r.CatchType, err = b.lookup(rd.Catch); err != nil {
				return nil, err
			}
		}
		regions = append(regions, r)
	}

	return &static.Body{Code: encoded, Regions: regions}, nil
}
