package decompose

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/method"
)

// stringLength identifies how a string constructor's storage length is computed.
type stringLength int

const (
	// lengthUnsupported constructors have no lowering.
	lengthUnsupported stringLength = iota
	// lengthFromArray takes the length of the character array argument.
	lengthFromArray
	// lengthFromLastArg takes the last argument as the length.
	lengthFromLastArg
	// lengthFromCharCount asks the runtime how many characters the encoded bytes decode to.
	lengthFromCharCount
)

type paramKind int

const (
	paramOther paramKind = iota
	paramChar
	paramInt
	paramCharArray
	paramCharPtr
	paramSBytePtr
	paramEncoding
)

type stringCtor struct {
	params []paramKind
	length stringLength
}

var stringCtors = []stringCtor{
	{[]paramKind{paramCharArray}, lengthFromArray},
	{[]paramKind{paramCharArray, paramInt, paramInt}, lengthFromLastArg},
	{[]paramKind{paramChar, paramInt}, lengthFromLastArg},
	{[]paramKind{paramCharPtr, paramInt, paramInt}, lengthFromLastArg},
	{[]paramKind{paramSBytePtr, paramInt, paramInt}, lengthFromLastArg},
	{[]paramKind{paramSBytePtr, paramInt, paramInt, paramEncoding}, lengthFromCharCount},
	{[]paramKind{paramCharPtr}, lengthUnsupported},
	{[]paramKind{paramSBytePtr}, lengthUnsupported},
}

func (d *decomposer) paramKind(t *cil.Type) paramKind {
	switch t.Element {
	case cil.ElementChar:
		return paramChar
	case cil.ElementI4:
		return paramInt
	case cil.ElementSZArray:
		if t.Elem.Element == cil.ElementChar {
			return paramCharArray
		}
	case cil.ElementPtr:
		switch t.Elem.Element {
		case cil.ElementChar:
			return paramCharPtr
		case cil.ElementI1:
			return paramSBytePtr
		}
	case cil.ElementClass:
		if enc, err := d.env.WellKnown(cil.KnownEncoding); err == nil && t == enc {
			return paramEncoding
		}
	}
	return paramOther
}

func (d *decomposer) matchStringCtor(sig *cil.Signature) (stringCtor, bool) {
	kinds := make([]paramKind, len(sig.Params))
	for i, p := range sig.Params {
		kinds[i] = d.paramKind(p)
	}

outer:
	for _, ctor := range stringCtors {
		if len(ctor.params) != len(kinds) {
			continue
		}
		for i, k := range ctor.params {
			if kinds[i] != k {
				continue outer
			}
		}
		return ctor, true
	}
	return stringCtor{}, false
}

// newString rewrites the construction of a string into an allocation of the required length
// followed by a call to the constructor on the new instance:
//
//	<compute length>
//	callhelper AllocString
//	dup
//	rotate n+1 (n times)
//	call .ctor
//
// The arguments stay on the stack underneath the length computation, and the rotations restore
// them to their original order above the two references to the new string.
func (d *decomposer) newString() ([]*method.Record, error) {
	ctor := d.rec.Method
	shape, ok := d.matchStringCtor(ctor.Sig)
	if !ok {
		return nil, d.ctx.Unsupported("unrecognized string constructor %v", ctor)
	}

	n := len(ctor.Sig.Params)
	var seq []*method.Record
	switch shape.length {
	case lengthUnsupported:
		return nil, d.ctx.Unsupported("string constructor %v", ctor)
	case lengthFromArray:
		seq = append(seq, record(code.Dup()), record(code.Op(code.OpLdlen)), record(code.Op(code.OpConvI4)))
	case lengthFromLastArg:
		seq = append(seq, record(code.Dup()))
	case lengthFromCharCount:
		for i := 0; i < n; i++ {
			seq = append(seq, record(code.Rotate(n-1)), record(code.Dup()), record(code.MoveTo(n)))
		}
		count, err := d.helper(cil.HelperStringCharCount)
		if err != nil {
			return nil, err
		}
		seq = append(seq, count)
	}

	alloc, err := d.helper(cil.HelperAllocString)
	if err != nil {
		return nil, err
	}
	seq = append(seq, alloc, record(code.Dup()))
	for i := 0; i < n; i++ {
		seq = append(seq, record(code.Rotate(n+1)))
	}

	call := d.clone(0)
	call.Opcode = code.OpCall
	return append(seq, call), nil
}
