package static

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// argumentRegisters is the number of pointer-sized arguments passed in registers.
const argumentRegisters = 6

// Build implements a register-then-stack convention: the first six arguments that fit in a
// pointer-sized register are passed in registers, the rest in pointer-aligned stack slots.
// Value-type results larger than two words are returned through a hidden pointer. Runtime helpers
// use the same placement under a different name.
func (m *Module) Build(meth *cil.Method, sig *cil.Signature, op tac.Op) (*tac.CallConv, error) {
	if sig == nil {
		sig = meth.Sig
	}
	var owner *cil.Type
	if meth != nil {
		owner = meth.DeclaringType
	}

	ptr := m.target.PointerSize
	conv := &tac.CallConv{Name: "managed"}
	if meth != nil && meth.IsInternalCall() {
		conv.Name = "runtime"
	}

	registers, offset := 0, 0
	for i := 0; i < sig.ArgCount(); i++ {
		size, _, err := m.storage(sig.ArgType(i, owner))
		if err != nil {
			return nil, err
		}
		if size <= ptr && registers < argumentRegisters {
			conv.Args = append(conv.Args, tac.Slot{Register: registers, Size: size})
			registers++
			continue
		}
		conv.Args = append(conv.Args, tac.Slot{Register: -1, Offset: offset, Size: size})
		offset += align(size, ptr)
	}

	if sig.ReturnsValue() {
		size, _, err := m.storage(sig.Return)
		if err != nil {
			return nil, err
		}
		conv.Return = tac.Slot{Size: size}
		conv.StructReturn = size > 2*ptr
	}
	return conv, nil
}
