package tac

import "fmt"

// Op is a TAC operator.
type Op int

const (
	OpInvalid Op = iota

	// Data movement. Loads and stores are moves whose operand or result is a ContentsOf. A load
	// from memory narrower than the category zero-extends; a store to narrower memory truncates.
	// Value-type moves copy Size bytes.
	OpMov
	OpMovVolatile
	// OpZero clears Size bytes at the address in A.
	OpZero

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpDivUn
	OpRem
	OpRemUn
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpShrUn
	OpNeg
	OpNot

	// Integer conversions. Size is the width in bytes of the bits kept from A.
	OpSext
	OpZext
	OpTrunc
	// Float conversions. IToF and UToF read a Size-byte integer. FToI and FToU truncate a Float64
	// toward zero to a Size-byte integer and extend it to the result category. FExt and FTrunc
	// read a Size-byte float.
	OpIToF
	OpUToF
	OpFToI
	OpFToU
	OpFExt
	OpFTrunc

	// OpCheckOverflow and OpCheckOverflowUn throw if the linked arithmetic operation overflowed.
	OpCheckOverflow
	OpCheckOverflowUn
	// The range checks throw if A does not fit in a Size-byte integer. The target signedness is
	// part of the operator; the Un variants treat A as unsigned.
	OpCheckConvI
	OpCheckConvU
	OpCheckConvIUn
	OpCheckConvUUn
	OpCheckFinite
	OpCheckNull
	// OpCheckBounds throws if the index B, compared unsigned, is not below the length A.
	OpCheckBounds

	// Comparisons produce an Int32 0 or 1.
	OpCeq
	OpCne
	OpClt
	OpCltUn
	OpCgt
	OpCgtUn
	OpCle
	OpCleUn
	OpCge
	OpCgeUn

	// Branch operators. Conditional branches also use the comparison operators.
	OpBr
	OpBrTrue
	OpBrFalse
	// OpCallFinally runs the finally handler at the target block and then falls through.
	OpCallFinally

	OpSwitch
	OpPhi
	OpLabel

	OpCall
	OpCallIndirect

	OpRet
	OpEndFinally

	// OpLocalloc allocates A bytes of zeroed stack memory.
	OpLocalloc
	// OpCatch produces the exception object on entry to a catch handler.
	OpCatch
)

var opNames = [...]string{
	OpInvalid:         "invalid",
	OpMov:             "mov",
	OpMovVolatile:     "mov.volatile",
	OpZero:            "zero",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpDiv:             "div",
	OpDivUn:           "div.un",
	OpRem:             "rem",
	OpRemUn:           "rem.un",
	OpAnd:             "and",
	OpOr:              "or",
	OpXor:             "xor",
	OpShl:             "shl",
	OpShr:             "shr",
	OpShrUn:           "shr.un",
	OpNeg:             "neg",
	OpNot:             "not",
	OpSext:            "sext",
	OpZext:            "zext",
	OpTrunc:           "trunc",
	OpIToF:            "itof",
	OpUToF:            "utof",
	OpFToI:            "ftoi",
	OpFToU:            "ftou",
	OpFExt:            "fext",
	OpFTrunc:          "ftrunc",
	OpCheckOverflow:   "checkovf",
	OpCheckOverflowUn: "checkovf.un",
	OpCheckConvI:      "checkconv.i",
	OpCheckConvU:      "checkconv.u",
	OpCheckConvIUn:    "checkconv.i.un",
	OpCheckConvUUn:    "checkconv.u.un",
	OpCheckFinite:     "checkfinite",
	OpCheckNull:       "checknull",
	OpCheckBounds:     "checkbounds",
	OpCeq:             "ceq",
	OpCne:             "cne",
	OpClt:             "clt",
	OpCltUn:           "clt.un",
	OpCgt:             "cgt",
	OpCgtUn:           "cgt.un",
	OpCle:             "cle",
	OpCleUn:           "cle.un",
	OpCge:             "cge",
	OpCgeUn:           "cge.un",
	OpBr:              "br",
	OpBrTrue:          "brtrue",
	OpBrFalse:         "brfalse",
	OpCallFinally:     "callfinally",
	OpSwitch:          "switch",
	OpPhi:             "phi",
	OpLabel:           "label",
	OpCall:            "call",
	OpCallIndirect:    "calli",
	OpRet:             "ret",
	OpEndFinally:      "endfinally",
	OpLocalloc:        "localloc",
	OpCatch:           "catch",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// IsCompare returns true for the comparison operators.
func (op Op) IsCompare() bool {
	return op >= OpCeq && op <= OpCgeUn
}

// IsCheck returns true for operators that only exist to throw on a failed runtime check.
func (op Op) IsCheck() bool {
	return op >= OpCheckOverflow && op <= OpCheckBounds
}

// Swap returns the comparison that yields the same result with its operands exchanged.
func (op Op) Swap() Op {
	switch op {
	case OpClt:
		return OpCgt
	case OpCltUn:
		return OpCgtUn
	case OpCgt:
		return OpClt
	case OpCgtUn:
		return OpCltUn
	case OpCle:
		return OpCge
	case OpCleUn:
		return OpCgeUn
	case OpCge:
		return OpCle
	case OpCgeUn:
		return OpCleUn
	}
	return op
}
