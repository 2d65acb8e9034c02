package cil

// WellKnown names a type the lowering rules refer to directly.
type WellKnown int

const (
	KnownObject WellKnown = iota
	KnownString
	KnownValueType
	KnownArray
	KnownDelegate
	KnownEncoding
	KnownRuntimeTypeHandle
	KnownRuntimeMethodHandle
	KnownRuntimeFieldHandle
	KnownInt32
	KnownIntPtr
	KnownChar
	KnownSByte
)

var wellKnownNames = [...]string{
	KnownObject:              "System.Object",
	KnownString:              "System.String",
	KnownValueType:           "System.ValueType",
	KnownArray:               "System.Array",
	KnownDelegate:            "System.Delegate",
	KnownEncoding:            "System.Text.Encoding",
	KnownRuntimeTypeHandle:   "System.RuntimeTypeHandle",
	KnownRuntimeMethodHandle: "System.RuntimeMethodHandle",
	KnownRuntimeFieldHandle:  "System.RuntimeFieldHandle",
	KnownInt32:               "System.Int32",
	KnownIntPtr:              "System.IntPtr",
	KnownChar:                "System.Char",
	KnownSByte:               "System.SByte",
}

func (w WellKnown) String() string {
	if int(w) < len(wellKnownNames) {
		return wellKnownNames[w]
	}
	return "?"
}

// Helper names a runtime-provided method the lowering rules call directly.
type Helper int

const (
	// HelperAllocString allocates an uninitialized string of the given length.
	HelperAllocString Helper = iota
	// HelperStringCharCount computes the number of characters a byte buffer decodes to.
	HelperStringCharCount
	// HelperAllocObject allocates an instance of the type described by a type-info pointer.
	HelperAllocObject
	// HelperNewArray allocates a single-dimensional array.
	HelperNewArray
	// HelperIsInstanceOfClass tests an object against a class, returning the object or null.
	HelperIsInstanceOfClass
	// HelperIsInstanceOfInterface tests an object against an interface, returning the object or null.
	HelperIsInstanceOfInterface
	// HelperIsInstanceOfArray tests an object against an array type, returning the object or null.
	HelperIsInstanceOfArray
	HelperThrowInvalidCast
	HelperThrowMissingMethod
	HelperThrowNullReference
	HelperThrowIndexOutOfRange
	HelperThrowOverflow
	HelperThrow
	HelperRethrow
	HelperUnboxCheck
	HelperArrayStoreCheck
	HelperMemmove
	HelperMemset
	HelperStaticInit
)

var helperNames = [...]string{
	HelperAllocString:           "AllocString",
	HelperStringCharCount:       "StringCharCount",
	HelperAllocObject:           "AllocObject",
	HelperNewArray:              "NewArray",
	HelperIsInstanceOfClass:     "IsInstanceOfClass",
	HelperIsInstanceOfInterface: "IsInstanceOfInterface",
	HelperIsInstanceOfArray:     "IsInstanceOfArray",
	HelperThrowInvalidCast:      "ThrowInvalidCast",
	HelperThrowMissingMethod:    "ThrowMissingMethod",
	HelperThrowNullReference:    "ThrowNullReference",
	HelperThrowIndexOutOfRange:  "ThrowIndexOutOfRange",
	HelperThrowOverflow:         "ThrowOverflow",
	HelperThrow:                 "Throw",
	HelperRethrow:               "Rethrow",
	HelperUnboxCheck:            "UnboxCheck",
	HelperArrayStoreCheck:       "ArrayStoreCheck",
	HelperMemmove:               "Memmove",
	HelperMemset:                "Memset",
	HelperStaticInit:            "StaticInit",
}

func (h Helper) String() string {
	if int(h) < len(helperNames) {
		return helperNames[h]
	}
	return "?"
}

// Helpers returns every helper in declaration order.
func Helpers() []Helper {
	hs := make([]Helper, len(helperNames))
	for i := range hs {
		hs[i] = Helper(i)
	}
	return hs
}
