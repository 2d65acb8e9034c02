// Package env defines the collaborators the lowering core consumes: metadata resolution, type
// layout, name mangling, the compilation request sink, calling conventions, and runtime
// well-known types and helpers.
package env

import (
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// Resolver resolves metadata tokens in the generic context of the method being lowered.
type Resolver interface {
	ResolveType(tok cil.Token, ctx cil.Context) (*cil.Type, error)
	ResolveMethod(tok cil.Token, ctx cil.Context) (*cil.Method, error)
	ResolveField(tok cil.Token, ctx cil.Context) (*cil.Field, error)
	// ResolveMember resolves a token that may refer to a type, method or field (ldtoken).
	ResolveMember(tok cil.Token, ctx cil.Context) (cil.Member, error)
	ResolveString(tok cil.Token) (string, error)
	// ResolveSignature resolves a stand-alone call-site signature (calli).
	ResolveSignature(tok cil.Token, ctx cil.Context) (*cil.Signature, error)
}

// ObjectLayout is the full layout of a type's instances and static storage.
type ObjectLayout struct {
	// Size is the instance size. For reference types it includes the object header; for value
	// types it is the size of the unboxed value.
	Size  int
	Align int
	// Fields holds the byte offsets of instance fields from the start of the instance (or of the
	// unboxed value, for value types).
	Fields map[*cil.Field]int

	// StaticSize is the size of the type's static storage block.
	StaticSize   int
	StaticFields map[*cil.Field]int

	// Array and string layout.
	LengthOffset int
	DataOffset   int
	ElementSize  int
}

// TypeInfoLayout is the layout of a type's runtime type-info object, which doubles as its
// vtable.
type TypeInfoLayout struct {
	// Label names the type-info object.
	Label string
	Size  int
	// ITableOffset is the offset of the pointer to the null-terminated interface table.
	ITableOffset int
	// Slots holds the vtable byte offset of each virtual method, keyed by the method that
	// introduced the slot.
	Slots map[*cil.Method]int
	// InterfaceSlots holds, for interface types, the index of each method in an interface
	// table record's member block.
	InterfaceSlots map[*cil.Method]int
}

// Layout answers type-layout queries. Implementations must be safe for concurrent use.
type Layout interface {
	PointerSize() int
	ObjectLayout(t *cil.Type) (*ObjectLayout, error)
	TypeInfoLayout(t *cil.Type) (*TypeInfoLayout, error)
}

// Mangler produces unique external symbols.
type Mangler interface {
	Method(m *cil.Method) string
	FieldInfo(f *cil.Field) string
	TypeInfo(t *cil.Type) string
	StaticStorage(t *cil.Type) string
	StringLiteral(s string) string
}

// Sink receives compilation requests. Every request is idempotent and must not block.
type Sink interface {
	RequestMethod(m *cil.Method)
	RequestTypeInfo(t *cil.Type)
	RequestStatics(t *cil.Type)
	RequestString(s string)
	// RequestDelegateTarget marks a method as the target of a delegate construction. A method
	// already queued as an ordinary request is replaced atomically.
	RequestDelegateTarget(m *cil.Method)
}

// CallingConventions builds argument-placement descriptors for calls.
type CallingConventions interface {
	Build(m *cil.Method, sig *cil.Signature, op tac.Op) (*tac.CallConv, error)
}

// Runtime supplies the runtime's well-known types and helper methods.
type Runtime interface {
	WellKnown(w cil.WellKnown) (*cil.Type, error)
	Helper(h cil.Helper) (*cil.Method, error)
	// Boxed returns the boxed form of a value type: a reference type with a single instance
	// field holding the value.
	Boxed(t *cil.Type) (*cil.Type, error)
}

// Env bundles the collaborators.
type Env struct {
	Resolver
	Layout
	Mangler
	Sink
	CallingConventions
	Runtime
}
