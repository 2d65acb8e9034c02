package static

import (
	"fmt"
	"hash/fnv"

	"github.com/pgavlin/cil2tac/cil"
)

// Symbols are readable: methods and fields use their full names, and runtime data labels append a
// $-suffix that cannot occur in metadata names.

func (m *Module) Method(meth *cil.Method) string {
	return meth.FullName()
}

func (m *Module) FieldInfo(f *cil.Field) string {
	return f.FullName() + "$fieldinfo"
}

func (m *Module) TypeInfo(t *cil.Type) string {
	return t.FullName() + "$typeinfo"
}

func (m *Module) StaticStorage(t *cil.Type) string {
	return t.FullName() + "$statics"
}

// StringLiteral names a string literal by a hash of its contents.
func (m *Module) StringLiteral(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("$str%016x", h.Sum64())
}
