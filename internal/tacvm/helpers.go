package tacvm

import (
	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/env/static"
)

func (m *Machine) registerNatives() error {
	helpers := map[cil.Helper]Native{
		cil.HelperAllocString:           allocString,
		cil.HelperAllocObject:           allocObject,
		cil.HelperNewArray:              newArray,
		cil.HelperIsInstanceOfClass:     isInstanceOfClass,
		cil.HelperIsInstanceOfInterface: isInstanceOfInterface,
		cil.HelperIsInstanceOfArray:     isInstanceOfArray,
		cil.HelperThrowInvalidCast:      throws(invalidCast),
		cil.HelperThrowMissingMethod:    throws(missingMethod),
		cil.HelperThrowNullReference:    throws(nullReference),
		cil.HelperThrowIndexOutOfRange:  throws(indexOutOfRange),
		cil.HelperThrowOverflow:         throws(overflowException),
		cil.HelperThrow:                 throwObject,
		cil.HelperUnboxCheck:            unboxCheck,
		cil.HelperArrayStoreCheck:       arrayStoreCheck,
		cil.HelperMemmove:               memmove,
		cil.HelperMemset:                memset,
		cil.HelperStaticInit:            staticInit,
	}
	for h, fn := range helpers {
		meth, err := m.module.Helper(h)
		if err != nil {
			return err
		}
		m.natives[m.module.Method(meth)] = fn
	}

	m.natives["System.String::.ctor(System.Char[])"] = stringFromChars
	m.natives["System.String::.ctor(System.Char,System.Int32)"] = stringFromChar
	return nil
}

func throws(typ string) Native {
	return func(m *Machine, args []uint64) (uint64, error) {
		return 0, throw(typ)
	}
}

func throwObject(m *Machine, args []uint64) (uint64, error) {
	if args[0] == 0 {
		return 0, throw(nullReference)
	}
	t, err := m.TypeOf(args[0])
	if err != nil {
		return 0, err
	}
	return 0, &Exception{Type: t.FullName(), Object: args[0]}
}

func allocString(m *Machine, args []uint64) (uint64, error) {
	return m.allocString(int(int32(args[0])))
}

func allocObject(m *Machine, args []uint64) (uint64, error) {
	t, err := m.typeAt(args[0])
	if err != nil {
		return 0, err
	}
	l, err := m.module.ObjectLayout(t)
	if err != nil {
		return 0, err
	}
	return m.newObject(args[0], l.Size)
}

func newArray(m *Machine, args []uint64) (uint64, error) {
	t, err := m.typeAt(args[0])
	if err != nil {
		return 0, err
	}
	n := int64(args[1])
	if n < 0 {
		return 0, throw(overflowException)
	}
	l, err := m.module.ObjectLayout(t)
	if err != nil {
		return 0, err
	}
	arr, err := m.newObject(args[0], l.DataOffset+int(n)*l.ElementSize)
	if err != nil {
		return 0, err
	}
	return arr, m.Write(arr+uint64(l.LengthOffset), 4, uint64(n))
}

func isInstanceOfClass(m *Machine, args []uint64) (uint64, error) {
	obj, target := args[0], args[1]
	if obj == 0 {
		return 0, nil
	}
	ti, err := m.Read(obj, m.ptr)
	for err == nil && ti != 0 {
		if ti == target {
			return obj, nil
		}
		ti, err = m.Read(ti+uint64(static.TypeInfoBase*m.ptr), m.ptr)
	}
	return 0, err
}

func isInstanceOfInterface(m *Machine, args []uint64) (uint64, error) {
	obj, target := args[0], args[1]
	if obj == 0 {
		return 0, nil
	}
	ti, err := m.Read(obj, m.ptr)
	if err != nil {
		return 0, err
	}
	table, err := m.Read(ti+uint64(static.TypeInfoITable*m.ptr), m.ptr)
	if err != nil || table == 0 {
		return 0, err
	}
	for ; ; table += uint64(m.ptr) {
		rec, err := m.Read(table, m.ptr)
		if err != nil || rec == 0 {
			return 0, err
		}
		ident, err := m.Read(rec, m.ptr)
		if err != nil {
			return 0, err
		}
		if ident == target {
			return obj, nil
		}
	}
}

func isInstanceOfArray(m *Machine, args []uint64) (uint64, error) {
	obj := args[0]
	if obj == 0 {
		return 0, nil
	}
	t, err := m.TypeOf(obj)
	if err != nil {
		return 0, err
	}
	target, err := m.typeAt(args[1])
	if err != nil {
		return 0, err
	}
	if cil.SameType(t, target) || t.IsAssignableTo(target) {
		return obj, nil
	}
	return 0, nil
}

func unboxCheck(m *Machine, args []uint64) (uint64, error) {
	if args[0] == 0 {
		return 0, throw(nullReference)
	}
	ti, err := m.Read(args[0], m.ptr)
	if err != nil {
		return 0, err
	}
	if ti != args[1] {
		return 0, throw(invalidCast)
	}
	return 0, nil
}

func arrayStoreCheck(m *Machine, args []uint64) (uint64, error) {
	arr, v := args[0], args[1]
	if arr == 0 {
		return 0, throw(nullReference)
	}
	if v == 0 {
		return 0, nil
	}
	at, err := m.TypeOf(arr)
	if err != nil {
		return 0, err
	}
	if !at.IsArray() {
		return 0, errors.Newf("array store into %v", at)
	}
	vt, err := m.TypeOf(v)
	if err != nil {
		return 0, err
	}
	if cil.SameType(vt, at.Elem) || vt.IsAssignableTo(at.Elem) {
		return 0, nil
	}
	return 0, throw(arrayTypeMismatch)
}

func memmove(m *Machine, args []uint64) (uint64, error) {
	return 0, m.copyValue(args[0], args[1], int(args[2]))
}

func memset(m *Machine, args []uint64) (uint64, error) {
	return 0, m.fill(args[0], byte(args[1]), int(args[2]))
}

func staticInit(m *Machine, args []uint64) (uint64, error) {
	t, err := m.typeAt(args[0])
	if err != nil {
		return 0, err
	}
	return 0, m.initType(t)
}

func stringFromChars(m *Machine, args []uint64) (uint64, error) {
	str, chars := args[0], args[1]
	if chars == 0 {
		return 0, nil
	}
	l, err := m.module.ObjectLayout(cil.ArrayOf(cil.Primitive(cil.ElementChar)))
	if err != nil {
		return 0, err
	}
	n, err := m.Read(chars+uint64(l.LengthOffset), 4)
	if err != nil {
		return 0, err
	}
	_, _, dataOffset, err := m.stringLayout()
	if err != nil {
		return 0, err
	}
	return 0, m.copyValue(str+uint64(dataOffset), chars+uint64(l.DataOffset), 2*int(n))
}

func stringFromChar(m *Machine, args []uint64) (uint64, error) {
	str, c, n := args[0], args[1], int(int32(args[2]))
	_, _, dataOffset, err := m.stringLayout()
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		if err := m.Write(str+uint64(dataOffset+2*i), 2, c); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
