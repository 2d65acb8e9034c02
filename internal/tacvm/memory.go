package tacvm

import (
	"unicode/utf16"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
)

const (
	nullReference     = "System.NullReferenceException"
	indexOutOfRange   = "System.IndexOutOfRangeException"
	invalidCast       = "System.InvalidCastException"
	overflowException = "System.OverflowException"
	divideByZero      = "System.DivideByZeroException"
	arithmetic        = "System.ArithmeticException"
	missingMethod     = "System.MissingMethodException"
	arrayTypeMismatch = "System.ArrayTypeMismatchException"
)

// Exception is a managed exception that escaped evaluation.
type Exception struct {
	// Type names the exception's type.
	Type string
	// Object is the thrown object, or 0 for exceptions raised by the runtime.
	Object uint64
}

func (e *Exception) Error() string {
	return "unhandled exception " + e.Type
}

func throw(typ string) error {
	return &Exception{Type: typ}
}

func (m *Machine) alloc(n int) uint64 {
	if pad := len(m.mem) % 16; pad != 0 {
		m.mem = append(m.mem, make([]byte, 16-pad)...)
	}
	addr := uint64(len(m.mem))
	m.mem = append(m.mem, make([]byte, n)...)
	return addr
}

func (m *Machine) span(addr uint64, n int) ([]byte, error) {
	if addr < nullPage {
		return nil, throw(nullReference)
	}
	end := addr + uint64(n)
	if end < addr || end > uint64(len(m.mem)) {
		return nil, errors.Newf("access to %d bytes at %#x is out of bounds", n, addr)
	}
	return m.mem[addr:end], nil
}

// Read returns the n little-endian bytes at addr, zero-extended.
func (m *Machine) Read(addr uint64, n int) (uint64, error) {
	b, err := m.span(addr, n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// Write stores the low n bytes of v at addr.
func (m *Machine) Write(addr uint64, n int, v uint64) error {
	b, err := m.span(addr, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return nil
}

func (m *Machine) copyValue(dst, src uint64, n int) error {
	if n == 0 {
		return nil
	}
	from, err := m.span(src, n)
	if err != nil {
		return err
	}
	to, err := m.span(dst, n)
	if err != nil {
		return err
	}
	copy(to, from)
	return nil
}

func (m *Machine) fill(addr uint64, v byte, n int) error {
	if n == 0 {
		return nil
	}
	b, err := m.span(addr, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = v
	}
	return nil
}

func (m *Machine) newObject(ti uint64, size int) (uint64, error) {
	obj := m.alloc(max(size, m.ptr))
	return obj, m.Write(obj, m.ptr, ti)
}

func (m *Machine) stringLayout() (uint64, int, int, error) {
	str, err := m.module.WellKnown(cil.KnownString)
	if err != nil {
		return 0, 0, 0, err
	}
	ti, err := m.TypeInfo(str)
	if err != nil {
		return 0, 0, 0, err
	}
	l, err := m.module.ObjectLayout(str)
	if err != nil {
		return 0, 0, 0, err
	}
	return ti, l.LengthOffset, l.DataOffset, nil
}

func (m *Machine) allocString(n int) (uint64, error) {
	if n < 0 {
		return 0, throw(overflowException)
	}
	ti, lengthOffset, dataOffset, err := m.stringLayout()
	if err != nil {
		return 0, err
	}
	str, err := m.newObject(ti, dataOffset+2*n+2)
	if err != nil {
		return 0, err
	}
	return str, m.Write(str+uint64(lengthOffset), 4, uint64(n))
}

// NewString allocates a string object holding s.
func (m *Machine) NewString(s string) (uint64, error) {
	units := utf16.Encode([]rune(s))
	str, err := m.allocString(len(units))
	if err != nil {
		return 0, err
	}
	_, _, dataOffset, err := m.stringLayout()
	if err != nil {
		return 0, err
	}
	for i, u := range units {
		if err := m.Write(str+uint64(dataOffset+2*i), 2, uint64(u)); err != nil {
			return 0, err
		}
	}
	return str, nil
}

// ReadString returns the contents of a string object.
func (m *Machine) ReadString(str uint64) (string, error) {
	_, lengthOffset, dataOffset, err := m.stringLayout()
	if err != nil {
		return "", err
	}
	n, err := m.Read(str+uint64(lengthOffset), 4)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		u, err := m.Read(str+uint64(dataOffset+2*i), 2)
		if err != nil {
			return "", err
		}
		units[i] = uint16(u)
	}
	return string(utf16.Decode(units)), nil
}
