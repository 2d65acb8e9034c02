package tacvm

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// width returns the register width of a category on a 64-bit target.
func width(c cil.Category) int {
	if c == cil.Int32 || c == cil.Float32 {
		return 4
	}
	return 8
}

func mask(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(n)) - 1
}

// signed sign-extends the low n bytes of v.
func signed(v uint64, n int) int64 {
	shift := 64 - 8*uint(n)
	return int64(v<<shift) >> shift
}

// norm keeps the bits of v that a value of category c holds.
func norm(c cil.Category, v uint64) uint64 {
	return v & mask(width(c))
}

func float(c cil.Category, v uint64) float64 {
	if c == cil.Float32 {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(v)
}

func floatBits(c cil.Category, f float64) uint64 {
	if c == cil.Float32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

func (m *Machine) operands(fr *frame, in *tac.Instr) (a, b uint64, err error) {
	if in.A != nil {
		if a, err = m.eval(fr, in.A); err != nil {
			return 0, 0, err
		}
	}
	if in.B != nil {
		if b, err = m.eval(fr, in.B); err != nil {
			return 0, 0, err
		}
	}
	return a, b, nil
}

func (m *Machine) instr(fr *frame, in *tac.Instr) error {
	switch in.Op {
	case tac.OpMov, tac.OpMovVolatile:
		if in.Size != 0 {
			return m.move(fr, in.Result, in.A, in.Size)
		}
		v, err := m.eval(fr, in.A)
		if err != nil {
			return err
		}
		return m.assign(fr, in.Result, v)
	case tac.OpZero:
		addr, err := m.eval(fr, in.A)
		if err != nil {
			return err
		}
		return m.fill(addr, 0, in.Size)
	case tac.OpLocalloc:
		n, err := m.eval(fr, in.A)
		if err != nil {
			return err
		}
		return m.assign(fr, in.Result, m.alloc(int(n)))
	case tac.OpCatch:
		return errors.Newf("%v: catch handlers are not supported", fr.prog.f.Name)
	}

	a, b, err := m.operands(fr, in)
	if err != nil {
		return err
	}

	var r uint64
	switch {
	case in.Op.IsCheck():
		return m.check(fr, in, a, b)
	case in.Op.IsCompare():
		if compare(in.Op, in.Cat, a, b) {
			r = 1
		}
	case in.Op >= tac.OpSext && in.Op <= tac.OpFTrunc:
		r = convert(in.Op, in.Size, in.Cat, a)
	case in.Cat.IsFloat():
		if r, err = floatArith(in.Op, in.Cat, a, b); err != nil {
			return err
		}
	default:
		var o overflow
		if r, o, err = intArith(in.Op, width(in.Cat), a, b); err != nil {
			return err
		}
		if in.Link != nil {
			fr.overflow[in] = o
		}
	}
	return m.assign(fr, in.Result, norm(in.Cat, r))
}

func intArith(op tac.Op, n int, a, b uint64) (uint64, overflow, error) {
	x, y := signed(a, n), signed(b, n)
	ux, uy := a&mask(n), b&mask(n)

	var o overflow
	switch op {
	case tac.OpAdd:
		r, s := ux+uy, x+y
		if n == 8 {
			o.unsigned = r < ux
			o.signed = (x >= 0) == (y >= 0) && (s >= 0) != (x >= 0)
		} else {
			o.unsigned = r > mask(n)
			o.signed = s != signed(uint64(s), n)
		}
		return r, o, nil
	case tac.OpSub:
		r, s := ux-uy, x-y
		o.unsigned = ux < uy
		if n == 8 {
			o.signed = (x >= 0) != (y >= 0) && (s >= 0) != (x >= 0)
		} else {
			o.signed = s != signed(uint64(s), n)
		}
		return r, o, nil
	case tac.OpMul:
		hi, lo := bits.Mul64(ux, uy)
		s := x * y
		if n == 8 {
			o.unsigned = hi != 0
			o.signed = x != 0 && (s/x != y || x == -1 && y == math.MinInt64)
		} else {
			o.unsigned = lo > mask(n)
			o.signed = s != signed(uint64(s), n)
		}
		return lo, o, nil
	case tac.OpDiv, tac.OpRem:
		if y == 0 {
			return 0, o, throw(divideByZero)
		}
		if y == -1 && x == signed(1<<(8*uint(n)-1), n) {
			return 0, o, throw(arithmetic)
		}
		if op == tac.OpDiv {
			return uint64(x / y), o, nil
		}
		return uint64(x % y), o, nil
	case tac.OpDivUn, tac.OpRemUn:
		if uy == 0 {
			return 0, o, throw(divideByZero)
		}
		if op == tac.OpDivUn {
			return ux / uy, o, nil
		}
		return ux % uy, o, nil
	case tac.OpAnd:
		return ux & uy, o, nil
	case tac.OpOr:
		return ux | uy, o, nil
	case tac.OpXor:
		return ux ^ uy, o, nil
	case tac.OpShl:
		return ux << uint(b&0xff), o, nil
	case tac.OpShr:
		return uint64(x >> uint(b&0xff)), o, nil
	case tac.OpShrUn:
		return ux >> uint(b&0xff), o, nil
	case tac.OpNeg:
		return uint64(-x), o, nil
	case tac.OpNot:
		return ^ux, o, nil
	}
	return 0, o, errors.Newf("%v is not an integer operator", op)
}

func floatArith(op tac.Op, c cil.Category, a, b uint64) (uint64, error) {
	x, y := float(c, a), float(c, b)
	var r float64
	switch op {
	case tac.OpAdd:
		r = x + y
	case tac.OpSub:
		r = x - y
	case tac.OpMul:
		r = x * y
	case tac.OpDiv:
		r = x / y
	case tac.OpRem:
		r = math.Mod(x, y)
	case tac.OpNeg:
		r = -x
	default:
		return 0, errors.Newf("%v is not a float operator", op)
	}
	return floatBits(c, r), nil
}

// convert applies a conversion operator. n is the operator's Size; c is the result category.
func convert(op tac.Op, n int, c cil.Category, a uint64) uint64 {
	switch op {
	case tac.OpSext:
		return uint64(signed(a, n))
	case tac.OpZext, tac.OpTrunc:
		return a & mask(n)
	case tac.OpIToF:
		return floatBits(c, float64(signed(a, n)))
	case tac.OpUToF:
		return floatBits(c, float64(a&mask(n)))
	case tac.OpFToI:
		return uint64(signed(uint64(int64(math.Float64frombits(a))), n))
	case tac.OpFToU:
		return ftou(math.Float64frombits(a)) & mask(n)
	case tac.OpFExt:
		return math.Float64bits(float64(math.Float32frombits(uint32(a))))
	}
	return uint64(math.Float32bits(float32(math.Float64frombits(a))))
}

func ftou(f float64) uint64 {
	const two63 = 1 << 63
	if f >= two63 {
		return uint64(int64(f-two63)) | 1<<63
	}
	return uint64(int64(f))
}

func compare(op tac.Op, c cil.Category, a, b uint64) bool {
	if c.IsFloat() {
		x, y := float(c, a), float(c, b)
		unordered := math.IsNaN(x) || math.IsNaN(y)
		switch op {
		case tac.OpCeq:
			return x == y
		case tac.OpCne:
			return x != y
		case tac.OpClt:
			return x < y
		case tac.OpCltUn:
			return x < y || unordered
		case tac.OpCgt:
			return x > y
		case tac.OpCgtUn:
			return x > y || unordered
		case tac.OpCle:
			return x <= y
		case tac.OpCleUn:
			return x <= y || unordered
		case tac.OpCge:
			return x >= y
		case tac.OpCgeUn:
			return x >= y || unordered
		}
		return false
	}

	n := width(c)
	x, y := signed(a, n), signed(b, n)
	ux, uy := a&mask(n), b&mask(n)
	switch op {
	case tac.OpCeq:
		return ux == uy
	case tac.OpCne:
		return ux != uy
	case tac.OpClt:
		return x < y
	case tac.OpCltUn:
		return ux < uy
	case tac.OpCgt:
		return x > y
	case tac.OpCgtUn:
		return ux > uy
	case tac.OpCle:
		return x <= y
	case tac.OpCleUn:
		return ux <= uy
	case tac.OpCge:
		return x >= y
	case tac.OpCgeUn:
		return ux >= uy
	}
	return false
}

func (m *Machine) taken(fr *frame, br *tac.Branch) (bool, error) {
	switch br.Op {
	case tac.OpBr:
		return true, nil
	case tac.OpBrTrue, tac.OpBrFalse:
		v, err := m.eval(fr, br.A)
		if err != nil {
			return false, err
		}
		return (norm(br.Cat, v) != 0) == (br.Op == tac.OpBrTrue), nil
	}
	if !br.Op.IsCompare() {
		return false, errors.Newf("%v is not a branch operator", br.Op)
	}
	a, err := m.eval(fr, br.A)
	if err != nil {
		return false, err
	}
	b, err := m.eval(fr, br.B)
	if err != nil {
		return false, err
	}
	return compare(br.Op, br.Cat, a, b), nil
}

// fits reports whether a value of category c converts to an n-byte integer without overflow.
func fits(op tac.Op, c cil.Category, a uint64, n int) bool {
	if c.IsFloat() {
		f := math.Trunc(float(c, a))
		if math.IsNaN(f) {
			return false
		}
		if op == tac.OpCheckConvI {
			limit := math.Ldexp(1, 8*n-1)
			return f >= -limit && f < limit
		}
		return f >= 0 && f < math.Ldexp(1, 8*n)
	}

	w := width(c)
	x, ux := signed(a, w), a&mask(w)
	maxSigned := int64(mask(n) >> 1)
	switch op {
	case tac.OpCheckConvI:
		return x >= -maxSigned-1 && x <= maxSigned
	case tac.OpCheckConvU:
		return x >= 0 && uint64(x) <= mask(n)
	case tac.OpCheckConvIUn:
		return ux <= uint64(maxSigned)
	}
	return ux <= mask(n)
}

func (m *Machine) check(fr *frame, in *tac.Instr, a, b uint64) error {
	switch in.Op {
	case tac.OpCheckOverflow, tac.OpCheckOverflowUn:
		o, ok := fr.overflow[in.Link]
		if !ok {
			return errors.Newf("%v: %v has no evaluated operation", fr.prog.f.Name, in)
		}
		if in.Op == tac.OpCheckOverflow && o.signed || in.Op == tac.OpCheckOverflowUn && o.unsigned {
			return throw(overflowException)
		}
	case tac.OpCheckConvI, tac.OpCheckConvU, tac.OpCheckConvIUn, tac.OpCheckConvUUn:
		if !fits(in.Op, in.Cat, a, in.Size) {
			return throw(overflowException)
		}
	case tac.OpCheckFinite:
		if f := float(in.Cat, a); math.IsNaN(f) || math.IsInf(f, 0) {
			return throw(arithmetic)
		}
	case tac.OpCheckNull:
		if a == 0 {
			return throw(nullReference)
		}
	case tac.OpCheckBounds:
		if b >= a {
			return throw(indexOutOfRange)
		}
	}
	return nil
}
