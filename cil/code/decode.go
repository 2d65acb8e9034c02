package code

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
)

var ErrInvalidInstruction = errors.New("cil: invalid instruction")

// Body is a decoded method body. Offsets[i] is the IL offset of Instructions[i]; branch labels
// hold instruction indices rather than offsets.
type Body struct {
	Instructions []Instruction
	Offsets      []int
	// Size is the length of the encoded body in bytes.
	Size int
}

// IndexOf returns the index of the instruction that starts at the given IL offset. An offset
// equal to the size of the body maps to len(Instructions).
func (b *Body) IndexOf(offset int) (int, bool) {
	if offset == b.Size {
		return len(b.Instructions), true
	}
	i := sort.SearchInts(b.Offsets, offset)
	if i < len(b.Offsets) && b.Offsets[i] == offset {
		return i, true
	}
	return 0, false
}

type decoder struct {
	body []byte
	pos  int

	ibuf    []Instruction
	offsets []int
}

// Decode decodes an IL byte stream. Prefixes are folded into the instruction they modify.
func Decode(body []byte) (Body, error) {
	d := decoder{body: body}
	return d.decode()
}

func (d *decoder) u8() (byte, error) {
	if d.pos >= len(d.body) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.body[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	if d.pos+2 > len(d.body) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(d.body[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.body) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(d.body[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.body) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint64(d.body[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) opcode() (*Info, error) {
	b, err := d.u8()
	if err != nil {
		return nil, err
	}
	op := Opcode(b)
	if b == 0xfe {
		b, err = d.u8()
		if err != nil {
			return nil, err
		}
		op = 0xfe00 | Opcode(b)
	}
	info, ok := Lookup(op)
	if !ok || op.IsPseudo() {
		return nil, errors.Wrapf(ErrInvalidInstruction, "unknown opcode 0x%04x at offset %d", uint16(op), d.pos)
	}
	return info, nil
}

// operand decodes the inline operand of an instruction. Branch labels are returned as absolute
// IL offsets.
func (d *decoder) operand(info *Info, instr *Instruction) error {
	switch info.Operand {
	case OperandNone:
		return nil
	case OperandInt8, OperandVar8:
		b, err := d.u8()
		if err != nil {
			return err
		}
		if info.Operand == OperandInt8 {
			instr.Immediate = uint64(int64(int8(b)))
		} else {
			instr.Immediate = uint64(b)
		}
	case OperandVar16:
		v, err := d.u16()
		if err != nil {
			return err
		}
		instr.Immediate = uint64(v)
	case OperandInt32:
		v, err := d.u32()
		if err != nil {
			return err
		}
		instr.Immediate = uint64(int64(int32(v)))
	case OperandFloat32:
		v, err := d.u32()
		if err != nil {
			return err
		}
		instr.Immediate = uint64(v)
	case OperandInt64, OperandFloat64:
		v, err := d.u64()
		if err != nil {
			return err
		}
		instr.Immediate = v
	case OperandBranch8:
		b, err := d.u8()
		if err != nil {
			return err
		}
		instr.Labels = []int{d.pos + int(int8(b))}
	case OperandBranch32:
		v, err := d.u32()
		if err != nil {
			return err
		}
		instr.Labels = []int{d.pos + int(int32(v))}
	case OperandSwitch:
		n, err := d.u32()
		if err != nil {
			return err
		}
		if int(n) > (len(d.body)-d.pos)/4 {
			return io.ErrUnexpectedEOF
		}
		deltas := make([]int32, n)
		for i := range deltas {
			v, _ := d.u32()
			deltas[i] = int32(v)
		}
		instr.Labels = make([]int, n)
		for i, delta := range deltas {
			instr.Labels[i] = d.pos + int(delta)
		}
	default:
		v, err := d.u32()
		if err != nil {
			return err
		}
		instr.Immediate = uint64(v)
	}
	return nil
}

func (d *decoder) decodeInstruction() error {
	start := d.pos

	var instr Instruction
	for {
		info, err := d.opcode()
		if err != nil {
			return err
		}
		if !info.Opcode.IsPrefix() {
			instr.Opcode = info.Opcode
			if err := d.operand(info, &instr); err != nil {
				return err
			}
			break
		}

		switch info.Opcode {
		case OpConstrained:
			tok, err := d.u32()
			if err != nil {
				return err
			}
			instr.Prefix, instr.Constrained = instr.Prefix|PrefixConstrained, cil.Token(tok)
		case OpUnaligned:
			b, err := d.u8()
			if err != nil {
				return err
			}
			instr.Prefix, instr.PrefixArg = instr.Prefix|PrefixUnaligned, b
		case OpNo:
			b, err := d.u8()
			if err != nil {
				return err
			}
			instr.Prefix, instr.PrefixArg = instr.Prefix|PrefixNo, b
		case OpVolatile:
			instr.Prefix |= PrefixVolatile
		case OpTail:
			instr.Prefix |= PrefixTail
		case OpReadonly:
			instr.Prefix |= PrefixReadonly
		}
	}

	d.ibuf = append(d.ibuf, instr)
	d.offsets = append(d.offsets, start)
	return nil
}

func (d *decoder) decode() (Body, error) {
	for d.pos < len(d.body) {
		if err := d.decodeInstruction(); err != nil {
			return Body{}, errors.Wrapf(err, "decoding instruction at offset %d", d.pos)
		}
	}

	body := Body{Instructions: d.ibuf, Offsets: d.offsets, Size: len(d.body)}
	for i := range body.Instructions {
		instr := &body.Instructions[i]
		for j, offset := range instr.Labels {
			target, ok := body.IndexOf(offset)
			if !ok {
				return Body{}, errors.Wrapf(ErrInvalidInstruction, "branch at offset %d targets offset %d, which is not an instruction boundary", body.Offsets[i], offset)
			}
			instr.Labels[j] = target
		}
	}
	return body, nil
}
