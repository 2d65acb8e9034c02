package code

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// EncodedSize returns the number of bytes the instruction occupies in an IL stream, including
// its prefixes.
func EncodedSize(instr Instruction) int {
	size := instr.Opcode.Size()
	if instr.Prefix&PrefixConstrained != 0 {
		size += OpConstrained.Size() + 4
	}
	if instr.Prefix&PrefixUnaligned != 0 {
		size += OpUnaligned.Size() + 1
	}
	if instr.Prefix&PrefixNo != 0 {
		size += OpNo.Size() + 1
	}
	if instr.Prefix&PrefixVolatile != 0 {
		size += OpVolatile.Size()
	}
	if instr.Prefix&PrefixTail != 0 {
		size += OpTail.Size()
	}
	if instr.Prefix&PrefixReadonly != 0 {
		size += OpReadonly.Size()
	}

	info := MustLookup(instr.Opcode)
	size += info.Operand.Size()
	if info.Operand == OperandSwitch {
		size += 4 * len(instr.Labels)
	}
	return size
}

func writeOpcode(w *bytes.Buffer, op Opcode) {
	if op.Size() == 2 {
		w.WriteByte(0xfe)
	}
	w.WriteByte(byte(op))
}

// Encode encodes a sequence of instructions into an IL byte stream. Branch labels are
// instruction indices; an index equal to len(instrs) refers to the end of the body.
func Encode(instrs []Instruction) ([]byte, error) {
	offsets := make([]int, len(instrs)+1)
	for i, instr := range instrs {
		if instr.Opcode.IsPseudo() {
			return nil, errors.Wrapf(ErrInvalidInstruction, "%v has no encoding", instr.Opcode)
		}
		if _, ok := Lookup(instr.Opcode); !ok {
			return nil, errors.Wrapf(ErrInvalidInstruction, "unknown opcode 0x%04x", uint16(instr.Opcode))
		}
		offsets[i+1] = offsets[i] + EncodedSize(instr)
	}

	var w bytes.Buffer
	var scratch [8]byte
	for i, instr := range instrs {
		if instr.Prefix&PrefixConstrained != 0 {
			writeOpcode(&w, OpConstrained)
			binary.LittleEndian.PutUint32(scratch[:], uint32(instr.Constrained))
			w.Write(scratch[:4])
		}
		if instr.Prefix&PrefixUnaligned != 0 {
			writeOpcode(&w, OpUnaligned)
			w.WriteByte(instr.PrefixArg)
		}
		if instr.Prefix&PrefixNo != 0 {
			writeOpcode(&w, OpNo)
			w.WriteByte(instr.PrefixArg)
		}
		if instr.Prefix&PrefixVolatile != 0 {
			writeOpcode(&w, OpVolatile)
		}
		if instr.Prefix&PrefixTail != 0 {
			writeOpcode(&w, OpTail)
		}
		if instr.Prefix&PrefixReadonly != 0 {
			writeOpcode(&w, OpReadonly)
		}
		writeOpcode(&w, instr.Opcode)

		next := offsets[i+1]
		target := func(label int) (int, error) {
			if label < 0 || label > len(instrs) {
				return 0, errors.Wrapf(ErrInvalidInstruction, "instruction %d: branch target %d out of range", i, label)
			}
			return offsets[label] - next, nil
		}

		switch info := MustLookup(instr.Opcode); info.Operand {
		case OperandNone:
		case OperandInt8, OperandVar8:
			w.WriteByte(byte(instr.Immediate))
		case OperandVar16:
			binary.LittleEndian.PutUint16(scratch[:], uint16(instr.Immediate))
			w.Write(scratch[:2])
		case OperandInt64, OperandFloat64:
			binary.LittleEndian.PutUint64(scratch[:], instr.Immediate)
			w.Write(scratch[:8])
		case OperandBranch8:
			delta, err := target(instr.Label())
			if err != nil {
				return nil, err
			}
			if delta < math.MinInt8 || delta > math.MaxInt8 {
				return nil, errors.Wrapf(ErrInvalidInstruction, "instruction %d: short branch delta %d out of range", i, delta)
			}
			w.WriteByte(byte(int8(delta)))
		case OperandBranch32:
			delta, err := target(instr.Label())
			if err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint32(scratch[:], uint32(int32(delta)))
			w.Write(scratch[:4])
		case OperandSwitch:
			binary.LittleEndian.PutUint32(scratch[:], uint32(len(instr.Labels)))
			w.Write(scratch[:4])
			for _, l := range instr.Labels {
				delta, err := target(l)
				if err != nil {
					return nil, err
				}
				binary.LittleEndian.PutUint32(scratch[:], uint32(int32(delta)))
				w.Write(scratch[:4])
			}
		default:
			binary.LittleEndian.PutUint32(scratch[:], uint32(instr.Immediate))
			w.Write(scratch[:4])
		}
	}
	return w.Bytes(), nil
}
