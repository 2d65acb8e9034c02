// Package asm implements a small textual assembler for CIL method bodies.
//
// Each line holds an optional label definition followed by an optional instruction:
//
//	loop:
//	  ldarg.0
//	  constrained. MyStruct callvirt System.Object::ToString()
//	  brtrue.s loop
//	  switch (a, b, c)
//	  ldstr "hello"
//
// Token operands are named; the assembler resolves names through a Symbols table. Comments
// start with "//".
package asm

import (
	"bufio"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
)

// Symbols resolves the named operands of an assembly listing to metadata tokens.
type Symbols interface {
	// Token returns the token for a type, method, field or signature name. The operand kind
	// identifies which table the name refers to; OperandToken names may refer to any of them.
	Token(kind code.OperandKind, name string) (cil.Token, error)
	// String returns the user-string token for a literal.
	String(s string) (cil.Token, error)
}

// An Error is an assembly error at a specific line.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type line struct {
	number   int
	mnemonic string
	operand  string
}

type assembler struct {
	syms   Symbols
	labels map[string]int
	lines  []line
}

// Assemble assembles a listing into a sequence of instructions. Branch operands are resolved to
// instruction indices.
func Assemble(src string, syms Symbols) ([]code.Instruction, error) {
	instrs, _, err := AssembleWithLabels(src, syms)
	return instrs, err
}

// AssembleWithLabels is like Assemble, but also returns the instruction index of each label. A
// label after the last instruction maps to the instruction count.
func AssembleWithLabels(src string, syms Symbols) ([]code.Instruction, map[string]int, error) {
	a := assembler{syms: syms, labels: map[string]int{}}
	if err := a.scan(src); err != nil {
		return nil, nil, err
	}
	instrs, err := a.assemble()
	if err != nil {
		return nil, nil, err
	}
	return instrs, a.labels, nil
}

// MustAssemble is like Assemble but panics on error.
func MustAssemble(src string, syms Symbols) []code.Instruction {
	instrs, err := Assemble(src, syms)
	if err != nil {
		panic(err)
	}
	return instrs
}

func splitMnemonic(text string) (string, string) {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t"); i != -1 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

func isLabel(s string) bool {
	if !strings.HasSuffix(s, ":") || len(s) == 1 {
		return false
	}
	for _, r := range s[:len(s)-1] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// scan splits the listing into label definitions and instruction lines.
func (a *assembler) scan(src string) error {
	s := bufio.NewScanner(strings.NewReader(src))
	for number := 1; s.Scan(); number++ {
		text := s.Text()
		if i := strings.Index(text, "//"); i != -1 && !strings.Contains(text[:i], "\"") {
			text = text[:i]
		}
		text = strings.TrimSpace(text)

		for {
			first, rest := splitMnemonic(text)
			if !isLabel(first) {
				break
			}
			name := first[:len(first)-1]
			if _, ok := a.labels[name]; ok {
				return &Error{Line: number, Err: errors.Newf("duplicate label %q", name)}
			}
			a.labels[name] = len(a.lines)
			text = rest
		}
		if text == "" {
			continue
		}

		mnemonic, operand := splitMnemonic(text)
		a.lines = append(a.lines, line{number: number, mnemonic: mnemonic, operand: operand})
	}
	return s.Err()
}

func (a *assembler) label(name string) (int, error) {
	target, ok := a.labels[strings.TrimSpace(name)]
	if !ok {
		return 0, errors.Newf("undefined label %q", name)
	}
	return target, nil
}

func (a *assembler) assemble() ([]code.Instruction, error) {
	instrs := make([]code.Instruction, 0, len(a.lines))
	for _, l := range a.lines {
		instr, err := a.instruction(l.mnemonic, l.operand)
		if err != nil {
			return nil, &Error{Line: l.number, Err: err}
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func (a *assembler) instruction(mnemonic, operand string) (code.Instruction, error) {
	info, ok := code.LookupName(mnemonic)
	if !ok {
		return code.Instruction{}, errors.Newf("unknown instruction %q", mnemonic)
	}

	if info.Opcode.IsPrefix() {
		return a.prefixed(info, operand)
	}

	instr := code.Instruction{Opcode: info.Opcode}
	switch info.Operand {
	case code.OperandNone:
		if operand != "" {
			return code.Instruction{}, errors.Newf("%v takes no operand", mnemonic)
		}
	case code.OperandInt8, code.OperandInt32, code.OperandInt64, code.OperandVar8, code.OperandVar16:
		v, err := strconv.ParseInt(operand, 0, 64)
		if err != nil {
			return code.Instruction{}, errors.Wrapf(err, "%v", mnemonic)
		}
		instr.Immediate = uint64(v)
	case code.OperandFloat32:
		v, err := strconv.ParseFloat(operand, 32)
		if err != nil {
			return code.Instruction{}, errors.Wrapf(err, "%v", mnemonic)
		}
		instr.Immediate = uint64(math.Float32bits(float32(v)))
	case code.OperandFloat64:
		v, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return code.Instruction{}, errors.Wrapf(err, "%v", mnemonic)
		}
		instr.Immediate = math.Float64bits(v)
	case code.OperandBranch8, code.OperandBranch32:
		target, err := a.label(operand)
		if err != nil {
			return code.Instruction{}, err
		}
		instr.Labels = []int{target}
	case code.OperandSwitch:
		if !strings.HasPrefix(operand, "(") || !strings.HasSuffix(operand, ")") {
			return code.Instruction{}, errors.Newf("malformed switch table %q", operand)
		}
		names := strings.Split(operand[1:len(operand)-1], ",")
		for _, name := range names {
			target, err := a.label(name)
			if err != nil {
				return code.Instruction{}, err
			}
			instr.Labels = append(instr.Labels, target)
		}
	case code.OperandString:
		s, err := strconv.Unquote(operand)
		if err != nil {
			return code.Instruction{}, errors.Wrapf(err, "malformed string literal %s", operand)
		}
		tok, err := a.syms.String(s)
		if err != nil {
			return code.Instruction{}, err
		}
		instr.Immediate = uint64(tok)
	case code.OperandPseudo:
		if info.Shuffle {
			depth, err := strconv.Atoi(operand)
			if err != nil {
				return code.Instruction{}, errors.Wrapf(err, "%v", mnemonic)
			}
			instr.Immediate = uint64(depth)
		}
	default:
		tok, err := a.syms.Token(info.Operand, operand)
		if err != nil {
			return code.Instruction{}, err
		}
		instr.Immediate = uint64(tok)
	}
	return instr, nil
}

// prefixed assembles a prefix together with the instruction that follows it on the same line.
func (a *assembler) prefixed(info *code.Info, rest string) (code.Instruction, error) {
	var arg string
	switch info.Opcode {
	case code.OpConstrained, code.OpUnaligned, code.OpNo:
		arg, rest = splitMnemonic(rest)
	}

	mnemonic, operand := splitMnemonic(rest)
	if mnemonic == "" {
		return code.Instruction{}, errors.Newf("%v must precede an instruction", info.Name)
	}
	instr, err := a.instruction(mnemonic, operand)
	if err != nil {
		return code.Instruction{}, err
	}

	switch info.Opcode {
	case code.OpConstrained:
		tok, err := a.syms.Token(code.OperandType, arg)
		if err != nil {
			return code.Instruction{}, err
		}
		return code.Constrained(tok, instr), nil
	case code.OpUnaligned, code.OpNo:
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return code.Instruction{}, errors.Wrapf(err, "%v", info.Name)
		}
		if info.Opcode == code.OpNo {
			instr.Prefix, instr.PrefixArg = instr.Prefix|code.PrefixNo, uint8(v)
			return instr, nil
		}
		return code.Unaligned(uint8(v), instr), nil
	case code.OpVolatile:
		return code.Volatile(instr), nil
	case code.OpTail:
		return code.Tail(instr), nil
	default:
		instr.Prefix |= code.PrefixReadonly
		return instr, nil
	}
}
