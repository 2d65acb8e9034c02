package code

import (
	"math"

	"github.com/pgavlin/cil2tac/cil"
)

func Op(op Opcode) Instruction {
	return Instruction{Opcode: op}
}

func Nop() Instruction {
	return Instruction{Opcode: OpNop}
}

func Dup() Instruction {
	return Instruction{Opcode: OpDup}
}

func Pop() Instruction {
	return Instruction{Opcode: OpPop}
}

func Ldnull() Instruction {
	return Instruction{Opcode: OpLdnull}
}

// LdcI4 returns the shortest form of ldc.i4 that loads v.
func LdcI4(v int32) Instruction {
	switch {
	case v == -1:
		return Instruction{Opcode: OpLdcI4M1}
	case v >= 0 && v <= 8:
		return Instruction{Opcode: OpLdcI40 + Opcode(v)}
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return Instruction{Opcode: OpLdcI4S, Immediate: uint64(int64(v))}
	}
	return Instruction{Opcode: OpLdcI4, Immediate: uint64(int64(v))}
}

func LdcI8(v int64) Instruction {
	return Instruction{Opcode: OpLdcI8, Immediate: uint64(v)}
}

func LdcR4(v float32) Instruction {
	return Instruction{Opcode: OpLdcR4, Immediate: uint64(math.Float32bits(v))}
}

func LdcR8(v float64) Instruction {
	return Instruction{Opcode: OpLdcR8, Immediate: math.Float64bits(v)}
}

// Ldarg returns the shortest form of ldarg that loads argument argidx.
func Ldarg(argidx int) Instruction {
	switch {
	case argidx < 4:
		return Instruction{Opcode: OpLdarg0 + Opcode(argidx)}
	case argidx < 0x100:
		return Instruction{Opcode: OpLdargS, Immediate: uint64(argidx)}
	}
	return Instruction{Opcode: OpLdarg, Immediate: uint64(argidx)}
}

func Ldarga(argidx int) Instruction {
	if argidx < 0x100 {
		return Instruction{Opcode: OpLdargaS, Immediate: uint64(argidx)}
	}
	return Instruction{Opcode: OpLdarga, Immediate: uint64(argidx)}
}

func Starg(argidx int) Instruction {
	if argidx < 0x100 {
		return Instruction{Opcode: OpStargS, Immediate: uint64(argidx)}
	}
	return Instruction{Opcode: OpStarg, Immediate: uint64(argidx)}
}

func Ldloc(localidx int) Instruction {
	switch {
	case localidx < 4:
		return Instruction{Opcode: OpLdloc0 + Opcode(localidx)}
	case localidx < 0x100:
		return Instruction{Opcode: OpLdlocS, Immediate: uint64(localidx)}
	}
	return Instruction{Opcode: OpLdloc, Immediate: uint64(localidx)}
}

func Ldloca(localidx int) Instruction {
	if localidx < 0x100 {
		return Instruction{Opcode: OpLdlocaS, Immediate: uint64(localidx)}
	}
	return Instruction{Opcode: OpLdloca, Immediate: uint64(localidx)}
}

func Stloc(localidx int) Instruction {
	switch {
	case localidx < 4:
		return Instruction{Opcode: OpStloc0 + Opcode(localidx)}
	case localidx < 0x100:
		return Instruction{Opcode: OpStlocS, Immediate: uint64(localidx)}
	}
	return Instruction{Opcode: OpStloc, Immediate: uint64(localidx)}
}

// Branch returns a branch instruction with the given opcode and target instruction index.
func Branch(op Opcode, target int) Instruction {
	return Instruction{Opcode: op, Labels: []int{target}}
}

func Br(target int) Instruction {
	return Branch(OpBr, target)
}

func Brtrue(target int) Instruction {
	return Branch(OpBrtrue, target)
}

func Brfalse(target int) Instruction {
	return Branch(OpBrfalse, target)
}

func Leave(target int) Instruction {
	return Branch(OpLeave, target)
}

func Switch(targets ...int) Instruction {
	labels := make([]int, len(targets))
	copy(labels, targets)
	return Instruction{Opcode: OpSwitch, Labels: labels}
}

func Ret() Instruction {
	return Instruction{Opcode: OpRet}
}

func Throw() Instruction {
	return Instruction{Opcode: OpThrow}
}

// Tok returns an instruction with the given opcode and token operand.
func Tok(op Opcode, tok cil.Token) Instruction {
	return Instruction{Opcode: op, Immediate: uint64(tok)}
}

func Call(tok cil.Token) Instruction {
	return Tok(OpCall, tok)
}

func Callvirt(tok cil.Token) Instruction {
	return Tok(OpCallvirt, tok)
}

func Newobj(tok cil.Token) Instruction {
	return Tok(OpNewobj, tok)
}

func Ldstr(tok cil.Token) Instruction {
	return Tok(OpLdstr, tok)
}

func Ldfld(tok cil.Token) Instruction {
	return Tok(OpLdfld, tok)
}

func Stfld(tok cil.Token) Instruction {
	return Tok(OpStfld, tok)
}

func Box(tok cil.Token) Instruction {
	return Tok(OpBox, tok)
}

func Constrained(tok cil.Token, instr Instruction) Instruction {
	instr.Prefix |= PrefixConstrained
	instr.Constrained = tok
	return instr
}

func Volatile(instr Instruction) Instruction {
	instr.Prefix |= PrefixVolatile
	return instr
}

func Tail(instr Instruction) Instruction {
	instr.Prefix |= PrefixTail
	return instr
}

func Unaligned(alignment uint8, instr Instruction) Instruction {
	instr.Prefix |= PrefixUnaligned
	instr.PrefixArg = alignment
	return instr
}

// Rotate returns a pseudo-instruction that moves the stack entry at the given depth to the top
// of the stack. Depth 0 is the top of the stack.
func Rotate(depth int) Instruction {
	return Instruction{Opcode: OpPseudoRotate, Immediate: uint64(depth)}
}

// MoveTo returns a pseudo-instruction that moves the top of the stack to the given depth.
func MoveTo(depth int) Instruction {
	return Instruction{Opcode: OpPseudoMoveTo, Immediate: uint64(depth)}
}
