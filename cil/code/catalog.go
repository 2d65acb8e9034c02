package code

import "fmt"

// OperandKind describes how an instruction's inline operand is encoded.
type OperandKind byte

const (
	OperandNone OperandKind = iota
	OperandInt8
	OperandInt32
	OperandInt64
	OperandFloat32
	OperandFloat64
	OperandVar8
	OperandVar16
	OperandBranch8
	OperandBranch32
	OperandSwitch
	OperandToken
	OperandMethod
	OperandField
	OperandType
	OperandString
	OperandSignature
	// OperandPseudo marks operands that only exist in decomposed streams and have no encoding.
	OperandPseudo
)

// Size returns the encoded size of the operand in bytes. Switch operands are variable-sized and
// report the size of their count prefix.
func (k OperandKind) Size() int {
	switch k {
	case OperandInt8, OperandVar8, OperandBranch8:
		return 1
	case OperandVar16:
		return 2
	case OperandInt64, OperandFloat64:
		return 8
	case OperandNone, OperandPseudo:
		return 0
	}
	return 4
}

// IsToken returns true if the operand is a metadata token.
func (k OperandKind) IsToken() bool {
	switch k {
	case OperandToken, OperandMethod, OperandField, OperandType, OperandString, OperandSignature:
		return true
	}
	return false
}

// FlowControl classifies an instruction's effect on control flow.
type FlowControl byte

const (
	FlowNext FlowControl = iota
	FlowBreak
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	// FlowMeta marks prefixes, which modify the following instruction.
	FlowMeta
)

// FallsThrough returns true if control may continue with the next instruction.
func (f FlowControl) FallsThrough() bool {
	switch f {
	case FlowBranch, FlowReturn, FlowThrow:
		return false
	}
	return true
}

// VarArity marks a pop or push count that depends on the instruction's operand (calls, ret,
// leave).
const VarArity = -1

// Info is the catalog entry for an opcode.
type Info struct {
	Opcode  Opcode
	Name    string
	Pop     int
	Push    int
	Operand OperandKind
	Flow    FlowControl

	// Shuffle marks the direct stack-manipulation pseudo-opcodes, which reorder entries instead of
	// consuming and producing them.
	Shuffle bool
}

var catalog = [...]Info{
	{OpNop, "nop", 0, 0, OperandNone, FlowNext, false},
	{OpBreak, "break", 0, 0, OperandNone, FlowBreak, false},
	{OpLdarg0, "ldarg.0", 0, 1, OperandNone, FlowNext, false},
	{OpLdarg1, "ldarg.1", 0, 1, OperandNone, FlowNext, false},
	{OpLdarg2, "ldarg.2", 0, 1, OperandNone, FlowNext, false},
	{OpLdarg3, "ldarg.3", 0, 1, OperandNone, FlowNext, false},
	{OpLdloc0, "ldloc.0", 0, 1, OperandNone, FlowNext, false},
	{OpLdloc1, "ldloc.1", 0, 1, OperandNone, FlowNext, false},
	{OpLdloc2, "ldloc.2", 0, 1, OperandNone, FlowNext, false},
	{OpLdloc3, "ldloc.3", 0, 1, OperandNone, FlowNext, false},
	{OpStloc0, "stloc.0", 1, 0, OperandNone, FlowNext, false},
	{OpStloc1, "stloc.1", 1, 0, OperandNone, FlowNext, false},
	{OpStloc2, "stloc.2", 1, 0, OperandNone, FlowNext, false},
	{OpStloc3, "stloc.3", 1, 0, OperandNone, FlowNext, false},
	{OpLdargS, "ldarg.s", 0, 1, OperandVar8, FlowNext, false},
	{OpLdargaS, "ldarga.s", 0, 1, OperandVar8, FlowNext, false},
	{OpStargS, "starg.s", 1, 0, OperandVar8, FlowNext, false},
	{OpLdlocS, "ldloc.s", 0, 1, OperandVar8, FlowNext, false},
	{OpLdlocaS, "ldloca.s", 0, 1, OperandVar8, FlowNext, false},
	{OpStlocS, "stloc.s", 1, 0, OperandVar8, FlowNext, false},
	{OpLdnull, "ldnull", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI4M1, "ldc.i4.m1", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI40, "ldc.i4.0", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI41, "ldc.i4.1", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI42, "ldc.i4.2", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI43, "ldc.i4.3", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI44, "ldc.i4.4", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI45, "ldc.i4.5", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI46, "ldc.i4.6", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI47, "ldc.i4.7", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI48, "ldc.i4.8", 0, 1, OperandNone, FlowNext, false},
	{OpLdcI4S, "ldc.i4.s", 0, 1, OperandInt8, FlowNext, false},
	{OpLdcI4, "ldc.i4", 0, 1, OperandInt32, FlowNext, false},
	{OpLdcI8, "ldc.i8", 0, 1, OperandInt64, FlowNext, false},
	{OpLdcR4, "ldc.r4", 0, 1, OperandFloat32, FlowNext, false},
	{OpLdcR8, "ldc.r8", 0, 1, OperandFloat64, FlowNext, false},
	{OpDup, "dup", 1, 2, OperandNone, FlowNext, false},
	{OpPop, "pop", 1, 0, OperandNone, FlowNext, false},
	{OpJmp, "jmp", 0, 0, OperandMethod, FlowCall, false},
	{OpCall, "call", VarArity, VarArity, OperandMethod, FlowCall, false},
	{OpCalli, "calli", VarArity, VarArity, OperandSignature, FlowCall, false},
	{OpRet, "ret", VarArity, 0, OperandNone, FlowReturn, false},
	{OpBrS, "br.s", 0, 0, OperandBranch8, FlowBranch, false},
	{OpBrfalseS, "brfalse.s", 1, 0, OperandBranch8, FlowCondBranch, false},
	{OpBrtrueS, "brtrue.s", 1, 0, OperandBranch8, FlowCondBranch, false},
	{OpBeqS, "beq.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBgeS, "bge.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBgtS, "bgt.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBleS, "ble.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBltS, "blt.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBneUnS, "bne.un.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBgeUnS, "bge.un.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBgtUnS, "bgt.un.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBleUnS, "ble.un.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBltUnS, "blt.un.s", 2, 0, OperandBranch8, FlowCondBranch, false},
	{OpBr, "br", 0, 0, OperandBranch32, FlowBranch, false},
	{OpBrfalse, "brfalse", 1, 0, OperandBranch32, FlowCondBranch, false},
	{OpBrtrue, "brtrue", 1, 0, OperandBranch32, FlowCondBranch, false},
	{OpBeq, "beq", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBge, "bge", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBgt, "bgt", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBle, "ble", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBlt, "blt", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBneUn, "bne.un", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBgeUn, "bge.un", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBgtUn, "bgt.un", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBleUn, "ble.un", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpBltUn, "blt.un", 2, 0, OperandBranch32, FlowCondBranch, false},
	{OpSwitch, "switch", 1, 0, OperandSwitch, FlowCondBranch, false},
	{OpLdindI1, "ldind.i1", 1, 1, OperandNone, FlowNext, false},
	{OpLdindU1, "ldind.u1", 1, 1, OperandNone, FlowNext, false},
	{OpLdindI2, "ldind.i2", 1, 1, OperandNone, FlowNext, false},
	{OpLdindU2, "ldind.u2", 1, 1, OperandNone, FlowNext, false},
	{OpLdindI4, "ldind.i4", 1, 1, OperandNone, FlowNext, false},
	{OpLdindU4, "ldind.u4", 1, 1, OperandNone, FlowNext, false},
	{OpLdindI8, "ldind.i8", 1, 1, OperandNone, FlowNext, false},
	{OpLdindI, "ldind.i", 1, 1, OperandNone, FlowNext, false},
	{OpLdindR4, "ldind.r4", 1, 1, OperandNone, FlowNext, false},
	{OpLdindR8, "ldind.r8", 1, 1, OperandNone, FlowNext, false},
	{OpLdindRef, "ldind.ref", 1, 1, OperandNone, FlowNext, false},
	{OpStindRef, "stind.ref", 2, 0, OperandNone, FlowNext, false},
	{OpStindI1, "stind.i1", 2, 0, OperandNone, FlowNext, false},
	{OpStindI2, "stind.i2", 2, 0, OperandNone, FlowNext, false},
	{OpStindI4, "stind.i4", 2, 0, OperandNone, FlowNext, false},
	{OpStindI8, "stind.i8", 2, 0, OperandNone, FlowNext, false},
	{OpStindR4, "stind.r4", 2, 0, OperandNone, FlowNext, false},
	{OpStindR8, "stind.r8", 2, 0, OperandNone, FlowNext, false},
	{OpAdd, "add", 2, 1, OperandNone, FlowNext, false},
	{OpSub, "sub", 2, 1, OperandNone, FlowNext, false},
	{OpMul, "mul", 2, 1, OperandNone, FlowNext, false},
	{OpDiv, "div", 2, 1, OperandNone, FlowNext, false},
	{OpDivUn, "div.un", 2, 1, OperandNone, FlowNext, false},
	{OpRem, "rem", 2, 1, OperandNone, FlowNext, false},
	{OpRemUn, "rem.un", 2, 1, OperandNone, FlowNext, false},
	{OpAnd, "and", 2, 1, OperandNone, FlowNext, false},
	{OpOr, "or", 2, 1, OperandNone, FlowNext, false},
	{OpXor, "xor", 2, 1, OperandNone, FlowNext, false},
	{OpShl, "shl", 2, 1, OperandNone, FlowNext, false},
	{OpShr, "shr", 2, 1, OperandNone, FlowNext, false},
	{OpShrUn, "shr.un", 2, 1, OperandNone, FlowNext, false},
	{OpNeg, "neg", 1, 1, OperandNone, FlowNext, false},
	{OpNot, "not", 1, 1, OperandNone, FlowNext, false},
	{OpConvI1, "conv.i1", 1, 1, OperandNone, FlowNext, false},
	{OpConvI2, "conv.i2", 1, 1, OperandNone, FlowNext, false},
	{OpConvI4, "conv.i4", 1, 1, OperandNone, FlowNext, false},
	{OpConvI8, "conv.i8", 1, 1, OperandNone, FlowNext, false},
	{OpConvR4, "conv.r4", 1, 1, OperandNone, FlowNext, false},
	{OpConvR8, "conv.r8", 1, 1, OperandNone, FlowNext, false},
	{OpConvU4, "conv.u4", 1, 1, OperandNone, FlowNext, false},
	{OpConvU8, "conv.u8", 1, 1, OperandNone, FlowNext, false},
	{OpCallvirt, "callvirt", VarArity, VarArity, OperandMethod, FlowCall, false},
	{OpCpobj, "cpobj", 2, 0, OperandType, FlowNext, false},
	{OpLdobj, "ldobj", 1, 1, OperandType, FlowNext, false},
	{OpLdstr, "ldstr", 0, 1, OperandString, FlowNext, false},
	{OpNewobj, "newobj", VarArity, 1, OperandMethod, FlowCall, false},
	{OpCastclass, "castclass", 1, 1, OperandType, FlowNext, false},
	{OpIsinst, "isinst", 1, 1, OperandType, FlowNext, false},
	{OpConvRUn, "conv.r.un", 1, 1, OperandNone, FlowNext, false},
	{OpUnbox, "unbox", 1, 1, OperandType, FlowNext, false},
	{OpThrow, "throw", 1, 0, OperandNone, FlowThrow, false},
	{OpLdfld, "ldfld", 1, 1, OperandField, FlowNext, false},
	{OpLdflda, "ldflda", 1, 1, OperandField, FlowNext, false},
	{OpStfld, "stfld", 2, 0, OperandField, FlowNext, false},
	{OpLdsfld, "ldsfld", 0, 1, OperandField, FlowNext, false},
	{OpLdsflda, "ldsflda", 0, 1, OperandField, FlowNext, false},
	{OpStsfld, "stsfld", 1, 0, OperandField, FlowNext, false},
	{OpStobj, "stobj", 2, 0, OperandType, FlowNext, false},
	{OpConvOvfI1Un, "conv.ovf.i1.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI2Un, "conv.ovf.i2.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI4Un, "conv.ovf.i4.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI8Un, "conv.ovf.i8.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU1Un, "conv.ovf.u1.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU2Un, "conv.ovf.u2.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU4Un, "conv.ovf.u4.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU8Un, "conv.ovf.u8.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfIUn, "conv.ovf.i.un", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfUUn, "conv.ovf.u.un", 1, 1, OperandNone, FlowNext, false},
	{OpBox, "box", 1, 1, OperandType, FlowNext, false},
	{OpNewarr, "newarr", 1, 1, OperandType, FlowNext, false},
	{OpLdlen, "ldlen", 1, 1, OperandNone, FlowNext, false},
	{OpLdelema, "ldelema", 2, 1, OperandType, FlowNext, false},
	{OpLdelemI1, "ldelem.i1", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemU1, "ldelem.u1", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemI2, "ldelem.i2", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemU2, "ldelem.u2", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemI4, "ldelem.i4", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemU4, "ldelem.u4", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemI8, "ldelem.i8", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemI, "ldelem.i", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemR4, "ldelem.r4", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemR8, "ldelem.r8", 2, 1, OperandNone, FlowNext, false},
	{OpLdelemRef, "ldelem.ref", 2, 1, OperandNone, FlowNext, false},
	{OpStelemI, "stelem.i", 3, 0, OperandNone, FlowNext, false},
	{OpStelemI1, "stelem.i1", 3, 0, OperandNone, FlowNext, false},
	{OpStelemI2, "stelem.i2", 3, 0, OperandNone, FlowNext, false},
	{OpStelemI4, "stelem.i4", 3, 0, OperandNone, FlowNext, false},
	{OpStelemI8, "stelem.i8", 3, 0, OperandNone, FlowNext, false},
	{OpStelemR4, "stelem.r4", 3, 0, OperandNone, FlowNext, false},
	{OpStelemR8, "stelem.r8", 3, 0, OperandNone, FlowNext, false},
	{OpStelemRef, "stelem.ref", 3, 0, OperandNone, FlowNext, false},
	{OpLdelem, "ldelem", 2, 1, OperandType, FlowNext, false},
	{OpStelem, "stelem", 3, 0, OperandType, FlowNext, false},
	{OpUnboxAny, "unbox.any", 1, 1, OperandType, FlowNext, false},
	{OpConvOvfI1, "conv.ovf.i1", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU1, "conv.ovf.u1", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI2, "conv.ovf.i2", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU2, "conv.ovf.u2", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI4, "conv.ovf.i4", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU4, "conv.ovf.u4", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI8, "conv.ovf.i8", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU8, "conv.ovf.u8", 1, 1, OperandNone, FlowNext, false},
	{OpRefanyval, "refanyval", 1, 1, OperandType, FlowNext, false},
	{OpCkfinite, "ckfinite", 1, 1, OperandNone, FlowNext, false},
	{OpMkrefany, "mkrefany", 1, 1, OperandType, FlowNext, false},
	{OpLdtoken, "ldtoken", 0, 1, OperandToken, FlowNext, false},
	{OpConvU2, "conv.u2", 1, 1, OperandNone, FlowNext, false},
	{OpConvU1, "conv.u1", 1, 1, OperandNone, FlowNext, false},
	{OpConvI, "conv.i", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfI, "conv.ovf.i", 1, 1, OperandNone, FlowNext, false},
	{OpConvOvfU, "conv.ovf.u", 1, 1, OperandNone, FlowNext, false},
	{OpAddOvf, "add.ovf", 2, 1, OperandNone, FlowNext, false},
	{OpAddOvfUn, "add.ovf.un", 2, 1, OperandNone, FlowNext, false},
	{OpMulOvf, "mul.ovf", 2, 1, OperandNone, FlowNext, false},
	{OpMulOvfUn, "mul.ovf.un", 2, 1, OperandNone, FlowNext, false},
	{OpSubOvf, "sub.ovf", 2, 1, OperandNone, FlowNext, false},
	{OpSubOvfUn, "sub.ovf.un", 2, 1, OperandNone, FlowNext, false},
	{OpEndfinally, "endfinally", 0, 0, OperandNone, FlowReturn, false},
	{OpLeave, "leave", VarArity, 0, OperandBranch32, FlowBranch, false},
	{OpLeaveS, "leave.s", VarArity, 0, OperandBranch8, FlowBranch, false},
	{OpStindI, "stind.i", 2, 0, OperandNone, FlowNext, false},
	{OpConvU, "conv.u", 1, 1, OperandNone, FlowNext, false},
	{OpArglist, "arglist", 0, 1, OperandNone, FlowNext, false},
	{OpCeq, "ceq", 2, 1, OperandNone, FlowNext, false},
	{OpCgt, "cgt", 2, 1, OperandNone, FlowNext, false},
	{OpCgtUn, "cgt.un", 2, 1, OperandNone, FlowNext, false},
	{OpClt, "clt", 2, 1, OperandNone, FlowNext, false},
	{OpCltUn, "clt.un", 2, 1, OperandNone, FlowNext, false},
	{OpLdftn, "ldftn", 0, 1, OperandMethod, FlowNext, false},
	{OpLdvirtftn, "ldvirtftn", 1, 1, OperandMethod, FlowNext, false},
	{OpLdarg, "ldarg", 0, 1, OperandVar16, FlowNext, false},
	{OpLdarga, "ldarga", 0, 1, OperandVar16, FlowNext, false},
	{OpStarg, "starg", 1, 0, OperandVar16, FlowNext, false},
	{OpLdloc, "ldloc", 0, 1, OperandVar16, FlowNext, false},
	{OpLdloca, "ldloca", 0, 1, OperandVar16, FlowNext, false},
	{OpStloc, "stloc", 1, 0, OperandVar16, FlowNext, false},
	{OpLocalloc, "localloc", 1, 1, OperandNone, FlowNext, false},
	{OpEndfilter, "endfilter", 1, 0, OperandNone, FlowReturn, false},
	{OpUnaligned, "unaligned.", 0, 0, OperandInt8, FlowMeta, false},
	{OpVolatile, "volatile.", 0, 0, OperandNone, FlowMeta, false},
	{OpTail, "tail.", 0, 0, OperandNone, FlowMeta, false},
	{OpInitobj, "initobj", 1, 0, OperandType, FlowNext, false},
	{OpConstrained, "constrained.", 0, 0, OperandType, FlowMeta, false},
	{OpCpblk, "cpblk", 3, 0, OperandNone, FlowNext, false},
	{OpInitblk, "initblk", 3, 0, OperandNone, FlowNext, false},
	{OpNo, "no.", 0, 0, OperandInt8, FlowMeta, false},
	{OpRethrow, "rethrow", 0, 0, OperandNone, FlowThrow, false},
	{OpSizeof, "sizeof", 0, 1, OperandType, FlowNext, false},
	{OpRefanytype, "refanytype", 1, 1, OperandNone, FlowNext, false},
	{OpReadonly, "readonly.", 0, 0, OperandNone, FlowMeta, false},

	{OpPseudoRotate, "rotate", 0, 0, OperandPseudo, FlowNext, true},
	{OpPseudoMoveTo, "moveto", 0, 0, OperandPseudo, FlowNext, true},
	{OpPseudoAlloc, "alloc", 0, 1, OperandPseudo, FlowNext, false},
	{OpPseudoTypeTest, "typetest", 1, 1, OperandPseudo, FlowNext, false},
	{OpPseudoCastCheck, "castcheck", 2, 1, OperandPseudo, FlowNext, false},
	{OpPseudoRetype, "retype", 1, 1, OperandPseudo, FlowNext, false},
	{OpPseudoTypeInfo, "typeinfo", 0, 1, OperandPseudo, FlowNext, false},
	{OpPseudoMethodInfo, "methodinfo", 0, 1, OperandPseudo, FlowNext, false},
	{OpPseudoFieldInfo, "fieldinfo", 0, 1, OperandPseudo, FlowNext, false},
	{OpPseudoMakeHandle, "makehandle", 1, 1, OperandPseudo, FlowNext, false},
	{OpPseudoCallHelper, "callhelper", VarArity, VarArity, OperandPseudo, FlowCall, false},
}

var (
	oneByte [0x100]*Info
	twoByte [0x100]*Info
	pseudo  [0x100]*Info
	byName  = map[string]*Info{}
)

func init() {
	for i := range catalog {
		info := &catalog[i]
		switch info.Opcode >> 8 {
		case 0x00:
			oneByte[info.Opcode&0xff] = info
		case 0xfe:
			twoByte[info.Opcode&0xff] = info
		case 0xff:
			pseudo[info.Opcode&0xff] = info
		}
		byName[info.Name] = info
	}
}

// Lookup returns the catalog entry for the given opcode.
func Lookup(op Opcode) (*Info, bool) {
	var info *Info
	switch op >> 8 {
	case 0x00:
		info = oneByte[op&0xff]
	case 0xfe:
		info = twoByte[op&0xff]
	case 0xff:
		info = pseudo[op&0xff]
	}
	return info, info != nil
}

// MustLookup returns the catalog entry for the given opcode and panics if there is none.
func MustLookup(op Opcode) *Info {
	info, ok := Lookup(op)
	if !ok {
		panic(fmt.Errorf("unknown opcode 0x%04x", uint16(op)))
	}
	return info
}

// LookupName returns the catalog entry for the instruction with the given mnemonic.
func LookupName(name string) (*Info, bool) {
	info, ok := byName[name]
	return info, ok
}

// Opcodes returns every cataloged opcode in catalog order.
func Opcodes() []Opcode {
	ops := make([]Opcode, len(catalog))
	for i := range catalog {
		ops[i] = catalog[i].Opcode
	}
	return ops
}

func (op Opcode) String() string {
	if info, ok := Lookup(op); ok {
		return info.Name
	}
	return fmt.Sprintf("op(0x%04x)", uint16(op))
}

// IsPrefix returns true for the instruction prefixes.
func (op Opcode) IsPrefix() bool {
	info, ok := Lookup(op)
	return ok && info.Flow == FlowMeta
}

// IsPseudo returns true for opcodes that only appear in decomposed streams.
func (op Opcode) IsPseudo() bool {
	return op>>8 == 0xff
}

// Size returns the encoded size of the opcode itself.
func (op Opcode) Size() int {
	if op>>8 == 0xfe {
		return 2
	}
	return 1
}
