package code

// An Opcode identifies an instruction. One-byte opcodes use their encoded value and two-byte
// opcodes are 0xFE00 | the second byte. Pseudo-opcodes, which only appear in decomposed
// instruction streams, start at 0xFF00.
type Opcode uint16

const (
	OpNop         Opcode = 0x00
	OpBreak       Opcode = 0x01
	OpLdarg0      Opcode = 0x02
	OpLdarg1      Opcode = 0x03
	OpLdarg2      Opcode = 0x04
	OpLdarg3      Opcode = 0x05
	OpLdloc0      Opcode = 0x06
	OpLdloc1      Opcode = 0x07
	OpLdloc2      Opcode = 0x08
	OpLdloc3      Opcode = 0x09
	OpStloc0      Opcode = 0x0a
	OpStloc1      Opcode = 0x0b
	OpStloc2      Opcode = 0x0c
	OpStloc3      Opcode = 0x0d
	OpLdargS      Opcode = 0x0e
	OpLdargaS     Opcode = 0x0f
	OpStargS      Opcode = 0x10
	OpLdlocS      Opcode = 0x11
	OpLdlocaS     Opcode = 0x12
	OpStlocS      Opcode = 0x13
	OpLdnull      Opcode = 0x14
	OpLdcI4M1     Opcode = 0x15
	OpLdcI40      Opcode = 0x16
	OpLdcI41      Opcode = 0x17
	OpLdcI42      Opcode = 0x18
	OpLdcI43      Opcode = 0x19
	OpLdcI44      Opcode = 0x1a
	OpLdcI45      Opcode = 0x1b
	OpLdcI46      Opcode = 0x1c
	OpLdcI47      Opcode = 0x1d
	OpLdcI48      Opcode = 0x1e
	OpLdcI4S      Opcode = 0x1f
	OpLdcI4       Opcode = 0x20
	OpLdcI8       Opcode = 0x21
	OpLdcR4       Opcode = 0x22
	OpLdcR8       Opcode = 0x23
	OpDup         Opcode = 0x25
	OpPop         Opcode = 0x26
	OpJmp         Opcode = 0x27
	OpCall        Opcode = 0x28
	OpCalli       Opcode = 0x29
	OpRet         Opcode = 0x2a
	OpBrS         Opcode = 0x2b
	OpBrfalseS    Opcode = 0x2c
	OpBrtrueS     Opcode = 0x2d
	OpBeqS        Opcode = 0x2e
	OpBgeS        Opcode = 0x2f
	OpBgtS        Opcode = 0x30
	OpBleS        Opcode = 0x31
	OpBltS        Opcode = 0x32
	OpBneUnS      Opcode = 0x33
	OpBgeUnS      Opcode = 0x34
	OpBgtUnS      Opcode = 0x35
	OpBleUnS      Opcode = 0x36
	OpBltUnS      Opcode = 0x37
	OpBr          Opcode = 0x38
	OpBrfalse     Opcode = 0x39
	OpBrtrue      Opcode = 0x3a
	OpBeq         Opcode = 0x3b
	OpBge         Opcode = 0x3c
	OpBgt         Opcode = 0x3d
	OpBle         Opcode = 0x3e
	OpBlt         Opcode = 0x3f
	OpBneUn       Opcode = 0x40
	OpBgeUn       Opcode = 0x41
	OpBgtUn       Opcode = 0x42
	OpBleUn       Opcode = 0x43
	OpBltUn       Opcode = 0x44
	OpSwitch      Opcode = 0x45
	OpLdindI1     Opcode = 0x46
	OpLdindU1     Opcode = 0x47
	OpLdindI2     Opcode = 0x48
	OpLdindU2     Opcode = 0x49
	OpLdindI4     Opcode = 0x4a
	OpLdindU4     Opcode = 0x4b
	OpLdindI8     Opcode = 0x4c
	OpLdindI      Opcode = 0x4d
	OpLdindR4     Opcode = 0x4e
	OpLdindR8     Opcode = 0x4f
	OpLdindRef    Opcode = 0x50
	OpStindRef    Opcode = 0x51
	OpStindI1     Opcode = 0x52
	OpStindI2     Opcode = 0x53
	OpStindI4     Opcode = 0x54
	OpStindI8     Opcode = 0x55
	OpStindR4     Opcode = 0x56
	OpStindR8     Opcode = 0x57
	OpAdd         Opcode = 0x58
	OpSub         Opcode = 0x59
	OpMul         Opcode = 0x5a
	OpDiv         Opcode = 0x5b
	OpDivUn       Opcode = 0x5c
	OpRem         Opcode = 0x5d
	OpRemUn       Opcode = 0x5e
	OpAnd         Opcode = 0x5f
	OpOr          Opcode = 0x60
	OpXor         Opcode = 0x61
	OpShl         Opcode = 0x62
	OpShr         Opcode = 0x63
	OpShrUn       Opcode = 0x64
	OpNeg         Opcode = 0x65
	OpNot         Opcode = 0x66
	OpConvI1      Opcode = 0x67
	OpConvI2      Opcode = 0x68
	OpConvI4      Opcode = 0x69
	OpConvI8      Opcode = 0x6a
	OpConvR4      Opcode = 0x6b
	OpConvR8      Opcode = 0x6c
	OpConvU4      Opcode = 0x6d
	OpConvU8      Opcode = 0x6e
	OpCallvirt    Opcode = 0x6f
	OpCpobj       Opcode = 0x70
	OpLdobj       Opcode = 0x71
	OpLdstr       Opcode = 0x72
	OpNewobj      Opcode = 0x73
	OpCastclass   Opcode = 0x74
	OpIsinst      Opcode = 0x75
	OpConvRUn     Opcode = 0x76
	OpUnbox       Opcode = 0x79
	OpThrow       Opcode = 0x7a
	OpLdfld       Opcode = 0x7b
	OpLdflda      Opcode = 0x7c
	OpStfld       Opcode = 0x7d
	OpLdsfld      Opcode = 0x7e
	OpLdsflda     Opcode = 0x7f
	OpStsfld      Opcode = 0x80
	OpStobj       Opcode = 0x81
	OpConvOvfI1Un Opcode = 0x82
	OpConvOvfI2Un Opcode = 0x83
	OpConvOvfI4Un Opcode = 0x84
	OpConvOvfI8Un Opcode = 0x85
	OpConvOvfU1Un Opcode = 0x86
	OpConvOvfU2Un Opcode = 0x87
	OpConvOvfU4Un Opcode = 0x88
	OpConvOvfU8Un Opcode = 0x89
	OpConvOvfIUn  Opcode = 0x8a
	OpConvOvfUUn  Opcode = 0x8b
	OpBox         Opcode = 0x8c
	OpNewarr      Opcode = 0x8d
	OpLdlen       Opcode = 0x8e
	OpLdelema     Opcode = 0x8f
	OpLdelemI1    Opcode = 0x90
	OpLdelemU1    Opcode = 0x91
	OpLdelemI2    Opcode = 0x92
	OpLdelemU2    Opcode = 0x93
	OpLdelemI4    Opcode = 0x94
	OpLdelemU4    Opcode = 0x95
	OpLdelemI8    Opcode = 0x96
	OpLdelemI     Opcode = 0x97
	OpLdelemR4    Opcode = 0x98
	OpLdelemR8    Opcode = 0x99
	OpLdelemRef   Opcode = 0x9a
	OpStelemI     Opcode = 0x9b
	OpStelemI1    Opcode = 0x9c
	OpStelemI2    Opcode = 0x9d
	OpStelemI4    Opcode = 0x9e
	OpStelemI8    Opcode = 0x9f
	OpStelemR4    Opcode = 0xa0
	OpStelemR8    Opcode = 0xa1
	OpStelemRef   Opcode = 0xa2
	OpLdelem      Opcode = 0xa3
	OpStelem      Opcode = 0xa4
	OpUnboxAny    Opcode = 0xa5
	OpConvOvfI1   Opcode = 0xb3
	OpConvOvfU1   Opcode = 0xb4
	OpConvOvfI2   Opcode = 0xb5
	OpConvOvfU2   Opcode = 0xb6
	OpConvOvfI4   Opcode = 0xb7
	OpConvOvfU4   Opcode = 0xb8
	OpConvOvfI8   Opcode = 0xb9
	OpConvOvfU8   Opcode = 0xba
	OpRefanyval   Opcode = 0xc2
	OpCkfinite    Opcode = 0xc3
	OpMkrefany    Opcode = 0xc6
	OpLdtoken     Opcode = 0xd0
	OpConvU2      Opcode = 0xd1
	OpConvU1      Opcode = 0xd2
	OpConvI       Opcode = 0xd3
	OpConvOvfI    Opcode = 0xd4
	OpConvOvfU    Opcode = 0xd5
	OpAddOvf      Opcode = 0xd6
	OpAddOvfUn    Opcode = 0xd7
	OpMulOvf      Opcode = 0xd8
	OpMulOvfUn    Opcode = 0xd9
	OpSubOvf      Opcode = 0xda
	OpSubOvfUn    Opcode = 0xdb
	OpEndfinally  Opcode = 0xdc
	OpLeave       Opcode = 0xdd
	OpLeaveS      Opcode = 0xde
	OpStindI      Opcode = 0xdf
	OpConvU       Opcode = 0xe0
	OpArglist     Opcode = 0xfe00
	OpCeq         Opcode = 0xfe01
	OpCgt         Opcode = 0xfe02
	OpCgtUn       Opcode = 0xfe03
	OpClt         Opcode = 0xfe04
	OpCltUn       Opcode = 0xfe05
	OpLdftn       Opcode = 0xfe06
	OpLdvirtftn   Opcode = 0xfe07
	OpLdarg       Opcode = 0xfe09
	OpLdarga      Opcode = 0xfe0a
	OpStarg       Opcode = 0xfe0b
	OpLdloc       Opcode = 0xfe0c
	OpLdloca      Opcode = 0xfe0d
	OpStloc       Opcode = 0xfe0e
	OpLocalloc    Opcode = 0xfe0f
	OpEndfilter   Opcode = 0xfe11
	OpUnaligned   Opcode = 0xfe12
	OpVolatile    Opcode = 0xfe13
	OpTail        Opcode = 0xfe14
	OpInitobj     Opcode = 0xfe15
	OpConstrained Opcode = 0xfe16
	OpCpblk       Opcode = 0xfe17
	OpInitblk     Opcode = 0xfe18
	OpNo          Opcode = 0xfe19
	OpRethrow     Opcode = 0xfe1a
	OpSizeof      Opcode = 0xfe1c
	OpRefanytype  Opcode = 0xfe1d
	OpReadonly    Opcode = 0xfe1e

	// Stack shuffles and lowering helpers introduced by decomposition.
	OpPseudoRotate     Opcode = 0xff00
	OpPseudoMoveTo     Opcode = 0xff01
	OpPseudoAlloc      Opcode = 0xff02
	OpPseudoTypeTest   Opcode = 0xff03
	OpPseudoCastCheck  Opcode = 0xff04
	OpPseudoRetype     Opcode = 0xff05
	OpPseudoTypeInfo   Opcode = 0xff06
	OpPseudoMethodInfo Opcode = 0xff07
	OpPseudoFieldInfo  Opcode = 0xff08
	OpPseudoMakeHandle Opcode = 0xff09
	OpPseudoCallHelper Opcode = 0xff0a
)
