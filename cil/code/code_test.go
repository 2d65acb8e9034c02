package code

import (
	"testing"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	seen := map[Opcode]bool{}
	for _, op := range Opcodes() {
		require.False(t, seen[op], "duplicate opcode %v", op)
		seen[op] = true

		info := MustLookup(op)
		assert.Equal(t, op, info.Opcode)

		byName, ok := LookupName(info.Name)
		require.True(t, ok, info.Name)
		assert.Equal(t, op, byName.Opcode)

		if info.Shuffle {
			assert.True(t, op.IsPseudo(), "%v", op)
		}
		if info.Flow == FlowMeta {
			assert.True(t, op.IsPrefix(), "%v", op)
		}
	}

	_, ok := Lookup(0x24)
	assert.False(t, ok)
}

func TestLdcI4Forms(t *testing.T) {
	cases := []struct {
		v  int32
		op Opcode
	}{
		{-1, OpLdcI4M1},
		{0, OpLdcI40},
		{8, OpLdcI48},
		{9, OpLdcI4S},
		{-128, OpLdcI4S},
		{127, OpLdcI4S},
		{128, OpLdcI4},
		{-70000, OpLdcI4},
	}
	for _, c := range cases {
		instr := LdcI4(c.v)
		assert.Equal(t, c.op, instr.Opcode, "%d", c.v)
		assert.Equal(t, c.v, instr.ConstI4(), "%d", c.v)
	}
}

func TestLocalForms(t *testing.T) {
	ldarg2, ldarg300 := Ldarg(2), Ldarg(300)
	assert.Equal(t, 2, ldarg2.Argidx())
	assert.Equal(t, OpLdargS, Ldarg(5).Opcode)
	assert.Equal(t, OpLdarg, Ldarg(300).Opcode)
	assert.Equal(t, 300, ldarg300.Argidx())

	stloc3, ldloc1 := Stloc(3), Ldloc(1)
	assert.Equal(t, 3, stloc3.Localidx())
	assert.Equal(t, OpStlocS, Stloc(4).Opcode)
	assert.Equal(t, 1, ldloc1.Localidx())
}

func TestEncodeBranches(t *testing.T) {
	instrs := []Instruction{
		Ldarg(0),
		Branch(OpBrfalseS, 3),
		LdcI4(1),
		Ret(),
	}

	bytes, err := Encode(instrs)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x2c, 0x01, 0x17, 0x2a}, bytes)

	body, err := Decode(bytes)
	require.NoError(t, err)
	assert.Equal(t, instrs, body.Instructions)
	assert.Equal(t, []int{0, 1, 3, 4}, body.Offsets)
	assert.Equal(t, 5, body.Size)
}

func TestPrefixFolding(t *testing.T) {
	tok := cil.MakeToken(cil.TableTypeDef, 3)
	method := cil.MakeToken(cil.TableMethodDef, 7)

	bytes := []byte{
		0xfe, 0x16, 0x03, 0x00, 0x00, 0x02, // constrained. 0x02000003
		0x6f, 0x07, 0x00, 0x00, 0x06, // callvirt 0x06000007
		0xfe, 0x13, // volatile.
		0x4a, // ldind.i4
	}

	body, err := Decode(bytes)
	require.NoError(t, err)
	require.Len(t, body.Instructions, 2)

	call := body.Instructions[0]
	assert.Equal(t, OpCallvirt, call.Opcode)
	assert.Equal(t, PrefixConstrained, call.Prefix)
	assert.Equal(t, tok, call.Constrained)
	assert.Equal(t, method, call.Token())

	load := body.Instructions[1]
	assert.Equal(t, OpLdindI4, load.Opcode)
	assert.True(t, load.IsVolatile())
	assert.Equal(t, []int{0, 11}, body.Offsets)

	encoded, err := Encode(body.Instructions)
	require.NoError(t, err)
	assert.Equal(t, bytes, encoded)
}

func TestSwitchRoundTrip(t *testing.T) {
	instrs := []Instruction{
		Ldarg(0),
		Switch(3, 4, 5),
		Br(5),
		LdcI4(1),
		Pop(),
		Ret(),
	}

	bytes, err := Encode(instrs)
	require.NoError(t, err)

	body, err := Decode(bytes)
	require.NoError(t, err)
	assert.Equal(t, instrs, body.Instructions)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0x20, 0x01})
	assert.Error(t, err)

	// br.s into the middle of ldc.i4
	_, err = Decode([]byte{0x2b, 0x01, 0x20, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrInvalidInstruction)

	_, err = Encode([]Instruction{Rotate(2)})
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "ldc.i4.s 42", LdcI4(42).String())
	assert.Equal(t, "br L3", Br(3).String())
	assert.Equal(t, "rotate 2", Rotate(2).String())
	assert.Equal(t, "volatile. ldind.i4", Volatile(Op(OpLdindI4)).String())
}
