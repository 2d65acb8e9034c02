package cil

import "fmt"

// A Token is a metadata token: a table tag in the high byte and a 1-based row in the low 24 bits.
type Token uint32

// TokenTable identifies the metadata table a token refers to.
type TokenTable byte

const (
	TableTypeRef    TokenTable = 0x01
	TableTypeDef    TokenTable = 0x02
	TableField      TokenTable = 0x04
	TableMethodDef  TokenTable = 0x06
	TableMemberRef  TokenTable = 0x0a
	TableStandAlone TokenTable = 0x11
	TableTypeSpec   TokenTable = 0x1b
	TableMethodSpec TokenTable = 0x2b
	TableUserString TokenTable = 0x70
)

// MakeToken builds a token from a table and a 1-based row.
func MakeToken(table TokenTable, row uint32) Token {
	return Token(uint32(table)<<24 | row&0x00ffffff)
}

func (t Token) Table() TokenTable {
	return TokenTable(t >> 24)
}

func (t Token) Row() uint32 {
	return uint32(t) & 0x00ffffff
}

func (t Token) String() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}
