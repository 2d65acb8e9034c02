package method

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
)

var (
	// ErrVerification marks type-safety violations detected from static operand types.
	ErrVerification = errors.New("verification failure")
	// ErrUnsupported marks instruction and operand combinations that have no lowering.
	ErrUnsupported = errors.New("unsupported")
	// ErrResolution marks failures to resolve a token, member or layout.
	ErrResolution = errors.New("resolution failure")
)

// An Error is a lowering failure at a specific instruction.
type Error struct {
	Method *cil.Method
	// Offset is the IL offset of the instruction, or -1 if it has none.
	Offset int
	Opcode code.Opcode
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: IL_%04x: %v: %v", e.Method, e.Offset, e.Opcode, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// A Warning is a verification failure recorded in permissive mode.
type Warning struct {
	Method *cil.Method
	Offset int
	Opcode code.Opcode
	Msg    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%v: IL_%04x: %v: %v", w.Method, w.Offset, w.Opcode, w.Msg)
}
