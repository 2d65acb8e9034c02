package method

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"golang.org/x/exp/slog"
)

// Context is the per-method lowering context. It carries the method being lowered, the
// verification policy, and the record currently being processed, so that every failure can name
// the offending instruction.
type Context struct {
	Method *cil.Method
	Body   *Body
	Func   *tac.Function
	Logger *slog.Logger

	// RequireVerified makes verification failures fatal. Otherwise they are recorded as
	// warnings.
	RequireVerified bool
	Warnings        []Warning

	record *Record
}

// NewContext creates a lowering context for the given body.
func NewContext(body *Body, f *tac.Function, logger *slog.Logger, requireVerified bool) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Method:          body.Method,
		Body:            body,
		Func:            f,
		Logger:          logger.With("method", body.Method.FullName()),
		RequireVerified: requireVerified,
	}
}

// At sets the record being processed.
func (c *Context) At(r *Record) {
	c.record = r
}

// Record returns the record being processed.
func (c *Context) Record() *Record {
	return c.record
}

// GenericContext returns the generic context of the method.
func (c *Context) GenericContext() cil.Context {
	return cil.Context{Type: c.Method.DeclaringType, Method: c.Method}
}

func (c *Context) wrap(kind, err error) error {
	e := &Error{Method: c.Method, Offset: -1, Err: errors.Mark(err, kind)}
	if c.record != nil {
		e.Offset, e.Opcode = c.record.Offset, c.record.Opcode
	}
	return e
}

// Errorf returns a fatal error of the given kind at the current record.
func (c *Context) Errorf(kind error, format string, args ...interface{}) error {
	return c.wrap(kind, errors.Newf(format, args...))
}

// Unsupported returns a fatal ErrUnsupported error at the current record.
func (c *Context) Unsupported(format string, args ...interface{}) error {
	return c.Errorf(ErrUnsupported, format, args...)
}

// Resolution wraps a collaborator failure as a fatal ErrResolution error at the current record.
func (c *Context) Resolution(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return c.wrap(ErrResolution, err)
}

// Verify reports a verification failure. If verified code is required, the failure is returned
// as a fatal error. Otherwise it is recorded as a warning and Verify returns nil.
func (c *Context) Verify(format string, args ...interface{}) error {
	if c.RequireVerified {
		return c.Errorf(ErrVerification, format, args...)
	}

	w := Warning{Method: c.Method, Offset: -1, Msg: fmt.Sprintf(format, args...)}
	if c.record != nil {
		w.Offset, w.Opcode = c.record.Offset, c.record.Opcode
	}
	c.Warnings = append(c.Warnings, w)
	c.Logger.Warn("unverifiable code", "offset", w.Offset, "opcode", w.Opcode.String(), "reason", w.Msg)
	return nil
}
