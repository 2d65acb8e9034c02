// Package lower drives the lowering of method bodies: each record of a method is resolved,
// offered to the decomposer, and encoded once no decomposition applies. Modules are lowered by
// draining the compilation worklist with a bounded number of concurrent method lowerings.
package lower

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/cil/code"
	"github.com/pgavlin/cil2tac/compiler/decompose"
	"github.com/pgavlin/cil2tac/compiler/encode"
	"github.com/pgavlin/cil2tac/compiler/intrinsic"
	"github.com/pgavlin/cil2tac/compiler/method"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/pgavlin/cil2tac/env"
	"github.com/pgavlin/cil2tac/env/static"
	"golang.org/x/exp/slog"
)

// Options records lowering options.
type Options struct {
	// RequireVerified makes verification failures fatal. Otherwise they are reported as
	// warnings and lowering continues.
	RequireVerified bool `yaml:"requireVerified"`
	// StrictIntrinsics makes calls to runtime-provided methods that have no intrinsic fatal.
	StrictIntrinsics bool `yaml:"strictIntrinsics"`
	// Workers bounds the number of methods lowered concurrently. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// LayoutCacheSize bounds the number of cached type layouts. Zero means 1024.
	LayoutCacheSize int `yaml:"layoutCacheSize"`

	// Catalog is the intrinsic catalog. Nil means intrinsic.Default().
	Catalog intrinsic.Catalog `yaml:"-"`
	Logger  *slog.Logger      `yaml:"-"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{RequireVerified: true}
}

type lowerer struct {
	env             *env.Env
	gate            *intrinsic.Gate
	logger          *slog.Logger
	requireVerified bool
	workers         int
}

func (o *Options) apply(l *lowerer) {
	if o == nil {
		o = DefaultOptions()
	}
	l.requireVerified = o.RequireVerified
	l.gate = intrinsic.NewGate(o.Catalog, o.StrictIntrinsics)
	l.logger = o.Logger
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.workers = o.Workers
	if l.workers <= 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
}

func (o *Options) layoutCacheSize() int {
	if o == nil || o.LayoutCacheSize <= 0 {
		return 1024
	}
	return o.LayoutCacheSize
}

// Stats summarizes the lowering of one method.
type Stats struct {
	Method         string `csv:"method"`
	Instructions   int    `csv:"instructions"`
	Records        int    `csv:"records"`
	Decompositions int    `csv:"decompositions"`
	Nodes          int    `csv:"nodes"`
	Blocks         int    `csv:"blocks"`
	Vars           int    `csv:"vars"`
	Warnings       int    `csv:"warnings"`
}

// Result is the lowering of one method.
type Result struct {
	Method *cil.Method
	Func   *tac.Function
	Body   *method.Body
	// DelegateTarget is true if the method was requested as the target of a delegate.
	DelegateTarget bool
	Warnings       []method.Warning
	Stats          Stats
}

// Method lowers a single method body. Requests for further methods and runtime data go to the
// environment's sink.
func Method(m *cil.Method, body *static.Body, e *env.Env, options *Options) (*Result, error) {
	l := lowerer{env: e}
	options.apply(&l)
	return l.method(m, body)
}

func (l *lowerer) method(m *cil.Method, src *static.Body) (*Result, error) {
	decoded, err := code.Decode(src.Code)
	if err != nil {
		return nil, &method.Error{Method: m, Offset: -1, Err: errors.Mark(err, method.ErrVerification)}
	}

	regions := append([]method.Region(nil), src.Regions...)
	body := method.NewBody(m, decoded, regions)
	f := tac.NewFunction(l.env.Method(m))
	ctx := method.NewContext(body, f, l.logger, l.requireVerified)
	enc := encode.New(ctx, l.env, l.gate)

	stats := Stats{Method: m.FullName(), Instructions: len(decoded.Instructions)}
	for i := 0; i < len(body.Records); {
		rec := body.Records[i]
		ctx.At(rec)
		if err := ctx.Resolve(l.env); err != nil {
			return nil, err
		}
		stack, err := enc.StackAt(i)
		if err != nil {
			return nil, err
		}
		rec.Stack = stack

		changed, err := decompose.Decompose(ctx, l.env, i)
		if err != nil {
			return nil, err
		}
		if changed {
			stats.Decompositions++
			continue
		}

		if err := enc.Encode(i); err != nil {
			return nil, err
		}
		i++
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}

	stats.Records = len(body.Records)
	stats.Nodes = len(f.Body)
	stats.Blocks = len(f.Blocks)
	stats.Vars = f.Vars
	stats.Warnings = len(ctx.Warnings)
	return &Result{Method: m, Func: f, Body: body, Warnings: ctx.Warnings, Stats: stats}, nil
}
