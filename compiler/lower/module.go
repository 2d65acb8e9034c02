package lower

import (
	"sort"
	"sync"
	"time"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/worklist"
	"github.com/pgavlin/cil2tac/env"
	"github.com/pgavlin/cil2tac/env/static"
	"golang.org/x/sync/errgroup"
)

// ModuleResult is the lowering of every method reachable from a set of roots.
type ModuleResult struct {
	// Methods holds the lowered methods sorted by name.
	Methods []*Result
	// Skipped holds reachable methods that have no body to lower: abstract methods, methods the
	// runtime provides, and methods replaced by intrinsics.
	Skipped []*cil.Method

	TypeInfos []*cil.Type
	Statics   []*cil.Type
	Strings   []string
}

// Warnings returns the warnings of every lowered method.
func (r *ModuleResult) Warnings() int {
	n := 0
	for _, m := range r.Methods {
		n += len(m.Warnings)
	}
	return n
}

// Module lowers the given roots and every method they transitively request. If roots is empty,
// every method of the module that has a body is a root.
func Module(m *static.Module, roots []*cil.Method, options *Options) (*ModuleResult, error) {
	start := time.Now()

	wl := worklist.New()
	e := m.Env(wl)
	layout, err := env.CachedLayout(m, options.layoutCacheSize())
	if err != nil {
		return nil, err
	}
	e.Layout = layout

	l := lowerer{env: e}
	options.apply(&l)

	if len(roots) == 0 {
		for _, t := range m.Types() {
			for _, meth := range t.Methods {
				if _, ok := m.Body(meth); ok {
					roots = append(roots, meth)
				}
			}
		}
	}
	for _, r := range roots {
		wl.RequestMethod(r)
	}

	var mu sync.Mutex
	lowered := map[*cil.Method]*Result{}
	skipped := map[*cil.Method]bool{}

	for {
		batch := wl.Drain()
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(l.workers)
		for _, entry := range batch {
			entry := entry

			mu.Lock()
			if r, ok := lowered[entry.Method]; ok {
				r.DelegateTarget = r.DelegateTarget || entry.DelegateTarget
				mu.Unlock()
				continue
			}
			mu.Unlock()

			body, ok := m.Body(entry.Method)
			if !ok || entry.Method.IsInternalCall() || l.gate.Provides(entry.Method) {
				mu.Lock()
				skipped[entry.Method] = true
				mu.Unlock()
				continue
			}

			g.Go(func() error {
				r, err := l.method(entry.Method, body)
				if err != nil {
					return err
				}
				r.DelegateTarget = entry.DelegateTarget

				mu.Lock()
				defer mu.Unlock()
				if prev, ok := lowered[entry.Method]; ok {
					prev.DelegateTarget = prev.DelegateTarget || r.DelegateTarget
					return nil
				}
				lowered[entry.Method] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := &ModuleResult{
		TypeInfos: wl.TypeInfos(),
		Statics:   wl.Statics(),
		Strings:   wl.Strings(),
	}
	nodes := 0
	for _, r := range lowered {
		result.Methods = append(result.Methods, r)
		nodes += r.Stats.Nodes
	}
	sort.Slice(result.Methods, func(i, j int) bool {
		return result.Methods[i].Method.FullName() < result.Methods[j].Method.FullName()
	})
	for meth := range skipped {
		result.Skipped = append(result.Skipped, meth)
	}
	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].FullName() < result.Skipped[j].FullName()
	})

	l.logger.Info("lowered module",
		"methods", len(result.Methods),
		"nodes", nodes,
		"warnings", result.Warnings(),
		"elapsed", time.Since(start))
	return result, nil
}
