// Package worklist implements the compilation request sink: idempotent queues of methods to
// compile and sets of runtime data to emit.
package worklist

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pgavlin/cil2tac/cil"
)

// An Entry is a queued method compilation.
type Entry struct {
	Method *cil.Method
	// DelegateTarget marks methods that are the target of a delegate construction.
	DelegateTarget bool
}

// Worklist collects compilation requests. It is safe for concurrent use.
type Worklist struct {
	mu sync.Mutex

	queue     []Entry
	methods   mapset.Set[*cil.Method]
	delegates mapset.Set[*cil.Method]
	typeInfos mapset.Set[*cil.Type]
	statics   mapset.Set[*cil.Type]
	strings   mapset.Set[string]
}

func New() *Worklist {
	return &Worklist{
		methods:   mapset.NewThreadUnsafeSet[*cil.Method](),
		delegates: mapset.NewThreadUnsafeSet[*cil.Method](),
		typeInfos: mapset.NewThreadUnsafeSet[*cil.Type](),
		statics:   mapset.NewThreadUnsafeSet[*cil.Type](),
		strings:   mapset.NewThreadUnsafeSet[string](),
	}
}

// RequestMethod queues a method for compilation unless it has already been requested.
func (w *Worklist) RequestMethod(m *cil.Method) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.methods.Add(m) {
		w.queue = append(w.queue, Entry{Method: m})
	}
}

// RequestDelegateTarget queues a method as a delegate target. If the method is waiting in the
// queue as an ordinary request, the entry is removed and re-inserted as a delegate target under a
// single lock hold, so the method is neither compiled twice nor lost. A method that has already
// been taken from the queue as an ordinary request is queued again as a delegate target.
func (w *Worklist) RequestDelegateTarget(m *cil.Method) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.delegates.Add(m) {
		return
	}
	w.methods.Add(m)
	for i, e := range w.queue {
		if e.Method == m {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			break
		}
	}
	w.queue = append(w.queue, Entry{Method: m, DelegateTarget: true})
}

func (w *Worklist) RequestTypeInfo(t *cil.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.typeInfos.Add(t)
}

func (w *Worklist) RequestStatics(t *cil.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.statics.Add(t)
}

func (w *Worklist) RequestString(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.strings.Add(s)
}

// Next removes and returns the oldest queued method.
func (w *Worklist) Next() (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return Entry{}, false
	}
	e := w.queue[0]
	w.queue = w.queue[1:]
	return e, true
}

// Drain removes and returns every queued method.
func (w *Worklist) Drain() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	q := w.queue
	w.queue = nil
	return q
}

// Len returns the number of queued methods.
func (w *Worklist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.queue)
}

func sortTypes(ts []*cil.Type) []*cil.Type {
	sort.Slice(ts, func(i, j int) bool { return ts[i].FullName() < ts[j].FullName() })
	return ts
}

// TypeInfos returns the types whose runtime type info was requested, sorted by name.
func (w *Worklist) TypeInfos() []*cil.Type {
	w.mu.Lock()
	defer w.mu.Unlock()

	return sortTypes(w.typeInfos.ToSlice())
}

// Statics returns the types whose static storage was requested, sorted by name.
func (w *Worklist) Statics() []*cil.Type {
	w.mu.Lock()
	defer w.mu.Unlock()

	return sortTypes(w.statics.ToSlice())
}

// Strings returns the requested string literals, sorted.
func (w *Worklist) Strings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.strings.ToSlice()
	sort.Strings(s)
	return s
}

// Requested returns true if the method has been requested in any form.
func (w *Worklist) Requested(m *cil.Method) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.methods.Contains(m)
}
