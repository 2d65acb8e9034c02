package worklist

import (
	"sync"
	"testing"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/stretchr/testify/assert"
)

func methods(n int) []*cil.Method {
	t := &cil.Type{Namespace: "N", Name: "C", Element: cil.ElementClass}
	ms := make([]*cil.Method, n)
	for i := range ms {
		ms[i] = &cil.Method{Name: string(rune('A' + i)), DeclaringType: t, Sig: &cil.Signature{}}
	}
	return ms
}

func TestRequestsAreIdempotent(t *testing.T) {
	w := New()
	ms := methods(2)

	w.RequestMethod(ms[0])
	w.RequestMethod(ms[1])
	w.RequestMethod(ms[0])
	assert.Equal(t, 2, w.Len())

	e, ok := w.Next()
	assert.True(t, ok)
	assert.Equal(t, Entry{Method: ms[0]}, e)

	// Re-requesting a compiled method is a no-op.
	w.RequestMethod(ms[0])
	assert.Equal(t, []Entry{{Method: ms[1]}}, w.Drain())

	_, ok = w.Next()
	assert.False(t, ok)
	assert.True(t, w.Requested(ms[0]))
}

func TestDelegateTargetReplacesQueuedEntry(t *testing.T) {
	w := New()
	ms := methods(3)

	w.RequestMethod(ms[0])
	w.RequestMethod(ms[1])
	w.RequestMethod(ms[2])
	w.RequestDelegateTarget(ms[1])
	w.RequestDelegateTarget(ms[1])

	assert.Equal(t, []Entry{
		{Method: ms[0]},
		{Method: ms[2]},
		{Method: ms[1], DelegateTarget: true},
	}, w.Drain())

	// A method already taken as an ordinary request is queued again as a delegate target.
	w.RequestDelegateTarget(ms[0])
	assert.Equal(t, []Entry{{Method: ms[0], DelegateTarget: true}}, w.Drain())
}

func TestConcurrentRequests(t *testing.T) {
	w := New()
	ms := methods(8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, m := range ms {
				if i%2 == 0 {
					w.RequestMethod(m)
				} else {
					w.RequestDelegateTarget(m)
				}
			}
		}(i)
	}
	wg.Wait()

	seen := map[*cil.Method]int{}
	for _, e := range w.Drain() {
		seen[e.Method]++
	}
	assert.Len(t, seen, len(ms))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestDataRequests(t *testing.T) {
	w := New()
	a := &cil.Type{Namespace: "N", Name: "A"}
	b := &cil.Type{Namespace: "N", Name: "B"}

	w.RequestTypeInfo(b)
	w.RequestTypeInfo(a)
	w.RequestTypeInfo(b)
	w.RequestStatics(a)
	w.RequestString("y")
	w.RequestString("x")
	w.RequestString("y")

	assert.Equal(t, []*cil.Type{a, b}, w.TypeInfos())
	assert.Equal(t, []*cil.Type{a}, w.Statics())
	assert.Equal(t, []string{"x", "y"}, w.Strings())
}
