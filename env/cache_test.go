package env

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pgavlin/cil2tac/cil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLayout struct {
	objects, typeInfos int
	fail               *cil.Type
}

func (l *countingLayout) PointerSize() int {
	return 8
}

func (l *countingLayout) ObjectLayout(t *cil.Type) (*ObjectLayout, error) {
	l.objects++
	if t == l.fail {
		return nil, errors.New("no layout")
	}
	return &ObjectLayout{Size: 16}, nil
}

func (l *countingLayout) TypeInfoLayout(t *cil.Type) (*TypeInfoLayout, error) {
	l.typeInfos++
	return &TypeInfoLayout{Label: t.Name}, nil
}

func TestCachedLayout(t *testing.T) {
	a, b := &cil.Type{Name: "A"}, &cil.Type{Name: "B"}
	inner := &countingLayout{fail: b}

	cached, err := CachedLayout(inner, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, cached.PointerSize())

	first, err := cached.ObjectLayout(a)
	require.NoError(t, err)
	second, err := cached.ObjectLayout(a)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.objects)

	_, err = cached.ObjectLayout(b)
	assert.Error(t, err)
	_, err = cached.ObjectLayout(b)
	assert.Error(t, err)
	assert.Equal(t, 3, inner.objects)

	ti, err := cached.TypeInfoLayout(a)
	require.NoError(t, err)
	assert.Equal(t, "A", ti.Label)
	_, err = cached.TypeInfoLayout(b)
	require.NoError(t, err)
	_, err = cached.TypeInfoLayout(a)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.typeInfos)
}

func TestCachedLayoutSize(t *testing.T) {
	_, err := CachedLayout(&countingLayout{}, 0)
	assert.Error(t, err)
}
