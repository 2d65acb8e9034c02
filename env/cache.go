package env

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pgavlin/cil2tac/cil"
)

type cachedLayout struct {
	Layout

	objects   *lru.Cache[*cil.Type, *ObjectLayout]
	typeInfos *lru.Cache[*cil.Type, *TypeInfoLayout]
}

// CachedLayout wraps a Layout with bounded caches of its answers. Errors are not cached. The
// result is safe for concurrent use if l is.
func CachedLayout(l Layout, size int) (Layout, error) {
	objects, err := lru.New[*cil.Type, *ObjectLayout](size)
	if err != nil {
		return nil, err
	}
	typeInfos, err := lru.New[*cil.Type, *TypeInfoLayout](size)
	if err != nil {
		return nil, err
	}
	return &cachedLayout{Layout: l, objects: objects, typeInfos: typeInfos}, nil
}

func (c *cachedLayout) ObjectLayout(t *cil.Type) (*ObjectLayout, error) {
	if l, ok := c.objects.Get(t); ok {
		return l, nil
	}
	l, err := c.Layout.ObjectLayout(t)
	if err != nil {
		return nil, err
	}
	c.objects.Add(t, l)
	return l, nil
}

func (c *cachedLayout) TypeInfoLayout(t *cil.Type) (*TypeInfoLayout, error) {
	if l, ok := c.typeInfos.Get(t); ok {
		return l, nil
	}
	l, err := c.Layout.TypeInfoLayout(t)
	if err != nil {
		return nil, err
	}
	c.typeInfos.Add(t, l)
	return l, nil
}
