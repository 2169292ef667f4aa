package cache

import (
	"context"
	"fmt"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
)

const materialsKey = "materials"

// Catalog keeps the material catalog of source in memory, refreshed every ttl.
type Catalog struct {
	memory *Memory
}

func NewCatalog(ctx context.Context, source ebomlca.MaterialCatalog, ttl time.Duration) *Catalog {
	memory := NewMemory(ctx, ttl)
	// Set never fails on a dynamic value
	_ = memory.Set(ctx, materialsKey, DynamicValueFunc(func(ctx context.Context) (any, error) {
		return source.Materials(ctx)
	}))
	return &Catalog{memory: memory}
}

// Materials implements ebomlca.MaterialCatalog.
func (c *Catalog) Materials(ctx context.Context) ([]ebomlca.MaterialEntry, error) {
	v, err := c.memory.Get(ctx, materialsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load material catalog: %w", err)
	}
	entries, ok := v.([]ebomlca.MaterialEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected cached catalog type %T", v)
	}
	return entries, nil
}

// Invalidate forces the next Materials call to reload the source.
func (c *Catalog) Invalidate() {
	c.memory.Invalidate(materialsKey)
}
