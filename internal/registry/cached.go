package registry

import (
	"context"
	"fmt"

	"github.com/oriys/barq/internal/cache"
	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/logging"
)

// Cached wraps a MetadataStore with a read-through cache.FunctionCache in
// front of GetFunction, the lookup on the Invoker's hot path (spec §4.4
// step 1). Writes invalidate the entry rather than updating it in place.
type Cached struct {
	MetadataStore
	c *cache.FunctionCache
}

// NewCached wraps store with c. A nil c makes Cached a passthrough.
func NewCached(store MetadataStore, c *cache.FunctionCache) *Cached {
	return &Cached{MetadataStore: store, c: c}
}

func (c *Cached) key(id string) string { return "function:" + id }

func (c *Cached) GetFunction(ctx context.Context, id string) (*domain.Function, error) {
	if c.c == nil {
		return c.MetadataStore.GetFunction(ctx, id)
	}
	if fn, ok := c.c.Get(ctx, c.key(id)); ok {
		return fn, nil
	}

	fn, err := c.MetadataStore.GetFunction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.c.Set(ctx, c.key(id), fn); err != nil {
		logging.Op().Debug("registry: cache set failed", "func_id", id, "err", err)
	}
	return fn, nil
}

func (c *Cached) SaveFunction(ctx context.Context, fn *domain.Function) error {
	if err := c.MetadataStore.SaveFunction(ctx, fn); err != nil {
		return err
	}
	return c.invalidate(ctx, fn.ID)
}

func (c *Cached) DeleteFunction(ctx context.Context, id string) error {
	if err := c.MetadataStore.DeleteFunction(ctx, id); err != nil {
		return err
	}
	return c.invalidate(ctx, id)
}

func (c *Cached) invalidate(ctx context.Context, id string) error {
	if c.c == nil {
		return nil
	}
	if err := c.c.Delete(ctx, c.key(id)); err != nil {
		return fmt.Errorf("registry: invalidate cache: %w", err)
	}
	return nil
}
