package cache

import (
	"context"
	"testing"

	"github.com/oriys/barq/internal/domain"
)

func TestFunctionCache_SetAndGet(t *testing.T) {
	backend := NewInMemoryCache()
	defer backend.Close()

	fc := NewFunctionCache(backend, 0)
	ctx := context.Background()

	fn := &domain.Function{ID: "f1", Runtime: domain.RuntimePython311, Entrypoint: "main"}
	if err := fc.Set(ctx, "function:f1", fn); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := fc.Get(ctx, "function:f1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ID != "f1" || got.Entrypoint != "main" {
		t.Fatalf("unexpected function: %+v", got)
	}
}

func TestFunctionCache_GetMiss(t *testing.T) {
	backend := NewInMemoryCache()
	defer backend.Close()

	fc := NewFunctionCache(backend, 0)

	_, ok := fc.Get(context.Background(), "function:missing")
	if ok {
		t.Fatal("expected cache miss for unknown key")
	}
}

func TestFunctionCache_Delete(t *testing.T) {
	backend := NewInMemoryCache()
	defer backend.Close()

	fc := NewFunctionCache(backend, 0)
	ctx := context.Background()

	fc.Set(ctx, "function:f1", &domain.Function{ID: "f1"})
	if err := fc.Delete(ctx, "function:f1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok := fc.Get(ctx, "function:f1")
	if ok {
		t.Fatal("expected cache miss after delete")
	}
}
