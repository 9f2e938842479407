package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	catalog "github.com/okozhin/catalogd/internal"
)

func newTestPages(t *testing.T) *Pages {
	t.Helper()
	m, err := NewMemory(1000, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewPages(m, time.Hour)
}

func fptr(f float64) *float64 { return &f }

func TestPages_KeyDeterminism(t *testing.T) {
	t.Parallel()
	c := newTestPages(t)
	p := catalog.Page{Page: 1, Limit: 5}

	a := catalog.Filter{Category: "shoes", MinPrice: fptr(10), MaxPrice: fptr(50)}
	// Same filter assembled field by field in a different order.
	var b catalog.Filter
	b.MaxPrice = fptr(50)
	b.MinPrice = fptr(10)
	b.Category = "shoes"

	if c.Key(a, p) != c.Key(b, p) {
		t.Error("logically identical filters must produce the same key")
	}

	variants := []struct {
		name string
		f    catalog.Filter
		p    catalog.Page
	}{
		{"different category", catalog.Filter{Category: "hats", MinPrice: fptr(10), MaxPrice: fptr(50)}, p},
		{"different min price", catalog.Filter{Category: "shoes", MinPrice: fptr(11), MaxPrice: fptr(50)}, p},
		{"absent max price", catalog.Filter{Category: "shoes", MinPrice: fptr(10)}, p},
		{"different page", a, catalog.Page{Page: 2, Limit: 5}},
		{"different limit", a, catalog.Page{Page: 1, Limit: 10}},
	}
	base := c.Key(a, p)
	for _, v := range variants {
		if c.Key(v.f, v.p) == base {
			t.Errorf("%s should produce a different key", v.name)
		}
	}
}

func TestPages_GetPut(t *testing.T) {
	t.Parallel()
	c := newTestPages(t)
	ctx := context.Background()
	f := catalog.Filter{Category: "shoes"}
	p := catalog.Page{Page: 1, Limit: 5}

	if _, ok := c.Get(ctx, f, p); ok {
		t.Error("empty cache should miss")
	}

	page := &catalog.ProductPage{
		Data:       []catalog.Product{{ID: "p1", Name: "boot", Category: "shoes", Price: 30}},
		Total:      12,
		Page:       1,
		Limit:      5,
		TotalPages: 3,
	}
	c.Put(ctx, f, p, page)
	time.Sleep(50 * time.Millisecond) // otter processes writes asynchronously

	got, ok := c.Get(ctx, f, p)
	if !ok {
		t.Fatal("should hit after put")
	}
	if got.Total != 12 || got.TotalPages != 3 || len(got.Data) != 1 {
		t.Errorf("got %+v, want cached page back", got)
	}
	if got.Data[0].ID != "p1" {
		t.Errorf("data[0].ID = %q, want %q", got.Data[0].ID, "p1")
	}
}

func TestPages_Invalidate(t *testing.T) {
	t.Parallel()
	c := newTestPages(t)
	ctx := context.Background()
	f := catalog.Filter{Name: "boot"}
	p := catalog.Page{Page: 1, Limit: 5}

	c.Put(ctx, f, p, &catalog.ProductPage{Total: 1, Page: 1, Limit: 5, TotalPages: 1})
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get(ctx, f, p); !ok {
		t.Fatal("should hit before invalidation")
	}

	c.Invalidate(ctx)

	if _, ok := c.Get(ctx, f, p); ok {
		t.Error("should miss after invalidation")
	}
}

// flatCache is a minimal backend without the Enumerator capability.
type flatCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (f *flatCache) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	return v, ok
}

func (f *flatCache) Set(_ context.Context, key string, val []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = val
}

func (f *flatCache) Delete(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, key)
}

func (f *flatCache) Purge(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.m)
}

func TestPages_InvalidateWithoutEnumeration(t *testing.T) {
	t.Parallel()
	backend := &flatCache{m: make(map[string][]byte)}
	c := NewPages(backend, time.Hour)
	ctx := context.Background()
	f := catalog.Filter{}
	p := catalog.Page{Page: 1, Limit: 5}

	c.Put(ctx, f, p, &catalog.ProductPage{Total: 3, Page: 1, Limit: 5, TotalPages: 1})
	if _, ok := c.Get(ctx, f, p); !ok {
		t.Fatal("should hit before invalidation")
	}

	// The backend cannot enumerate; the version bump alone must make the
	// entry unreachable without failing the caller.
	c.Invalidate(ctx)

	if _, ok := c.Get(ctx, f, p); ok {
		t.Error("version bump should make old generation unreachable")
	}
	if len(backend.m) != 1 {
		t.Errorf("old entry should survive in the backend until TTL, have %d entries", len(backend.m))
	}
}
