package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	catalog "github.com/okozhin/catalogd/internal"
)

// pagePrefix namespaces all listing keys within the shared backend.
const pagePrefix = "products:"

// Pages memoizes filtered product listings by a deterministic key derived
// from (page, limit, filter). Keys live under a versioned namespace
// "products:v<N>:<hash>"; Invalidate bumps N atomically, making every
// previously written key unreachable in one step regardless of backend
// capabilities. When the backend also supports key enumeration, stale
// generations are deleted eagerly; otherwise they age out via TTL.
type Pages struct {
	backend Cache
	ttl     time.Duration
	version atomic.Uint64
}

// NewPages creates a pagination cache over backend with the given entry TTL.
func NewPages(backend Cache, ttl time.Duration) *Pages {
	return &Pages{backend: backend, ttl: ttl}
}

// pageKey is the canonical key input. Struct fields marshal in declaration
// order, so two logically identical requests always serialize to the same
// bytes no matter how the Filter was constructed.
type pageKey struct {
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	MinPrice *float64 `json:"minPrice"`
	MaxPrice *float64 `json:"maxPrice"`
}

// Key returns the full cache key for the current generation.
func (c *Pages) Key(f catalog.Filter, p catalog.Page) string {
	data, _ := json.Marshal(pageKey{
		Page:     p.Page,
		Limit:    p.Limit,
		Name:     f.Name,
		Category: f.Category,
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
	})
	h := sha256.Sum256(data)
	return fmt.Sprintf("%sv%d:%s", pagePrefix, c.version.Load(), hex.EncodeToString(h[:]))
}

// Get returns the cached page for (filter, page) if present and unexpired.
func (c *Pages) Get(ctx context.Context, f catalog.Filter, p catalog.Page) (*catalog.ProductPage, bool) {
	data, ok := c.backend.Get(ctx, c.Key(f, p))
	if !ok {
		return nil, false
	}
	var page catalog.ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.backend.Delete(ctx, c.Key(f, p))
		return nil, false
	}
	return &page, true
}

// Put stores a computed page under its key, overwriting any existing entry.
func (c *Pages) Put(ctx context.Context, f catalog.Filter, p catalog.Page, page *catalog.ProductPage) {
	data, err := json.Marshal(page)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "page cache encode failed",
			slog.String("error", err.Error()),
		)
		return
	}
	c.backend.Set(ctx, c.Key(f, p), data, c.ttl)
}

// Invalidate makes every cached listing unreachable. The version bump is
// the correctness mechanism; eager deletion of old generations is a
// best-effort cleanup that requires backend enumeration. A concurrent Put
// may still land in the old generation and survive deletion -- it is then
// unreachable by key and expires with its TTL.
func (c *Pages) Invalidate(ctx context.Context) {
	gen := c.version.Add(1)
	current := fmt.Sprintf("%sv%d:", pagePrefix, gen)

	enum, ok := c.backend.(Enumerator)
	if !ok {
		// The caller still gets correct invalidation through the version
		// bump; only the eager cleanup is skipped.
		slog.LogAttrs(ctx, slog.LevelWarn, "cache backend does not enumerate, stale generations expire by TTL",
			slog.Uint64("generation", gen),
		)
		return
	}
	removed := 0
	for _, k := range enum.Keys(ctx) {
		if strings.HasPrefix(k, pagePrefix) && !strings.HasPrefix(k, current) {
			c.backend.Delete(ctx, k)
			removed++
		}
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "page cache invalidated",
		slog.Uint64("generation", gen),
		slog.Int("removed", removed),
	)
}
