// Package app implements application-level services for the catalog backend.
package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/okozhin/catalogd/internal"
	"github.com/okozhin/catalogd/internal/cache"
	"github.com/okozhin/catalogd/internal/storage"
	"github.com/okozhin/catalogd/internal/telemetry"
)

// CacheStats counts pagination cache traffic. Satisfied by telemetry.Metrics;
// nil-safe wrappers below keep the service usable without metrics in tests.
type CacheStats interface {
	Hit()
	Miss()
	Invalidated()
}

// CatalogService serves product listings through the pagination cache and
// applies mutations with cache invalidation.
type CatalogService struct {
	store  storage.ProductStore
	pages  *cache.Pages
	stats  CacheStats
	tracer trace.Tracer
}

// NewCatalogService returns a CatalogService. stats may be nil.
func NewCatalogService(store storage.ProductStore, pages *cache.Pages, stats CacheStats) *CatalogService {
	return &CatalogService{
		store:  store,
		pages:  pages,
		stats:  stats,
		tracer: telemetry.Tracer("catalog"),
	}
}

// List returns one page of products matching the filter, cache-aside: a
// valid cached page short-circuits the store entirely. The page request is
// normalized before key derivation so equivalent requests share an entry.
func (s *CatalogService) List(ctx context.Context, f catalog.Filter, p catalog.Page) (*catalog.ProductPage, error) {
	p = p.Normalize()

	ctx, span := s.tracer.Start(ctx, "catalog.list")
	defer span.End()

	if page, ok := s.pages.Get(ctx, f, p); ok {
		s.hit()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return page, nil
	}
	s.miss()
	span.SetAttributes(attribute.Bool("cache.hit", false))

	products, total, err := s.store.ListProducts(ctx, f, p)
	if err != nil {
		return nil, err
	}
	page := &catalog.ProductPage{
		Data:       products,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: catalog.PageCount(total, p.Limit),
	}
	s.pages.Put(ctx, f, p, page)
	return page, nil
}

// Get returns a single live product by ID.
func (s *CatalogService) Get(ctx context.Context, id string) (*catalog.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// SoftDelete marks a product deleted and invalidates every cached listing.
// Deleting an already-deleted product succeeds; the repeated invalidation
// is harmless.
func (s *CatalogService) SoftDelete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.soft_delete")
	defer span.End()

	if err := s.store.SoftDeleteProduct(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops all cached listings. Exposed for the sync upserter,
// which mutates products outside this service.
func (s *CatalogService) Invalidate(ctx context.Context) {
	s.pages.Invalidate(ctx)
	if s.stats != nil {
		s.stats.Invalidated()
	}
}

func (s *CatalogService) hit() {
	if s.stats != nil {
		s.stats.Hit()
	}
}

func (s *CatalogService) miss() {
	if s.stats != nil {
		s.stats.Miss()
	}
}

// metricsStats adapts telemetry.Metrics to CacheStats.
type metricsStats struct{ m *telemetry.Metrics }

// NewCacheStats wraps telemetry metrics as CacheStats.
func NewCacheStats(m *telemetry.Metrics) CacheStats { return metricsStats{m: m} }

func (s metricsStats) Hit()         { s.m.CacheHits.Inc() }
func (s metricsStats) Miss()        { s.m.CacheMisses.Inc() }
func (s metricsStats) Invalidated() { s.m.CacheInvalidations.Inc() }
