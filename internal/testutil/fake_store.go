// Package testutil provides shared fakes for catalog backend tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	catalog "github.com/okozhin/catalogd/internal"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
// It mirrors the sqlite store's semantics: listings exclude soft-deleted
// rows, external-ID lookups include them, soft-delete is idempotent.
type FakeStore struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product

	ListCalls  int // number of ListProducts invocations
	FailCreate map[string]error
	FailUpdate map[string]error
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		products:   make(map[string]*catalog.Product),
		FailCreate: make(map[string]error),
		FailUpdate: make(map[string]error),
	}
}

// Add inserts a product directly, bypassing error injection.
func (s *FakeStore) Add(p *catalog.Product) {
	cp := *p
	s.mu.Lock()
	s.products[p.ID] = &cp
	s.mu.Unlock()
}

// Len returns the number of stored products, deleted ones included.
func (s *FakeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// CreateProduct stores a product, honoring injected per-external-ID errors.
func (s *FakeStore) CreateProduct(_ context.Context, p *catalog.Product) error {
	if err := s.FailCreate[p.ExternalID]; err != nil {
		return err
	}
	s.Add(p)
	return nil
}

// GetProduct returns a live product by ID.
func (s *FakeStore) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.Deleted() {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// GetProductByExternalID returns a product by external ID, deleted or not.
func (s *FakeStore) GetProductByExternalID(_ context.Context, externalID string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var deleted *catalog.Product
	for _, p := range s.products {
		if p.ExternalID != externalID {
			continue
		}
		if !p.Deleted() {
			cp := *p
			return &cp, nil
		}
		deleted = p
	}
	if deleted != nil {
		cp := *deleted
		return &cp, nil
	}
	return nil, catalog.ErrNotFound
}

// ListProducts filters, sorts, and windows the live products.
func (s *FakeStore) ListProducts(_ context.Context, f catalog.Filter, p catalog.Page) ([]catalog.Product, int, error) {
	s.mu.Lock()
	s.ListCalls++
	s.mu.Unlock()

	s.mu.RLock()
	var matched []catalog.Product
	for _, prod := range s.products {
		if prod.Deleted() || !matches(prod, f) {
			continue
		}
		matched = append(matched, *prod)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(p *catalog.Product, f catalog.Filter) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

// UpdateProduct overwrites an existing product, honoring injected errors.
func (s *FakeStore) UpdateProduct(_ context.Context, p *catalog.Product) error {
	if err := s.FailUpdate[p.ExternalID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// SoftDeleteProduct marks a product deleted; idempotent.
func (s *FakeStore) SoftDeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	if p.DeletedAt == nil {
		now := time.Now().UTC()
		p.DeletedAt = &now
	}
	return nil
}

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
