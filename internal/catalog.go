// Package catalog defines domain types and interfaces for the catalogd backend.
// This package has no project imports -- it is the dependency root.
package catalog

import (
	"context"
	"net/http"
	"time"
)

// --- Products ---

// Product is a catalog entry. DeletedAt marks soft-deletion; a nil value
// means the product is live. ExternalID ties the product to its record in
// the upstream content source; at most one live product exists per
// external ID.
type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Price      float64    `json:"price"`
	ExternalID string     `json:"externalId,omitempty"`
	DeletedAt  *time.Time `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Deleted reports whether the product is soft-deleted.
func (p *Product) Deleted() bool { return p.DeletedAt != nil }

// Filter restricts a product listing. Zero-valued fields impose no
// constraint: empty strings match everything, nil price bounds are open.
type Filter struct {
	Name     string   `json:"name,omitempty"`     // case-insensitive substring
	Category string   `json:"category,omitempty"` // exact match
	MinPrice *float64 `json:"minPrice,omitempty"` // inclusive
	MaxPrice *float64 `json:"maxPrice,omitempty"` // inclusive
}

// IsZero reports whether the filter imposes no constraint at all.
func (f Filter) IsZero() bool {
	return f.Name == "" && f.Category == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// Pagination defaults and bounds for product listings.
const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100
)

// Page is a pagination window. Page is 1-based.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the page request into valid bounds, applying defaults
// for out-of-range values.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows preceding the window.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// ProductPage is one page of listing results, the unit stored in the
// pagination cache.
type ProductPage struct {
	Data       []Product `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}

// PageCount returns the number of pages needed for total items at the
// given limit.
func PageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// --- External source ---

// Entry is a product record fetched from the upstream content source.
// ID is the source's stable identifier used as the upsert key.
type Entry struct {
	ID       string
	Name     string
	Category string
	Price    float64
}

// SyncResult summarizes one reconcile pass.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
type requestMeta struct {
	RequestID string
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}

// --- Authenticator interface ---

// Authenticator validates request credentials. Implementations return
// ErrUnauthorized for requests that must not reach business handlers.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) error
}
