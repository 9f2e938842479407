// Package storage defines persistence interfaces for the catalog backend.
package storage

import (
	"context"

	catalog "github.com/okozhin/catalogd/internal"
)

// ProductStore manages product persistence.
type ProductStore interface {
	// CreateProduct inserts a new product.
	CreateProduct(ctx context.Context, p *catalog.Product) error
	// GetProduct retrieves a live product by ID. Soft-deleted products
	// return ErrNotFound.
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	// GetProductByExternalID retrieves a product by its external source ID,
	// including soft-deleted ones. The sync upserter updates deleted rows
	// in place rather than duplicating them.
	GetProductByExternalID(ctx context.Context, externalID string) (*catalog.Product, error)
	// ListProducts returns the page of live products matching the filter
	// plus the total pre-pagination match count.
	ListProducts(ctx context.Context, f catalog.Filter, p catalog.Page) ([]catalog.Product, int, error)
	// UpdateProduct overwrites the mutable fields of an existing product.
	UpdateProduct(ctx context.Context, p *catalog.Product) error
	// SoftDeleteProduct marks a product deleted. Deleting an already
	// deleted product is a no-op; an unknown ID returns ErrNotFound.
	SoftDeleteProduct(ctx context.Context, id string) error
}

// Store combines all storage interfaces.
type Store interface {
	ProductStore
	Close() error
}
