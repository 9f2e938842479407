package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	catalog "github.com/okozhin/catalogd/internal"
)

const productCols = `id, name, category, price, external_id, deleted_at, created_at, updated_at`

// CreateProduct inserts a new product.
func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO products (id, name, category, price, external_id, deleted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Category, p.Price,
		nullStr(p.ExternalID), timeToStr(p.DeletedAt),
		p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetProduct retrieves a live product by ID.
func (s *Store) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id = ? AND deleted_at IS NULL`, id,
	)
	return scanProduct(row)
}

// GetProductByExternalID retrieves a product by its external source ID.
// Soft-deleted rows are included so the sync upserter can update them in
// place. When both a deleted and a live row exist for the same external ID
// (possible after delete-then-resync), the live row wins.
func (s *Store) GetProductByExternalID(ctx context.Context, externalID string) (*catalog.Product, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE external_id = ?
		 ORDER BY deleted_at IS NOT NULL, updated_at DESC LIMIT 1`, externalID,
	)
	return scanProduct(row)
}

// ListProducts returns the page of live products matching the filter plus
// the total pre-pagination match count. Results are ordered by name then
// id for a stable window.
func (s *Store) ListProducts(ctx context.Context, f catalog.Filter, p catalog.Page) ([]catalog.Product, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := s.read.QueryContext(ctx,
		`SELECT `+productCols+` FROM products WHERE `+where+
			` ORDER BY name, id LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]catalog.Product, 0, p.Limit)
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *prod)
	}
	return products, total, rows.Err()
}

// buildFilter translates a Filter into a WHERE clause with positional args.
// Soft-deleted rows are excluded unconditionally; absent filter fields add
// no predicate.
func buildFilter(f catalog.Filter) (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	if f.Name != "" {
		// SQLite LIKE is case-insensitive for ASCII by default. The filter
		// value is a literal substring, so % and _ must not act as wildcards.
		conds = append(conds, `name LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, escapeLike(f.Name))
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	return strings.Join(conds, " AND "), args
}

// escapeLike neutralizes LIKE metacharacters in user input.
var escapeLike = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace

// UpdateProduct overwrites the mutable fields of an existing product.
// The row's ID and created_at never change; a soft-deleted row is revived
// when p.DeletedAt is nil.
func (s *Store) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE products SET name=?, category=?, price=?, external_id=?, deleted_at=?, updated_at=?
		 WHERE id=?`,
		p.Name, p.Category, p.Price, nullStr(p.ExternalID),
		timeToStr(p.DeletedAt), p.UpdatedAt.UTC().Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "product")
}

// SoftDeleteProduct marks a product deleted. Already-deleted products are
// left untouched (idempotent); unknown IDs return ErrNotFound.
func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.write.ExecContext(ctx,
		`UPDATE products SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// No live row was updated: distinguish already-deleted from unknown.
	var exists int
	err = s.read.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id=?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product: %w", catalog.ErrNotFound)
	}
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*catalog.Product, error) {
	var p catalog.Product
	var externalID, deletedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Name, &p.Category, &p.Price,
		&externalID, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFoundErr(err)
	}

	p.ExternalID = externalID.String
	p.DeletedAt = parseTime(deletedAt)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// helpers

// notFoundErr translates sql.ErrNoRows to catalog.ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrNotFound
	}
	return err
}

func timeToStr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func checkRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, catalog.ErrNotFound)
	}
	return nil
}
