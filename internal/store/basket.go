package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wareline/wareline/internal/basket"
)

// ErrBasketNotFound is returned when no snapshot exists for a tag.
var ErrBasketNotFound = errors.New("basket not found in local store")

// timeFormat is the canonical timestamp encoding for all stored times.
const timeFormat = time.RFC3339Nano

// GetBasket loads the snapshot for a tag.
// Returns ErrBasketNotFound when the tag has never been stored.
func (s *Store) GetBasket(ctx context.Context, tag string) (basket.Basket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tag, status, product_ref, batch_ref, warehouse, quantity, updated_at, updated_by
		FROM baskets
		WHERE tag = ?
	`, tag)

	b, err := scanBasket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return basket.Basket{}, ErrBasketNotFound
	}
	if err != nil {
		return basket.Basket{}, fmt.Errorf("get basket %s: %w", tag, err)
	}
	return b, nil
}

// PutBasket upserts a snapshot. Last writer wins on the full field set -
// there is no merge, matching the authoritative-overwrite read path and the
// optimistic write path alike.
func (s *Store) PutBasket(ctx context.Context, b basket.Basket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baskets
		(tag, status, product_ref, batch_ref, warehouse, quantity, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			status = excluded.status,
			product_ref = excluded.product_ref,
			batch_ref = excluded.batch_ref,
			warehouse = excluded.warehouse,
			quantity = excluded.quantity,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`,
		b.Tag,
		string(b.Status),
		b.ProductRef,
		b.BatchRef,
		b.Warehouse,
		b.Quantity,
		b.UpdatedAt.UTC().Format(timeFormat),
		b.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("put basket %s: %w", b.Tag, err)
	}
	return nil
}

// DeleteBasket removes the snapshot for a tag. Deleting an absent tag is
// not an error.
func (s *Store) DeleteBasket(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM baskets WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("delete basket %s: %w", tag, err)
	}
	return nil
}

// ListBaskets returns every stored snapshot ordered by tag.
func (s *Store) ListBaskets(ctx context.Context) ([]basket.Basket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, status, product_ref, batch_ref, warehouse, quantity, updated_at, updated_by
		FROM baskets
		ORDER BY tag
	`)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	defer rows.Close()

	var out []basket.Basket
	for rows.Next() {
		b, err := scanBasket(rows)
		if err != nil {
			return nil, fmt.Errorf("list baskets: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	return out, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBasket(row rowScanner) (basket.Basket, error) {
	var (
		b         basket.Basket
		status    string
		updatedAt string
	)
	err := row.Scan(
		&b.Tag,
		&status,
		&b.ProductRef,
		&b.BatchRef,
		&b.Warehouse,
		&b.Quantity,
		&updatedAt,
		&b.UpdatedBy,
	)
	if err != nil {
		return basket.Basket{}, err
	}

	b.Status, err = basket.ParseStatus(status)
	if err != nil {
		return basket.Basket{}, err
	}

	b.UpdatedAt, err = time.Parse(timeFormat, updatedAt)
	if err != nil {
		return basket.Basket{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return b, nil
}
