// Package link manages shortened URLs.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Link maps a short code to a destination URL.
type Link struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrNotFound is returned when no link exists for a code.
var ErrNotFound = errors.New("link not found")

// Repository handles link persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new link Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new link.
func (r *Repository) Create(ctx context.Context, id, destination, owner string) (*Link, error) {
	l := &Link{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO links (id, destination, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, destination, owner_id, created_at`,
		id, destination, owner,
	).Scan(&l.ID, &l.Destination, &l.Owner, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	return l, nil
}

// GetByID fetches a link by its short code.
func (r *Repository) GetByID(ctx context.Context, id string) (*Link, error) {
	l := &Link{}
	err := r.db.QueryRow(ctx,
		`SELECT id, destination, owner_id, created_at FROM links WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.Destination, &l.Owner, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return l, nil
}

// ListByOwner returns all links belonging to the owner, newest first.
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]*Link, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, destination, owner_id, created_at
		 FROM links WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		l := &Link{}
		if err := rows.Scan(&l.ID, &l.Destination, &l.Owner, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Remove deletes a link by its short code.
func (r *Repository) Remove(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	return err
}

// ReassignOwner moves all of oldOwner's links to newOwner.
func (r *Repository) ReassignOwner(ctx context.Context, oldOwner, newOwner string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE links SET owner_id = $2 WHERE owner_id = $1`,
		oldOwner, newOwner,
	)
	return err
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
