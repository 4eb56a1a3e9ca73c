// Package auth handles credential validation, session issuance and
// invite-style sign-up tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SignUpToken is an invite that permits one account registration.
type SignUpToken struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created"`
	ExpiresAt time.Time `json:"expires"`
}

// Repository handles sign-up token persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSignUpToken inserts a fresh sign-up token.
func (r *Repository) CreateSignUpToken(ctx context.Context, token string, expiresAt time.Time) (*SignUpToken, error) {
	t := &SignUpToken{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO signup_tokens (token, expires_at)
		 VALUES ($1, $2)
		 RETURNING token, created_at, expires_at`,
		token, expiresAt,
	).Scan(&t.Token, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("create signup token: %w", err)
	}
	return t, nil
}

// ConsumeSignUpToken deletes the token if it exists and has not expired.
// Deletion and validation happen in one statement so a token can be spent
// exactly once even under concurrent registrations.
func (r *Repository) ConsumeSignUpToken(ctx context.Context, token string) error {
	var consumed string
	err := r.db.QueryRow(ctx,
		`DELETE FROM signup_tokens
		 WHERE token = $1 AND expires_at > NOW()
		 RETURNING token`,
		token,
	).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvalidSignUpToken
	}
	if err != nil {
		return fmt.Errorf("consume signup token: %w", err)
	}
	return nil
}

// DeleteExpiredSignUpTokens purges tokens whose expiry has passed and
// returns how many were removed. Called by the reconciler.
func (r *Repository) DeleteExpiredSignUpTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM signup_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired signup tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
