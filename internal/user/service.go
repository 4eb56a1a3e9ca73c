package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropserve/service/internal/generator"
)

// Service contains business logic for user management.
type Service struct {
	repo *Repository
}

// NewService creates a new user Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new user account with a fresh API token.
func (s *Service) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	token, err := generator.Random(32)
	if err != nil {
		return nil, fmt.Errorf("generate api token: %w", err)
	}

	u, err := s.repo.Create(ctx, username, passwordHash, token)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername returns a user by their username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// GetByToken returns a user by their static API token.
func (s *Service) GetByToken(ctx context.Context, token string) (*User, error) {
	return s.repo.GetByToken(ctx, token)
}

// SetGenerator updates the user's public-ID strategy.
func (s *Service) SetGenerator(ctx context.Context, id, name string) error {
	return s.repo.SetGenerator(ctx, id, name)
}

// RegenerateToken issues a new API token for the user and returns it.
func (s *Service) RegenerateToken(ctx context.Context, id string) (string, error) {
	token, err := generator.Random(32)
	if err != nil {
		return "", fmt.Errorf("generate api token: %w", err)
	}
	if err := s.repo.RegenerateToken(ctx, id, token); err != nil {
		return "", fmt.Errorf("store api token: %w", err)
	}
	return token, nil
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
