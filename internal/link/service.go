package link

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dropserve/service/internal/generator"
	"github.com/dropserve/service/internal/user"
)

// ErrForbidden is returned when the requester may not mutate a link.
var ErrForbidden = errors.New("not the link owner")

// ErrBadDestination is returned for destinations that are not http(s) URLs.
var ErrBadDestination = errors.New("destination must be an absolute http or https URL")

const shortCodeLength = 6

// Service contains business logic for URL shortening.
type Service struct {
	repo    *Repository
	userSvc *user.Service
}

// NewService creates a new link Service.
func NewService(repo *Repository, userSvc *user.Service) *Service {
	return &Service{repo: repo, userSvc: userSvc}
}

// Shorten validates the destination and creates a link with a short code
// produced by the owner's configured generator strategy.
func (s *Service) Shorten(ctx context.Context, destination, ownerID string) (*Link, error) {
	parsed, err := url.Parse(destination)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ErrBadDestination
	}

	strategy := "random"
	if owner, err := s.userSvc.GetByID(ctx, ownerID); err == nil {
		strategy = owner.Generator
	}

	id, err := generator.ByName(strategy)(shortCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate short code: %w", err)
	}

	l, err := s.repo.Create(ctx, id, destination, ownerID)
	if isUniqueViolation(err) {
		// Code collision: retry once with a longer random code.
		id, rerr := generator.Random(shortCodeLength + 4)
		if rerr != nil {
			return nil, fmt.Errorf("generate short code: %w", rerr)
		}
		return s.repo.Create(ctx, id, destination, ownerID)
	}
	return l, err
}

// Resolve returns the destination for a short code.
func (s *Service) Resolve(ctx context.Context, id string) (string, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return l.Destination, nil
}

// ListByOwner returns the requester's links, newest first.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]*Link, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// Delete removes a link. Only the owner or an admin may delete it.
func (s *Service) Delete(ctx context.Context, id, requesterID string, requesterAdmin bool) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l.Owner != requesterID && !requesterAdmin {
		return ErrForbidden
	}
	return s.repo.Remove(ctx, id)
}
