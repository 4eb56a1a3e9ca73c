package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropserve/service/internal/config"
	"github.com/dropserve/service/internal/generator"
	"github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/user"
)

const signUpTokenTTL = 72 * time.Hour

// ErrInvalidCredentials is returned when the username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidSignUpToken is returned when a sign-up token is missing,
// already spent, or expired.
var ErrInvalidSignUpToken = errors.New("invalid or expired sign-up token")

// Service contains the business logic for authentication and registration.
type Service struct {
	repo    *Repository
	userSvc *user.Service
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(repo *Repository, userSvc *user.Service, cfg *config.Config) *Service {
	return &Service{repo: repo, userSvc: userSvc, cfg: cfg}
}

// Login validates the credentials and issues a session JWT.
func (s *Service) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.userSvc.GetByUsername(ctx, username)
	if err != nil {
		// Same failure for unknown user and wrong password.
		return "", nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Register consumes a sign-up token, creates the account and issues a JWT.
func (s *Service) Register(ctx context.Context, signUpToken, username, password string) (string, *user.User, error) {
	if err := s.repo.ConsumeSignUpToken(ctx, signUpToken); err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, username, string(hash))
	if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// CreateSignUpToken mints an invite token valid for a fixed window.
func (s *Service) CreateSignUpToken(ctx context.Context) (*SignUpToken, error) {
	token, err := generator.Random(32)
	if err != nil {
		return nil, fmt.Errorf("generate signup token: %w", err)
	}
	return s.repo.CreateSignUpToken(ctx, token, time.Now().Add(signUpTokenTTL))
}

// ResolveToken looks up a static API token for the auth middleware.
func (s *Service) ResolveToken(ctx context.Context, token string) (*middleware.Requester, error) {
	u, err := s.userSvc.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Requester{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}, nil
}

// issueToken creates a signed JWT for the given user.
func (s *Service) issueToken(u *user.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"isAdmin":  u.IsAdmin,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
