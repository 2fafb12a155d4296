package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/aria/internal/user"
	"github.com/onnwee/aria/internal/validate"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInactiveUser is returned when the account is disabled.
	ErrInactiveUser = errors.New("user account is inactive")
)

// RegisterInput is the data required to create an account.
type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned on successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service implements registration and login.
type Service struct {
	users  user.Repository
	tokens *JWTService
	cache  CredentialCache
	logger *slog.Logger
}

// NewService creates an auth Service. A nil cache disables caching.
func NewService(users user.Repository, tokens *JWTService, cache CredentialCache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoopCredentialCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, cache: cache, logger: logger}
}

// FieldError reports an invalid registration field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// Register validates in and creates an active, non-admin user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, &FieldError{Field: "email", Err: err}
	}

	username, err := validate.Username(in.Username)
	if err != nil {
		return nil, &FieldError{Field: "username", Err: err}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooShort) {
			return nil, &FieldError{Field: "password", Err: err}
		}
		return nil, err
	}

	u := &user.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate verifies username and password, consulting the credential
// cache before the repository.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if cached, ok := s.cache.Get(ctx, username); ok {
		if CheckPassword(cached.PasswordHash, password) {
			if !cached.IsActive {
				return nil, ErrInactiveUser
			}
			return cached, nil
		}
		// Stale entry after a password change; fall through to the repository.
		s.cache.Invalidate(ctx, username)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	s.cache.Set(ctx, u)
	return u, nil
}

// IssueTokens creates an access and refresh token for u.
func (s *Service) IssueTokens(u *user.User) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(u.ID, u.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(AccessTokenExpiry.Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.Lookup(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.GenerateAccessToken(u.ID, u.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &TokenPair{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(AccessTokenExpiry.Seconds()),
	}, nil
}

// Lookup returns the active user with id.
func (s *Service) Lookup(ctx context.Context, id string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	return u, nil
}

// Tokens returns the JWT service used to validate access tokens.
func (s *Service) Tokens() *JWTService {
	return s.tokens
}

// AuthenticateToken validates an access token and returns its active user.
func (s *Service) AuthenticateToken(ctx context.Context, accessToken string) (*user.User, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return s.Lookup(ctx, claims.Subject)
}
