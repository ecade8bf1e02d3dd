package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/observability"
	"github.com/Rrens/appstruct/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo  domain.UserRepository
	tokens    *security.TokenManager
	validator *security.Validator
	events    observability.Sink
	now       func() time.Time
}

// NewAuthService creates a new auth service. events may be nil.
func NewAuthService(
	userRepo domain.UserRepository,
	tokens *security.TokenManager,
	validator *security.Validator,
	events observability.Sink,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokens:    tokens,
		validator: validator,
		events:    events,
		now:       time.Now,
	}
}

// Register creates a new user account and signs it in
func (s *AuthService) Register(ctx context.Context, input domain.RegisterInput) (*domain.AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, input.Email, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadyExists
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// the unique indexes still catch a concurrent registration
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	observability.Emit(ctx, s.events, observability.EventRegistered, user.ID, nil)

	return s.signIn(user)
}

// Login authenticates a user. Unknown email and wrong password both return
// ErrInvalidCredentials after the same amount of bcrypt work.
func (s *AuthService) Login(ctx context.Context, input domain.LoginInput) (*domain.AuthResult, error) {
	input.Email = normalizeEmail(input.Email)

	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		security.CompareDummy(input.Password)
		s.loginFailed(ctx, "", "unknown email")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := security.ComparePassword(user.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.loginFailed(ctx, user.ID, "password mismatch")
		return nil, domain.ErrInvalidCredentials
	}

	observability.Emit(ctx, s.events, observability.EventLoginSucceeded, user.ID, nil)

	return s.signIn(user)
}

// Authenticate resolves a bearer token to its user. Every failure returns
// ErrUnauthenticated; the reason is only logged.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		log.Debug().Msg("Authentication failed: missing token")
		return nil, domain.ErrUnauthenticated
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("Authentication failed: token rejected")
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Str("user_id", userID).Msg("Authentication failed: unknown user")
		} else {
			log.Error().Err(err).Str("user_id", userID).Msg("Authentication failed: user lookup")
		}
		return nil, domain.ErrUnauthenticated
	}

	return user, nil
}

func (s *AuthService) signIn(user *domain.User) (*domain.AuthResult, error) {
	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{
		Token: token,
		User:  user.Public(),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, reason string) {
	log.Info().Str("user_id", userID).Str("reason", reason).Msg("Login failed")
	observability.Emit(ctx, s.events, observability.EventLoginFailed, userID, map[string]any{"reason": reason})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
