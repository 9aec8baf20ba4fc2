package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"go.uber.org/zap"
)

// Service authenticates panel users against stored bcrypt hashes and issues
// access tokens. A disabled or unknown account and a wrong password are
// indistinguishable to the caller.
type Service struct {
	users  repository.UserRepository
	tokens *TokenManager
	logger *zap.Logger
}

func NewService(users repository.UserRepository, tokens *TokenManager, logger *zap.Logger) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{users: users, tokens: tokens, logger: logger}, nil
}

func (s *Service) Login(ctx context.Context, email string, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("login rejected", zap.String("email", email))
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("userId", user.ID))
	return token, user, nil
}

// Authenticate resolves a bearer token to an active user id.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}

	// The account may have been deactivated after the token was issued.
	if _, err := s.users.GetActiveByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	return userID, nil
}
