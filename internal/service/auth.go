// Package service holds the business rules between the HTTP handlers and
// the repositories:
//
//	Handler (HTTP) → Service (validation, rules) → Repository (storage)
//
// Services take and return plain Go values and apperror errors. They never
// see an *http.Request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/auth"
	"github.com/sakif/calculations-api/internal/model"
	"github.com/sakif/calculations-api/internal/repository"
)

const (
	MaxUsernameLength = 50
	MinPasswordLength = 8
)

// TokenTypeBearer is the token_type reported by Login.
const TokenTypeBearer = "bearer"

// invalidCredentials is shared by every login failure so that an unknown
// email and a wrong password produce byte-identical errors.
const invalidCredentials = "incorrect email or password"

// AuthService registers users and exchanges credentials for access tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// dummyHash is compared against when the email is unknown, so a miss
	// costs the same bcrypt work as a wrong password.
	dummyHash string
}

// NewAuthService creates an AuthService. It hashes one throwaway password
// up front, which takes one bcrypt round at the configured cost.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) (*AuthService, error) {
	dummy, err := passwords.Hash("timing-equaliser-not-a-password")
	if err != nil {
		return nil, fmt.Errorf("service/auth: preparing dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// LoginResult is what a successful login hands back to the handler.
type LoginResult struct {
	AccessToken string
	TokenType   string
	User        *model.User
}

// Register validates the input, hashes the password and stores a new user.
// A duplicate email returns apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate returns the user whose email and password match. Every
// mismatch, including an unknown or malformed email, returns the same
// apperror.ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to look up user", slog.String("error", err.Error()))
			return nil, fmt.Errorf("service/auth: looking up user: %w", err)
		}
		s.passwords.Verify(s.dummyHash, password)
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	if !s.passwords.Verify(user.PasswordHash, password) {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	return user, nil
}

// Login authenticates the credentials and issues an access token whose
// subject is the user's email.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		User:        user,
	}, nil
}

// normalizeEmail trims and lower-cases a bare address. Display-name forms
// such as "Alice <a@example.com>" are rejected.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not a valid address")
	}
	return email, nil
}
