// Package auth provides password hashing, JWT issuance/validation and the
// bearer-token middleware that guards the calculations API.
//
// AUTHENTICATION FLOW:
//  1. POST /login with email + password → service verifies the bcrypt hash
//  2. TokenService.Issue signs a JWT whose "sub" claim is the user's email
//  3. The client sends it back as "Authorization: Bearer <jwt>"
//  4. RequireUser validates the JWT, loads the user by email, and stores the
//     *model.User in the request context
//
// Tokens are stateless: nothing is stored server-side, so a token stays
// valid until it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the "iss" claim used when none is configured.
const DefaultIssuer = "calculations-api"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// ErrInvalidToken is returned by Validate for every failure: bad signature,
// wrong algorithm or issuer, expiry, malformed input, missing subject.
// Callers get no finer detail.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService handles JWT creation and validation with an HS256 secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least
// MinSecretLength characters and ttl must be positive; an empty issuer
// falls back to DefaultIssuer.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token TTL must be positive, got %s", ttl)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL returns the lifetime of tokens produced by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed access token for subject, valid for the configured TTL.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

// IssueWithTTL creates a token with a custom lifetime. A negative duration
// yields an already-expired token, which tests rely on.
func (s *TokenService) IssueWithTTL(subject string, d time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenStr and returns its subject.
//
// Checks: HS256 only (no "none", no algorithm confusion), signature,
// issuer, and a required, unexpired "exp".
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
