package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload: {sub, email, role, iat, exp}.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Identity returns the identity the claims were issued for.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// TokenService issues and verifies HS256 access tokens with one
// process-wide secret. It holds no mutable state and is safe for
// concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now. Used by tests to pin issuance and expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService returns a service signing with secret. ttl is truncated
// to whole seconds, the resolution of the iat and exp claims.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}
	ttl = ttl.Truncate(time.Second)
	if ttl < time.Second {
		return nil, ErrInvalidTTL
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime applied to every issued token.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id. iat is the current time and exp is iat plus
// the configured ttl; neither can be supplied by the caller.
func (s *TokenService) Issue(id Identity) (string, *Claims, error) {
	issuedAt := s.now().Truncate(time.Second)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
		Email: id.Email,
		Role:  id.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature first and expiry second. It returns
// ErrInvalidSignature or ErrTokenExpired (wrapped) on failure. A token is
// still valid at the exact second of exp.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrInvalidSignature)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidSignature)
	}

	if s.now().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return s.secret, nil
}
