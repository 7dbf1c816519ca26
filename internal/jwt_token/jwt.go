// Package jwttoken issues and verifies the HS256 bearer tokens that name a
// registrant on the enqueue API.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
	authmw "registrar/pkg/platform/middleware/auth"
)

const defaultLeeway = 30 * time.Second

// Claims are the claims of a registration bearer token. Registrant names the
// app package or browser origin allowed to enqueue registrations.
type Claims struct {
	Registrant string `json:"registrant"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies registrant tokens for one issuer and audience.
type Tokens struct {
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option configures Tokens.
type Option func(*Tokens)

// WithLeeway tolerates clock skew when checking exp and iat.
func WithLeeway(d time.Duration) Option {
	return func(t *Tokens) {
		t.leeway = d
	}
}

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(t *Tokens) {
		t.now = now
	}
}

func New(signingKey, issuer, audience string, opts ...Option) *Tokens {
	t := &Tokens{
		key:      []byte(signingKey),
		issuer:   issuer,
		audience: audience,
		leeway:   defaultLeeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue signs a token for registrant. The CLI and tests use it to mint
// credentials; production tokens come from the platform's identity provider.
func (t *Tokens) Issue(registrant string, ttl time.Duration) (string, error) {
	if registrant == "" {
		return "", dErrors.New(dErrors.CodeValidation, "registrant is required")
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Registrant: registrant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   registrant,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(t.key)
}

// Verify parses and checks a token. Every failure is CodeUnauthorized.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(t.leeway),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	case claims.Registrant == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token names no registrant")
	}
	return claims, nil
}

func (t *Tokens) keyFunc(*jwt.Token) (any, error) {
	return t.key, nil
}

// Validator adapts Tokens to the auth middleware.
func (t *Tokens) Validator() authmw.JWTValidator {
	return validator{t}
}

type validator struct {
	tokens *Tokens
}

func (v validator) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := v.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Registrant: claims.Registrant, JTI: claims.ID}, nil
}
