// Package token issues and verifies the bearer tokens that bind a caller to a
// (username, orgName) pair.
//
// Tokens are stateless: nothing is stored server side, and Issue does not check
// that the pair is a registered ledger identity. That check happens when the
// ledger operation itself runs under the claimed identity. Tokens are never
// revoked, they simply stop verifying once expired.
package token

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

// Kind classifies a verification failure
type Kind string

const (
	KindInvalidSignature Kind = "invalid_signature"
	KindExpired          Kind = "expired"
	KindMalformed        Kind = "malformed"
)

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrMalformed        = errors.New("token is malformed")
	ErrMissingClaim     = errors.New("username and orgName are required")
)

// AuthError is returned by Verify. Callers must not send it to clients.
type AuthError struct {
	Kind Kind
	Err  error
}

func (e *AuthError) Error() string {
	return "authentication failed (" + string(e.Kind) + "): " + e.Err.Error()
}

func (e *AuthError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *AuthError) sentinel() error {
	switch e.Kind {
	case KindInvalidSignature:
		return ErrInvalidSignature
	case KindExpired:
		return ErrExpired
	default:
		return ErrMalformed
	}
}

// Claims is the identity carried by a token
type Claims struct {
	Username string `json:"username"`
	OrgName  string `json:"orgName"`
	jwt.RegisteredClaims
}

// Token describes an issued token
type Token struct {
	Username  string
	OrgName   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authority signs and verifies tokens with a process-wide shared secret
type Authority struct {
	secret []byte
	now    func() time.Time
}

// Option configures an Authority
type Option func(*Authority)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// NewAuthority creates a token authority for the given secret
func NewAuthority(secret string, opts ...Option) (*Authority, error) {
	if secret == "" {
		return nil, errl.Errorf("token secret must not be empty")
	}

	a := &Authority{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Issue returns a signed token for the pair, valid for ttl
func (a *Authority) Issue(username, orgName string, ttl time.Duration) (string, *Token, error) {
	if username == "" || orgName == "" {
		return "", nil, ErrMissingClaim
	}

	now := a.now()
	claims := Claims{
		Username: username,
		OrgName:  orgName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", nil, errl.Errorf("failed to sign token: %w", err)
	}

	slog.Debug("Token issued",
		"username", username,
		"org", orgName,
		"expiration", claims.ExpiresAt.Time,
	)

	return signed, &Token{
		Username:  username,
		OrgName:   orgName,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// Any failure is an *AuthError.
func (a *Authority) Verify(signed string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// a token is still valid at its expiry instant
		jwt.WithLeeway(time.Nanosecond),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Username == "" || claims.OrgName == "" {
		return nil, &AuthError{Kind: KindMalformed, Err: ErrMissingClaim}
	}

	return claims, nil
}

func classify(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &AuthError{Kind: KindInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &AuthError{Kind: KindExpired, Err: err}
	default:
		return &AuthError{Kind: KindMalformed, Err: err}
	}
}
