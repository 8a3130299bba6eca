// Package token mints and validates the session assertions that carry all
// gateway authentication state. Assertions are HMAC-SHA256 signed JWTs:
// claims are readable by any holder, but cannot be altered without the
// signing key. Three issuer constants partition the token space into
// non-interchangeable trust domains.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer constants. A token minted under one issuer must never validate in
// another issuer's context, regardless of its role claim.
const (
	IssuerUser      = "porta-user"
	IssuerAdmin     = "porta-admin"
	IssuerEmergency = "porta-emergency"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalidToken indicates the token failed validation. Parsing fails
// closed: callers never see a partially populated claim set.
var ErrInvalidToken = errors.New("token: invalid token")

const issuedAtSkew = 5 * time.Second

// Claims is the session assertion carried by every bearer token.
type Claims struct {
	Email           string `json:"email"`
	Role            string `json:"role"`
	Application     string `json:"app,omitempty"`
	TokenType       string `json:"token_type"`
	EmergencyAccess bool   `json:"isEmergencyAccess,omitempty"`
	jwt.RegisteredClaims
}

// Pair bundles the access and refresh assertions minted for one login.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Codec signs and verifies session assertions with a process-wide key.
type Codec struct {
	secret []byte
	keyID  string
	now    func() time.Time
}

// Option configures Codec behavior.
type Option func(*Codec)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithKeyID embeds a key identifier into token headers to support key
// rollover without breaking outstanding tokens.
func WithKeyID(kid string) Option {
	return func(c *Codec) {
		c.keyID = strings.TrimSpace(kid)
	}
}

// NewCodec constructs a Codec around the given signing secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint serializes the claim set into a signed, URL-safe token string.
// Issued-at, expiry, issuer and token id are computed here; the caller
// supplies identity claims only.
func (c *Codec) Mint(claims Claims, issuer string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}
	if strings.TrimSpace(issuer) == "" {
		return "", time.Time{}, errors.New("token: issuer is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token: ttl must be greater than zero")
	}
	if claims.TokenType == "" {
		claims.TokenType = TypeAccess
	}

	now := c.now().UTC()
	exp := now.Add(ttl)
	claims.Issuer = issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.ID = uuid.NewString()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if c.keyID != "" {
		tok.Header["kid"] = c.keyID
	}
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// MintPair mints an access assertion plus a refresh assertion with the same
// identity claims and a longer TTL.
func (c *Codec) MintPair(claims Claims, issuer string, accessTTL, refreshTTL time.Duration) (Pair, error) {
	claims.TokenType = TypeAccess
	access, accessExp, err := c.Mint(claims, issuer, accessTTL)
	if err != nil {
		return Pair{}, err
	}
	claims.TokenType = TypeRefresh
	refresh, refreshExp, err := c.Mint(claims, issuer, refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ParseAndValidate verifies the signature and required claims, and checks
// the token was minted under the expected issuer. Any failure yields
// ErrInvalidToken.
func (c *Codec) ParseAndValidate(tokenString, expectedIssuer string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	parsed, err := parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.validateClaims(claims, expectedIssuer); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) validateClaims(claims *Claims, expectedIssuer string) error {
	if claims.Issuer != expectedIssuer {
		return errors.New("unexpected issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := c.now().UTC()
	if !claims.ExpiresAt.Time.After(now) {
		return errors.New("token expired")
	}
	if claims.IssuedAt.Time.After(now.Add(issuedAtSkew)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return errors.New("unknown token type")
	}
	return nil
}

// IsExpired reports whether the assertion's expiry is at or before now.
func (c *Codec) IsExpired(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(c.now().UTC())
}
