// Package auth verifies bearer tokens and carries the caller's identity in the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a permission granted to a token subject.
type Role string

const (
	RoleClient  Role = "CLIENT"
	RoleCashier Role = "CASHIER"
	RoleAdmin   Role = "ADMIN"
)

const DefaultTokenTTL = 24 * time.Hour

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Roles  []Role
}

// HasRole reports whether the principal was granted any of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer)}
}

// Verify parses token and returns its principal. The subject is required.
func (v *Verifier) Verify(ctx context.Context, token string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Principal{}, errors.New("token has no subject")
	}

	p := Principal{UserID: c.Subject, Roles: make([]Role, 0, len(c.Roles))}
	for _, r := range c.Roles {
		p.Roles = append(p.Roles, Role(strings.ToUpper(strings.TrimSpace(r))))
	}
	return p, nil
}

// Issuer signs tokens for operators and tests. Production tokens come from
// the identity service.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID with roles.
func (i *Issuer) Issue(userID string, roles ...Role) (string, error) {
	rs := make([]string, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, string(r))
	}
	now := i.now()
	c := claims{
		Roles: rs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
