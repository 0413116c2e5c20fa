// Package auth carries forward the teacher's principal-extraction idiom —
// validate a Bearer credential, inject a Principal into the request
// context, and offer role-guard helpers — generalized from gRPC metadata to
// plain net/http headers, and from a single JWT-everywhere model to two
// distinct credential shapes: an admin JWT and an opaque per-drone session
// token.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Principal represents the authenticated caller.
type Principal struct {
	Name string // admin username, or the drone_id for a drone principal
	Kind string // "admin" | "drone"
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// BearerToken extracts the raw token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// ParseAdminJWT validates an HS256 admin JWT and returns the admin
// Principal it carries.
func ParseAdminJWT(tokenStr, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("admin jwt secret is empty")
	}
	type claims struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		jwt.RegisteredClaims
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Name == "" || strings.ToLower(c.Kind) != "admin" {
		return nil, errors.New("invalid claims")
	}
	return &Principal{Name: c.Name, Kind: "admin"}, nil
}

// NewSessionToken mints an opaque, non-JWT session token: 32 bytes of
// crypto/rand, base64url-encoded. Session tokens carry no claims — they are
// looked up by exact match against the store's token table, unlike the
// admin JWT which is self-verifying.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ConstantTimeEquals compares two secrets without leaking timing
// information, used for the shared registration-token check.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, errors.New("missing principal")
	}
	return p, nil
}

// RequireAdmin ensures the caller is an admin principal.
func RequireAdmin(ctx context.Context) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Kind != "admin" {
		return nil, errors.New("only admin can perform this action")
	}
	return p, nil
}

// RequireDrone ensures the caller is a drone principal and returns that
// Principal; its Name is the drone_id.
func RequireDrone(ctx context.Context) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Kind != "drone" {
		return nil, errors.New("only a registered drone can perform this action")
	}
	return p, nil
}
