// Package auth validates the JWTs presented by API callers and extracts the
// organization scope every request must carry.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a token is missing, malformed, expired, or
// fails signature verification.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Claims is the JWT payload issued to API callers. OrganizationID scopes
// every subsequent operation; requests without one are rejected before
// reaching any service (ORGANIZATION_CONTEXT_REQUIRED).
type Claims struct {
	OrganizationID string   `json:"org_id"`
	Subject        string   `json:"sub"`
	Roles          []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token carries the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Manager validates HS256 JWTs and issues new ones for service-to-service or
// test use. It is the sole authority for the organization claim.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager builds a Manager backed by the given HMAC secret. Returns nil if
// the secret is blank, matching the teacher's fail-closed wiring: callers
// must refuse to start an authenticated server without a configured secret.
func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{secret: []byte(secret), issuer: strings.TrimSpace(issuer), ttl: ttl}
}

// Validate parses and verifies tokenString, returning the embedded claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	if m == nil || len(m.secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret not configured", ErrUnauthorized)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if strings.TrimSpace(claims.OrganizationID) == "" {
		return nil, fmt.Errorf("%w: token missing org_id claim", ErrUnauthorized)
	}
	if m.issuer != "" && claims.Issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrUnauthorized, claims.Issuer)
	}
	return claims, nil
}

// Issue signs a new token for the given organization/subject pair, valid for
// the Manager's configured TTL.
func (m *Manager) Issue(organizationID, subject string, roles []string) (string, time.Time, error) {
	if m == nil || len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret not configured")
	}
	now := time.Now().UTC()
	expiry := now.Add(m.ttl)
	claims := &Claims{
		OrganizationID: strings.TrimSpace(organizationID),
		Subject:        strings.TrimSpace(subject),
		Roles:          roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}
