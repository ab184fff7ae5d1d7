package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired signals that the provided access token has expired.
	ErrTokenExpired = errors.New("auth: access token expired")
	// ErrTokenInvalid signals that the provided access token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: access token invalid")
)

// Claims is the JWT payload carried by GreenMart access tokens.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokenManager validates inputs and builds a TokenManager.
func NewTokenManager(signingKey, issuer string, ttl time.Duration, clock func() time.Time) (*TokenManager, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, errors.New("auth: signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenManager{
		key:    []byte(signingKey),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

// Issue signs a token for the supplied identity.
func (m *TokenManager) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.UID) == "" {
		return "", errors.New("auth: identity uid is required")
	}
	now := m.clock()
	claims := Claims{
		Email: identity.Email,
		Name:  identity.Name,
		Roles: normaliseRoles(identity.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token, returning the embedded identity.
func (m *TokenManager) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock),
	)
	_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	roles := normaliseRoles(claims.Roles)
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	return &Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Roles: roles,
	}, nil
}

func normaliseRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
