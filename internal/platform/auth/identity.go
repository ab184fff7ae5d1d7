package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Identity captures the authenticated principal details extracted from an access token.
type Identity struct {
	UID   string
	Email string
	Name  string
	Roles []string
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity carries a back-office role.
func (i *Identity) IsAdmin() bool {
	return i.HasAnyRole(RoleAdmin, RoleStaff)
}

type contextKey string

const identityContextKey contextKey = "github.com/greenmart/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ServiceIdentity captures details about the authenticated service principal.
type ServiceIdentity struct {
	Subject  string
	Email    string
	Issuer   string
	Audience string

	Token  *jwt.Token
	Claims map[string]any
}

type serviceIdentityContextKey struct{}

// WithServiceIdentity attaches the verified service identity to the request context.
func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, serviceIdentityContextKey{}, identity)
}

// ServiceIdentityFromContext retrieves the identity stored by the middleware.
func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityContextKey{}).(*ServiceIdentity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
