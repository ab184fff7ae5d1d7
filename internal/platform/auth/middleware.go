package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// TokenVerifier verifies access tokens and extracts the caller identity.
type TokenVerifier interface {
	Verify(tokenStr string) (*Identity, error)
}

// Authenticator wires token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// RequireAuth verifies the Authorization bearer token and ensures the caller
// holds one of the allowed roles. With no roles given, any authenticated
// principal passes.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			identity, err := a.verifier.Verify(tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireUser restricts the route to customer accounts.
func (a *Authenticator) RequireUser() func(http.Handler) http.Handler {
	return a.RequireAuth(RoleUser)
}

// RequireAdmin restricts the route to back-office accounts.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return a.RequireAuth(RoleAdmin, RoleStaff)
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; ok {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"message":   message,
		"data":      nil,
		"error":     code,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "access token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
	}
}
