package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

const (
	maxAuthBodySize       = 16 * 1024
	defaultAuthRateLimit  = 10
	defaultAuthRateWindow = time.Minute
)

// AuthHandlers exposes registration and login endpoints for users and admins.
type AuthHandlers struct {
	auth    services.AuthService
	limiter RateLimiter
}

// NewAuthHandlers constructs auth endpoint handlers with login rate limiting.
func NewAuthHandlers(auth services.AuthService, limiter RateLimiter) *AuthHandlers {
	if limiter == nil {
		limiter = NewRateLimiter(defaultAuthRateLimit, defaultAuthRateWindow, nil)
	}
	return &AuthHandlers{auth: auth, limiter: limiter}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/admin/login", h.adminLogin)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Phone    string `json:"phone" validate:"omitempty,min=6,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionPayload struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	UserID    string   `json:"user_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxAuthBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	session, err := h.auth.RegisterUser(ctx, services.RegisterUserCommand{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "account created", buildSessionPayload(session))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
		return h.auth.LoginUser(ctx, cmd)
	})
}

func (h *AuthHandlers) adminLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
		return h.auth.LoginAdmin(ctx, cmd)
	})
}

func (h *AuthHandlers) handleLogin(w http.ResponseWriter, r *http.Request, login func(context.Context, services.LoginCommand) (services.AuthSession, error)) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxAuthBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	session, err := login(ctx, services.LoginCommand{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "login successful", buildSessionPayload(session))
}

func (h *AuthHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(clientIP(r))
}

func buildSessionPayload(session services.AuthSession) sessionPayload {
	roles := session.Roles
	if roles == nil {
		roles = []string{}
	}
	return sessionPayload{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		UserID:    session.UserID,
		Name:      session.Name,
		Email:     session.Email,
		Roles:     roles,
	}
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAuthInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAuthEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrAuthInvalidCredentials), errors.Is(err, services.ErrAuthUserNotFound):
		// A missing account answers the same as a wrong password.
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthAccountDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("account_disabled", "account is disabled", http.StatusForbidden))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to process auth request", http.StatusInternalServerError))
	}
}
