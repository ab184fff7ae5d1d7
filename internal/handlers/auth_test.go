package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenmart/api/internal/services"
)

func TestAuthHandlersRegisterSuccess(t *testing.T) {
	expires := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	var captured services.RegisterUserCommand
	service := &stubAuthService{
		registerFunc: func(ctx context.Context, cmd services.RegisterUserCommand) (services.AuthSession, error) {
			captured = cmd
			return services.AuthSession{
				Token:     "jwt-token",
				ExpiresAt: expires,
				UserID:    "user-1",
				Name:      cmd.Name,
				Email:     cmd.Email,
				Roles:     []string{"user"},
			}, nil
		},
	}

	handler := NewAuthHandlers(service, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	body := `{"name":"  Amina Rahman ","email":"amina@example.com","password":"s3cret-pass","phone":"0171000000"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Name != "Amina Rahman" {
		t.Fatalf("expected trimmed name, got %q", captured.Name)
	}
	if captured.Email != "amina@example.com" {
		t.Fatalf("unexpected email %q", captured.Email)
	}

	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("expected success envelope")
	}
	var session sessionPayload
	decodeData(t, env, &session)
	if session.Token != "jwt-token" || session.UserID != "user-1" {
		t.Fatalf("unexpected session payload %#v", session)
	}
	if len(session.Roles) != 1 || session.Roles[0] != "user" {
		t.Fatalf("unexpected roles %#v", session.Roles)
	}
}

func TestAuthHandlersRegisterValidation(t *testing.T) {
	handler := NewAuthHandlers(&stubAuthService{}, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	body := `{"name":"A","email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", env.Error)
	}
}

func TestAuthHandlersRegisterEmailTaken(t *testing.T) {
	service := &stubAuthService{
		registerFunc: func(ctx context.Context, cmd services.RegisterUserCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrAuthEmailTaken
		},
	}
	handler := NewAuthHandlers(service, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	body := `{"name":"Amina","email":"amina@example.com","password":"s3cret-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "email_taken" {
		t.Fatalf("expected email_taken, got %q", env.Error)
	}
}

func TestAuthHandlersLoginInvalidCredentials(t *testing.T) {
	service := &stubAuthService{
		loginUserFunc: func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrAuthInvalidCredentials
		},
	}
	handler := NewAuthHandlers(service, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"amina@example.com","password":"wrong-pass"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", env.Error)
	}
}

func TestAuthHandlersLoginUnknownAccountAnswersSameAsWrongPassword(t *testing.T) {
	service := &stubAuthService{
		loginUserFunc: func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrAuthUserNotFound
		},
	}
	handler := NewAuthHandlers(service, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ghost@example.com","password":"whatever1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", env.Error)
	}
}

func TestAuthHandlersAdminLoginRoutesToAdminFlow(t *testing.T) {
	adminCalled := false
	service := &stubAuthService{
		loginAdminFunc: func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
			adminCalled = true
			return services.AuthSession{Token: "admin-jwt", UserID: "adm-1", Roles: []string{"admin"}}, nil
		},
	}
	handler := NewAuthHandlers(service, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/admin/login", strings.NewReader(`{"email":"boss@example.com","password":"s3cret-pass"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !adminCalled {
		t.Fatalf("expected admin login path to be used")
	}
}

func TestAuthHandlersLoginRateLimited(t *testing.T) {
	handler := NewAuthHandlers(&stubAuthService{}, denyAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"amina@example.com","password":"s3cret-pass"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", env.Error)
	}
}

func TestAuthHandlersLoginEmptyBody(t *testing.T) {
	handler := NewAuthHandlers(&stubAuthService{}, allowAllLimiter{})
	router := chi.NewRouter()
	router.Route("/auth", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

type stubAuthService struct {
	registerFunc   func(ctx context.Context, cmd services.RegisterUserCommand) (services.AuthSession, error)
	loginUserFunc  func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error)
	loginAdminFunc func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error)
	getUserFunc    func(ctx context.Context, userID string) (services.User, error)
}

func (s *stubAuthService) RegisterUser(ctx context.Context, cmd services.RegisterUserCommand) (services.AuthSession, error) {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, cmd)
	}
	return services.AuthSession{}, errors.New("not implemented")
}

func (s *stubAuthService) LoginUser(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
	if s.loginUserFunc != nil {
		return s.loginUserFunc(ctx, cmd)
	}
	return services.AuthSession{}, errors.New("not implemented")
}

func (s *stubAuthService) LoginAdmin(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
	if s.loginAdminFunc != nil {
		return s.loginAdminFunc(ctx, cmd)
	}
	return services.AuthSession{}, errors.New("not implemented")
}

func (s *stubAuthService) GetUser(ctx context.Context, userID string) (services.User, error) {
	if s.getUserFunc != nil {
		return s.getUserFunc(ctx, userID)
	}
	return services.User{}, errors.New("not implemented")
}
