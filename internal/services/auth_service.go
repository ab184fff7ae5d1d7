package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/repositories"
)

const (
	userIDPrefix  = "usr_"
	adminIDPrefix = "adm_"

	minPasswordLen = 8
)

var (
	// ErrAuthInvalidInput signals the caller provided invalid registration or login data.
	ErrAuthInvalidInput = errors.New("auth: invalid input")
	// ErrAuthInvalidCredentials indicates the email/password pair does not match.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAuthEmailTaken indicates the email is already registered.
	ErrAuthEmailTaken = errors.New("auth: email already registered")
	// ErrAuthAccountDisabled indicates a blocked user or deactivated admin.
	ErrAuthAccountDisabled = errors.New("auth: account disabled")
	// ErrAuthUserNotFound indicates the account could not be located.
	ErrAuthUserNotFound = errors.New("auth: account not found")
)

// TokenIssuer signs access tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// AuthServiceDeps bundles collaborators required to construct the auth service.
type AuthServiceDeps struct {
	Users       repositories.UserRepository
	Admins      repositories.AdminRepository
	Tokens      TokenIssuer
	TokenTTL    time.Duration
	Clock       func() time.Time
	IDGenerator func() string
	HashCost    int
}

type authService struct {
	users    repositories.UserRepository
	admins   repositories.AdminRepository
	tokens   TokenIssuer
	tokenTTL time.Duration
	clock    func() time.Time
	newID    func() string
	hashCost int
}

// NewAuthService wires dependencies into a concrete AuthService implementation.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cost := deps.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &authService{
		users:    deps.Users,
		admins:   deps.Admins,
		tokens:   deps.Tokens,
		tokenTTL: ttl,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		hashCost: cost,
	}, nil
}

func (s *authService) RegisterUser(ctx context.Context, cmd RegisterUserCommand) (AuthSession, error) {
	name := strings.TrimSpace(cmd.Name)
	email := normaliseEmail(cmd.Email)
	if name == "" {
		return AuthSession{}, fmt.Errorf("%w: name is required", ErrAuthInvalidInput)
	}
	if email == "" {
		return AuthSession{}, fmt.Errorf("%w: a valid email is required", ErrAuthInvalidInput)
	}
	if len(cmd.Password) < minPasswordLen {
		return AuthSession{}, fmt.Errorf("%w: password must be at least %d characters", ErrAuthInvalidInput, minPasswordLen)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return AuthSession{}, fmt.Errorf("%w: %s", ErrAuthEmailTaken, email)
	} else if mapped := s.mapRepositoryError(err); !errors.Is(mapped, ErrAuthUserNotFound) {
		return AuthSession{}, mapped
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.hashCost)
	if err != nil {
		return AuthSession{}, fmt.Errorf("auth: hash password: %w", err)
	}

	now := s.clock()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(cmd.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return AuthSession{}, s.mapRepositoryError(err)
	}

	return s.session(user.ID, user.Name, user.Email, []string{auth.RoleUser})
}

func (s *authService) LoginUser(ctx context.Context, cmd LoginCommand) (AuthSession, error) {
	email := normaliseEmail(cmd.Email)
	if email == "" || cmd.Password == "" {
		return AuthSession{}, fmt.Errorf("%w: email and password are required", ErrAuthInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if mapped := s.mapRepositoryError(err); errors.Is(mapped, ErrAuthUserNotFound) {
			return AuthSession{}, ErrAuthInvalidCredentials
		}
		return AuthSession{}, err
	}
	if user.IsBlocked {
		return AuthSession{}, fmt.Errorf("%w: user %s", ErrAuthAccountDisabled, user.ID)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)) != nil {
		return AuthSession{}, ErrAuthInvalidCredentials
	}

	return s.session(user.ID, user.Name, user.Email, []string{auth.RoleUser})
}

func (s *authService) LoginAdmin(ctx context.Context, cmd LoginCommand) (AuthSession, error) {
	if s.admins == nil {
		return AuthSession{}, errors.New("auth service: admin repository not configured")
	}
	email := normaliseEmail(cmd.Email)
	if email == "" || cmd.Password == "" {
		return AuthSession{}, fmt.Errorf("%w: email and password are required", ErrAuthInvalidInput)
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if mapped := s.mapRepositoryError(err); errors.Is(mapped, ErrAuthUserNotFound) {
			return AuthSession{}, ErrAuthInvalidCredentials
		}
		return AuthSession{}, err
	}
	if !admin.IsActive {
		return AuthSession{}, fmt.Errorf("%w: admin %s", ErrAuthAccountDisabled, admin.ID)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(cmd.Password)) != nil {
		return AuthSession{}, ErrAuthInvalidCredentials
	}

	role := auth.RoleStaff
	if admin.Role == "admin" {
		role = auth.RoleAdmin
	}
	return s.session(admin.ID, admin.Name, admin.Email, []string{role})
}

func (s *authService) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrAuthInvalidInput)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) session(uid, name, email string, roles []string) (AuthSession, error) {
	token, err := s.tokens.Issue(auth.Identity{
		UID:   uid,
		Email: email,
		Name:  name,
		Roles: roles,
	})
	if err != nil {
		return AuthSession{}, fmt.Errorf("auth: issue token: %w", err)
	}
	return AuthSession{
		Token:     token,
		ExpiresAt: s.clock().Add(s.tokenTTL),
		UserID:    uid,
		Name:      name,
		Email:     email,
		Roles:     roles,
	}, nil
}

func (s *authService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrAuthUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrAuthEmailTaken, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("auth: repository unavailable: %w", err)
		}
	}
	return err
}

func normaliseEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ""
	}
	return email
}
