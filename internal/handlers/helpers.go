package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// validate is shared across all request payload structs. Struct tags carry
// the boundary rules; domain invariants stay in the services.
var validate = validator.New()

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 64 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// requireIdentity extracts the authenticated principal or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// validationError turns validator output into a single readable message.
func validationError(err error) string {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return "invalid request payload"
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		first := fields[0]
		field := strings.ToLower(first.Field())
		switch first.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "email":
			return fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, first.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s", field, first.Param())
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return err.Error()
}

func parsePageSize(raw string, fallback, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("page_size must be an integer")
	}
	switch {
	case size <= 0:
		return fallback, nil
	case size > max:
		return max, nil
	default:
		return size, nil
	}
}

func parseTimeParam(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// clientIP prefers the RealIP middleware result and falls back to RemoteAddr.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, found := strings.Cut(addr, ":"); found && host != "" {
		return host
	}
	return addr
}

// Shared payload shapes -------------------------------------------------------

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type addressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country" validate:"required"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		District:   strings.TrimSpace(addr.District),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
	}
}

func (req addressRequest) toDomain() domain.Address {
	return domain.Address{
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		District:   strings.TrimSpace(req.District),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
	}
}

type mediaPayload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func buildMediaPayloads(media []services.MediaObject) []mediaPayload {
	if len(media) == 0 {
		return []mediaPayload{}
	}
	result := make([]mediaPayload, 0, len(media))
	for _, m := range media {
		result = append(result, mediaPayload{ID: m.ID, URL: m.URL})
	}
	return result
}
