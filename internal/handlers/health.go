package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService injects the system service backing /readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the time source, used by tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health endpoint handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type healthzResponse struct {
	Status      domain.HealthStatus `json:"status"`
	Version     string              `json:"version,omitempty"`
	CommitSHA   string              `json:"commitSha,omitempty"`
	Environment string              `json:"environment,omitempty"`
	Uptime      string              `json:"uptime,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

type readyzCheckPayload struct {
	Status  domain.HealthStatus `json:"status"`
	Detail  string              `json:"detail,omitempty"`
	Error   string              `json:"error,omitempty"`
	Latency string              `json:"latency,omitempty"`
}

type readyzResponse struct {
	Status    domain.HealthStatus           `json:"status"`
	Checks    map[string]readyzCheckPayload `json:"checks"`
	Details   []string                      `json:"details"`
	Timestamp string                        `json:"timestamp"`
}

// Healthz reports process liveness plus build metadata. It never touches
// downstream dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	resp := healthzResponse{
		Status:      domain.HealthStatusOK,
		Version:     strings.TrimSpace(h.build.Version),
		CommitSHA:   strings.TrimSpace(h.build.CommitSHA),
		Environment: strings.TrimSpace(h.build.Environment),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if !h.build.StartedAt.IsZero() {
		resp.Uptime = now.Sub(h.build.StartedAt).Round(time.Second).String()
	}
	writeHealthJSON(w, http.StatusOK, resp)
}

// Readyz probes downstream dependencies through the system service and
// returns 503 unless every check passes.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()

	if h.system == nil {
		writeHealthJSON(w, http.StatusServiceUnavailable, readyzResponse{
			Status:    domain.HealthStatusError,
			Checks:    map[string]readyzCheckPayload{},
			Details:   []string{"system service unavailable"},
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeHealthJSON(w, http.StatusServiceUnavailable, readyzResponse{
			Status:    domain.HealthStatusError,
			Checks:    map[string]readyzCheckPayload{},
			Details:   []string{err.Error()},
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		return
	}

	checks := make(map[string]readyzCheckPayload, len(report.Checks))
	var details []string
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		payload := readyzCheckPayload{
			Status: check.Status,
			Detail: check.Detail,
			Error:  check.Error,
		}
		if check.Latency > 0 {
			payload.Latency = check.Latency.String()
		}
		checks[name] = payload
		if check.Status != domain.HealthStatusOK {
			detail := check.Error
			if detail == "" {
				detail = string(check.Status)
			}
			details = append(details, fmt.Sprintf("%s: %s", name, detail))
		}
	}
	if details == nil {
		details = []string{}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, status, readyzResponse{
		Status:    report.Status,
		Checks:    checks,
		Details:   details,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

func writeHealthJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
