package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/services"
)

const (
	defaultTopProductsLimit  = 10
	maxTopProductsLimit      = 50
	defaultRecentOrdersLimit = 10
	maxRecentOrdersLimit     = 50
	defaultActivityPageSize  = 50
	maxActivityPageSize      = 200
)

// AdminInsightsHandlers exposes the dashboard aggregates and the audit trail.
type AdminInsightsHandlers struct {
	analytics services.AnalyticsService
	audit     services.AuditLogService
}

// NewAdminInsightsHandlers constructs analytics and activity-log handlers.
func NewAdminInsightsHandlers(analytics services.AnalyticsService, audit services.AuditLogService) *AdminInsightsHandlers {
	return &AdminInsightsHandlers{analytics: analytics, audit: audit}
}

// Routes registers the analytics and activity-log endpoints. Callers mount
// this inside a group already guarded by the admin authenticator.
func (h *AdminInsightsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/analytics/summary", h.summary)
	r.Get("/analytics/top-products", h.topProducts)
	r.Get("/analytics/recent-orders", h.recentOrders)
	r.Get("/activity-logs", h.listActivityLogs)
}

func (h *AdminInsightsHandlers) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_service_unavailable", "analytics service unavailable", http.StatusServiceUnavailable))
		return
	}

	summary, err := h.analytics.Summary(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_error", "failed to compute dashboard summary", http.StatusInternalServerError))
		return
	}

	byStatus := make(map[string]int64, len(summary.OrdersByStatus))
	for status, count := range summary.OrdersByStatus {
		byStatus[string(status)] = count
	}

	httpx.WriteSuccess(w, http.StatusOK, "summary retrieved", dashboardSummaryPayload{
		TotalOrders:    summary.TotalOrders,
		OrdersByStatus: byStatus,
		Revenue:        summary.Revenue,
		TotalCustomers: summary.TotalCustomers,
	})
}

func (h *AdminInsightsHandlers) topProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_service_unavailable", "analytics service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parsePageSize(r.URL.Query().Get("limit"), defaultTopProductsLimit, maxTopProductsLimit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
		return
	}

	products, err := h.analytics.TopProducts(ctx, limit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_error", "failed to list top products", http.StatusInternalServerError))
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}

	httpx.WriteSuccess(w, http.StatusOK, "top products retrieved", productListPayload{Items: items})
}

func (h *AdminInsightsHandlers) recentOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_service_unavailable", "analytics service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parsePageSize(r.URL.Query().Get("limit"), defaultRecentOrdersLimit, maxRecentOrdersLimit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
		return
	}

	orders, err := h.analytics.RecentOrders(ctx, limit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("analytics_error", "failed to list recent orders", http.StatusInternalServerError))
		return
	}

	items := make([]orderSummaryPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderSummary(order))
	}

	httpx.WriteSuccess(w, http.StatusOK, "recent orders retrieved", orderListPayload{Items: items})
}

func (h *AdminInsightsHandlers) listActivityLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.audit == nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_service_unavailable", "audit log service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultActivityPageSize, maxActivityPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("occurred_after")); raw != "" {
		from, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_after must be RFC3339", http.StatusBadRequest))
			return
		}
		dateRange.From = &from
	}
	if raw := strings.TrimSpace(query.Get("occurred_before")); raw != "" {
		to, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_before must be RFC3339", http.StatusBadRequest))
			return
		}
		dateRange.To = &to
	}

	page, err := h.audit.List(ctx, services.AuditLogFilter{
		ActorID:    strings.TrimSpace(query.Get("actor_id")),
		Action:     strings.TrimSpace(query.Get("action")),
		EntityType: strings.TrimSpace(query.Get("entity_type")),
		EntityID:   strings.TrimSpace(query.Get("entity_id")),
		DateRange:  dateRange,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_error", "failed to list activity logs", http.StatusInternalServerError))
		return
	}

	items := make([]activityLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, activityLogPayload{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Changes:    entry.Changes,
			CreatedAt:  formatTime(entry.CreatedAt),
		})
	}

	httpx.WriteSuccess(w, http.StatusOK, "activity logs retrieved", activityLogListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

type dashboardSummaryPayload struct {
	TotalOrders    int64            `json:"total_orders"`
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
	Revenue        int64            `json:"revenue"`
	TotalCustomers int64            `json:"total_customers"`
}

type activityLogListPayload struct {
	Items         []activityLogPayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type activityLogPayload struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  string         `json:"created_at"`
}
