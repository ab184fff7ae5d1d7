package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/platform/auth"
	"github.com/greenmart/api/internal/platform/httpx"
	"github.com/greenmart/api/internal/repositories"
	"github.com/greenmart/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

var orderStatusNames = map[string]domain.OrderStatus{
	strings.ToLower(string(domain.OrderStatusPending)):    domain.OrderStatusPending,
	strings.ToLower(string(domain.OrderStatusConfirmed)):  domain.OrderStatusConfirmed,
	strings.ToLower(string(domain.OrderStatusProcessing)): domain.OrderStatusProcessing,
	strings.ToLower(string(domain.OrderStatusShipped)):    domain.OrderStatusShipped,
	strings.ToLower(string(domain.OrderStatusDelivered)):  domain.OrderStatusDelivered,
	strings.ToLower(string(domain.OrderStatusCancelled)):  domain.OrderStatusCancelled,
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status, ok := orderStatusNames[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// OrderHandlers exposes order placement and lifecycle endpoints. User routes
// operate on the caller's own orders; the /admin subtree drives the
// confirmation and fulfilment workflow.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	audit  services.AuditLogService
}

// NewOrderHandlers constructs order endpoint handlers. The audit service may
// be nil; admin mutations are then not recorded.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, audit services.AuditLogService) *OrderHandlers {
	return &OrderHandlers{authn: authn, orders: orders, audit: audit}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Route("/admin", func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAdmin())
		}
		admin.Get("/", h.adminListOrders)
		admin.Post("/{orderID}/confirm", h.confirmOrder)
		admin.Patch("/{orderID}/status", h.updateOrderStatus)
	})

	r.Group(func(user chi.Router) {
		if h.authn != nil {
			user.Use(h.authn.RequireUser())
		}
		user.Post("/", h.placeOrder)
		user.Get("/", h.listOrders)
		user.Get("/{orderID}", h.getOrder)
		user.Post("/{orderID}/cancel", h.cancelOrder)
	})
}

type placeOrderRequest struct {
	Items   []orderLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Address addressRequest     `json:"address" validate:"required"`
	Phone   string             `json:"phone" validate:"required,min=6,max=20"`
}

type orderLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1,max=99"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req.Address); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	items := make([]services.OrderLineInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, services.OrderLineInput{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
		})
	}

	order, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:  strings.TrimSpace(identity.UID),
		Items:   items,
		Address: req.Address.toDomain(),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "order placed", buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = strings.TrimSpace(identity.UID)

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeOrderListPage(w, page)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	// Another user's order reads as absent, not forbidden.
	if !strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "order retrieved", buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		UserID:  strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "order cancelled", buildOrderPayload(order))
}

func (h *OrderHandlers) adminListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeOrderListPage(w, page)
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ConfirmOrder(ctx, services.ConfirmOrderCommand{
		OrderID: orderID,
		AdminID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "order.confirm", orderID, map[string]any{
		"status": string(order.Status),
	})

	httpx.WriteSuccess(w, http.StatusOK, "order confirmed", buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationError(err), http.StatusBadRequest))
		return
	}

	target, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: orderID,
		Target:  target,
		AdminID: strings.TrimSpace(identity.UID),
		Note:    strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(r, identity, "order.status", orderID, map[string]any{
		"status": string(order.Status),
		"note":   strings.TrimSpace(req.Note),
	})

	httpx.WriteSuccess(w, http.StatusOK, "order status updated", buildOrderPayload(order))
}

// recordAudit is best effort; the audit service swallows persistence failures.
func (h *OrderHandlers) recordAudit(r *http.Request, identity *auth.Identity, action, orderID string, changes map[string]any) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), services.AuditLogRecord{
		ActorID:    strings.TrimSpace(identity.UID),
		ActorRole:  auth.RoleAdmin,
		Action:     action,
		EntityType: "order",
		EntityID:   orderID,
		Changes:    changes,
		IPAddress:  clientIP(r),
		OccurredAt: time.Now().UTC(),
	})
}

func parseOrderListFilter(r *http.Request) (services.OrderListFilter, error) {
	query := r.URL.Query()

	pageSize, err := parsePageSize(query.Get("page_size"), defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		return services.OrderListFilter{}, err
	}

	filter := services.OrderListFilter{
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	for _, raw := range query["status"] {
		for _, value := range strings.Split(raw, ",") {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			status, ok := parseOrderStatus(value)
			if !ok {
				return services.OrderListFilter{}, errors.New("status must be a valid order status")
			}
			filter.Status = append(filter.Status, status)
		}
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("created_after must be a valid RFC3339 timestamp")
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("created_before must be a valid RFC3339 timestamp")
		}
		dateRange.To = &ts
	}
	filter.DateRange = dateRange

	return filter, nil
}

func writeOrderListPage(w http.ResponseWriter, page domain.CursorPage[domain.Order]) {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	httpx.WriteSuccess(w, http.StatusOK, "orders retrieved", orderListPayload{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

type orderListPayload struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	FinalAmount int64  `json:"final_amount"`
	ItemCount   int    `json:"item_count"`
	CreatedAt   string `json:"created_at"`
}

type orderPayload struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"user_id"`
	Items              []orderItemPayload     `json:"items"`
	TotalAmount        int64                  `json:"total_amount"`
	ShippingCost       int64                  `json:"shipping_cost"`
	Discount           int64                  `json:"discount"`
	FinalAmount        int64                  `json:"final_amount"`
	Status             string                 `json:"status"`
	Timeline           []orderTimelinePayload `json:"timeline"`
	DeliveryAddress    addressPayload         `json:"delivery_address"`
	Phone              string                 `json:"phone"`
	ConfirmedBy        string                 `json:"confirmed_by,omitempty"`
	CancellationReason string                 `json:"cancellation_reason,omitempty"`
	CancelledAt        string                 `json:"cancelled_at,omitempty"`
	DeliveredAt        string                 `json:"delivered_at,omitempty"`
	CreatedAt          string                 `json:"created_at"`
	UpdatedAt          string                 `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type orderTimelinePayload struct {
	Status    string `json:"status"`
	At        string `json:"at"`
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`
	Note      string `json:"note,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		FinalAmount: order.FinalAmount,
		ItemCount:   len(order.Items),
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}

	timeline := make([]orderTimelinePayload, 0, len(order.Timeline))
	for _, entry := range order.Timeline {
		timeline = append(timeline, orderTimelinePayload{
			Status:    string(entry.Status),
			At:        formatTime(entry.At),
			ActorID:   entry.Actor.ID,
			ActorRole: entry.Actor.Role,
			Note:      entry.Note,
		})
	}

	return orderPayload{
		ID:                 order.ID,
		UserID:             order.UserID,
		Items:              items,
		TotalAmount:        order.TotalAmount,
		ShippingCost:       order.ShippingCost,
		Discount:           order.Discount,
		FinalAmount:        order.FinalAmount,
		Status:             string(order.Status),
		Timeline:           timeline,
		DeliveryAddress:    buildAddressPayload(order.DeliveryAddress),
		Phone:              order.Phone,
		ConfirmedBy:        order.ConfirmedBy,
		CancellationReason: order.CancellationReason,
		CancelledAt:        formatTime(pointerTime(order.CancelledAt)),
		DeliveredAt:        formatTime(pointerTime(order.DeliveredAt)),
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var stockErr *repositories.StockError
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	case errors.Is(err, services.ErrInsufficientStock):
		e := httpx.NewError("insufficient_stock", "insufficient stock for order", http.StatusConflict)
		if errors.As(err, &stockErr) {
			e = e.WithDetails(map[string]any{
				"product_id": stockErr.ProductID,
				"available":  stockErr.Available,
				"requested":  stockErr.Requested,
			})
		}
		httpx.WriteError(ctx, w, e)
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to modify this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
