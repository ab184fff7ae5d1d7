package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventConfirmed     = "order.confirmed"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderNumberPrefix = "ORD"
	maxOrderLineQty   = 99
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an illegal status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderForbidden indicates the caller does not own the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates concurrent modification or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrProductUnavailable indicates an order line references an unpublished or deleted product.
	ErrProductUnavailable = errors.New("order: product unavailable")
	// ErrInsufficientStock indicates a reservation could not be satisfied.
	ErrInsufficientStock = errors.New("order: insufficient stock")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Products      repositories.ProductRepository
	Stock         repositories.StockLedger
	Carts         repositories.CartRepository
	UnitOfWork    repositories.UnitOfWork
	Events        OrderEventPublisher
	Notifications NotificationDispatcher
	ShippingCost  int64
	Clock         func() time.Time
	NumberGen     func(now time.Time) string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	products      repositories.ProductRepository
	stock         repositories.StockLedger
	carts         repositories.CartRepository
	unitOfWork    repositories.UnitOfWork
	events        OrderEventPublisher
	notifications NotificationDispatcher
	shippingCost  int64
	clock         func() time.Time
	newNumber     func(now time.Time) string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock ledger is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	numberGen := deps.NumberGen
	if numberGen == nil {
		numberGen = defaultOrderNumber
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	shipping := deps.ShippingCost
	if shipping < 0 {
		return nil, errors.New("order service: shipping cost must not be negative")
	}

	return &orderService{
		orders:        deps.Orders,
		products:      deps.Products,
		stock:         deps.Stock,
		carts:         deps.Carts,
		unitOfWork:    unit,
		events:        deps.Events,
		notifications: deps.Notifications,
		shippingCost:  shipping,
		clock: func() time.Time {
			return clock().UTC()
		},
		newNumber: numberGen,
		logger:    logger,
	}, nil
}

// defaultOrderNumber yields ORD-YYYYMMDD-XXXXXXXX, the suffix being the first
// segment of a random UUID uppercased.
func defaultOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), suffix)
}

// PlaceOrder creates a Pending order with frozen unit prices. Stock is checked
// for availability but not reserved until an admin confirms the order.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	seen := make(map[string]struct{}, len(cmd.Items))
	for _, line := range cmd.Items {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return Order{}, fmt.Errorf("%w: product id is required on every line", ErrOrderInvalidInput)
		}
		if line.Quantity < 1 || line.Quantity > maxOrderLineQty {
			return Order{}, fmt.Errorf("%w: quantity for %s must be between 1 and %d", ErrOrderInvalidInput, productID, maxOrderLineQty)
		}
		if _, dup := seen[productID]; dup {
			return Order{}, fmt.Errorf("%w: duplicate product %s", ErrOrderInvalidInput, productID)
		}
		seen[productID] = struct{}{}
	}

	now := s.now()

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	var total int64
	for _, line := range cmd.Items {
		product, err := s.products.FindByID(ctx, strings.TrimSpace(line.ProductID))
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		if !product.Purchasable() {
			return Order{}, fmt.Errorf("%w: %s", ErrProductUnavailable, product.ID)
		}
		if product.Stock < line.Quantity {
			return Order{}, fmt.Errorf("%w: %w", ErrInsufficientStock,
				repositories.NewInsufficientStockError(product.ID, product.Stock, line.Quantity))
		}

		unitPrice := product.EffectivePrice()
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			LineTotal: unitPrice * line.Quantity,
		})
		total += unitPrice * line.Quantity
	}

	order := domain.Order{
		ID:           s.newNumber(now),
		UserID:       userID,
		Items:        items,
		TotalAmount:  total,
		ShippingCost: s.shippingCost,
		Discount:     0,
		FinalAmount:  total + s.shippingCost,
		Status:       domain.OrderStatusPending,
		Timeline: []domain.TimelineEntry{{
			Status: domain.OrderStatusPending,
			At:     now,
			Actor:  domain.OrderActor{ID: userID, Role: "user"},
		}},
		DeliveryAddress: cmd.Address,
		Phone:           strings.TrimSpace(cmd.Phone),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if s.carts != nil {
		if err := s.carts.Clear(ctx, userID); err != nil {
			s.logger(ctx, "order.cart.clear.failed", map[string]any{
				"order": order.ID,
				"user":  userID,
				"error": err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		ActorID:    userID,
		Status:     order.Status,
		OccurredAt: now,
	})
	s.notifyPlaced(ctx, order)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ConfirmOrder reserves stock for every line and moves the order to Confirmed
// in one transaction. A replay finds the order no longer Pending inside the
// transaction and fails with ErrOrderInvalidState; nothing is re-reserved.
func (s *orderService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	adminID := strings.TrimSpace(cmd.AdminID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if adminID == "" {
		return Order{}, fmt.Errorf("%w: admin id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order domain.Order

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s, not Pending", ErrOrderInvalidState, order.ID, order.Status)
		}

		if err := s.stock.Reserve(txCtx, order.Demands(), now); err != nil {
			return s.mapStockError(err)
		}

		if err := applyTransition(&order, domain.OrderStatusConfirmed, domain.OrderActor{ID: adminID, Role: "admin"}, "", now); err != nil {
			return err
		}
		order.ConfirmedBy = adminID

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventConfirmed,
		OrderID:        order.ID,
		UserID:         order.UserID,
		ActorID:        adminID,
		Status:         order.Status,
		PreviousStatus: domain.OrderStatusPending,
		OccurredAt:     now,
	})
	s.notifyStatusChanged(ctx, order, domain.OrderStatusPending)

	return order, nil
}

// UpdateStatus drives admin transitions through the state machine. Entering
// Cancelled from a stock-holding status releases the reserved quantities in
// the same transaction.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	adminID := strings.TrimSpace(cmd.AdminID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if adminID == "" {
		return Order{}, fmt.Errorf("%w: admin id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.Target)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if target == domain.OrderStatusConfirmed {
		return Order{}, fmt.Errorf("%w: use the confirm operation to reserve stock", ErrOrderInvalidInput)
	}

	now := s.now()
	var order domain.Order
	var previous domain.OrderStatus

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		previous = order.Status

		releasing := target == domain.OrderStatusCancelled && slices.Contains(stockReleasingStatuses, order.Status)
		if releasing {
			if err := s.stock.Release(txCtx, order.Demands(), now); err != nil {
				return s.mapStockError(err)
			}
		}

		if err := applyTransition(&order, target, domain.OrderActor{ID: adminID, Role: "admin"}, cmd.Note, now); err != nil {
			return err
		}
		if target == domain.OrderStatusCancelled {
			order.CancellationReason = strings.TrimSpace(cmd.Note)
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	eventType := orderEventStatusChanged
	if target == domain.OrderStatusCancelled {
		eventType = orderEventCancelled
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		ActorID:        adminID,
		Status:         order.Status,
		PreviousStatus: previous,
		OccurredAt:     now,
	})
	s.notifyStatusChanged(ctx, order, previous)

	return order, nil
}

// CancelOrder is the user-initiated cancellation, allowed only while Pending.
// No stock has been reserved at that point, so there is nothing to release.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	reason := strings.TrimSpace(cmd.Reason)
	var order domain.Order
	var previous domain.OrderStatus

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.UserID != userID {
			return fmt.Errorf("%w: order %s does not belong to the caller", ErrOrderForbidden, order.ID)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: only Pending orders can be cancelled by the customer", ErrOrderInvalidState)
		}
		previous = order.Status

		if err := applyTransition(&order, domain.OrderStatusCancelled, domain.OrderActor{ID: userID, Role: "user"}, reason, now); err != nil {
			return err
		}
		order.CancellationReason = reason

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        order.ID,
		UserID:         order.UserID,
		ActorID:        userID,
		Status:         order.Status,
		PreviousStatus: previous,
		OccurredAt:     now,
	})
	s.notifyStatusChanged(ctx, order, previous)

	return order, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) mapStockError(err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficientStock:
			return fmt.Errorf("%w: %w", ErrInsufficientStock, err)
		case repositories.StockErrorProductNotFound:
			return fmt.Errorf("%w: %w", ErrProductUnavailable, err)
		case repositories.StockErrorInvalidDemand:
			return fmt.Errorf("%w: %w", ErrOrderInvalidInput, err)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": string(event.Status),
			"error":  err.Error(),
		})
	}
}

func (s *orderService) notifyPlaced(ctx context.Context, order domain.Order) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.OrderPlaced(ctx, order); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) notifyStatusChanged(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.OrderStatusChanged(ctx, order, previous); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
