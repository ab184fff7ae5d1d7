package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

type orderFixture struct {
	service  OrderService
	orders   *memOrderRepo
	products *memProductRepo
	carts    *memCartRepo
	events   *captureEvents
	now      time.Time
}

func newOrderFixture(t *testing.T, products ...domain.Product) *orderFixture {
	t.Helper()

	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	productRepo := newMemProductRepo(products...)
	orderRepo := newMemOrderRepo()
	cartRepo := newMemCartRepo()
	events := &captureEvents{}

	counter := 0
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:       orderRepo,
		Products:     productRepo,
		Stock:        &fakeStockLedger{repo: productRepo},
		Carts:        cartRepo,
		Events:       events,
		ShippingCost: 60,
		Clock:        func() time.Time { return now },
		NumberGen: func(at time.Time) string {
			counter++
			return fmt.Sprintf("ORD-20250506-TEST%04d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	return &orderFixture{
		service:  svc,
		orders:   orderRepo,
		products: productRepo,
		carts:    cartRepo,
		events:   events,
		now:      now,
	}
}

func testProduct(id string, price int64, stock int64) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        "Product " + id,
		Slug:        "product-" + id,
		Price:       price,
		Stock:       stock,
		IsPublished: true,
	}
}

func TestPlaceOrderFreezesPricesAndComputesTotals(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	order, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 2}},
		Phone:  "01700000000",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want Pending", order.Status)
	}
	if order.TotalAmount != 200 || order.ShippingCost != 60 || order.FinalAmount != 260 {
		t.Errorf("totals = %d/%d/%d, want 200/60/260", order.TotalAmount, order.ShippingCost, order.FinalAmount)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != 100 || order.Items[0].LineTotal != 200 {
		t.Errorf("unexpected items %+v", order.Items)
	}
	if len(order.Timeline) != 1 || order.Timeline[0].Status != domain.OrderStatusPending {
		t.Errorf("unexpected timeline %+v", order.Timeline)
	}

	// Placement never touches stock.
	p, _ := f.products.FindByID(context.Background(), "prd_1")
	if p.Stock != 10 {
		t.Errorf("stock = %d, want untouched 10", p.Stock)
	}

	if len(f.carts.cleared) != 1 || f.carts.cleared[0] != "usr_1" {
		t.Errorf("cart not cleared: %v", f.carts.cleared)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != "order.created" {
		t.Errorf("unexpected events %+v", f.events.events)
	}
}

func TestPlaceOrderUsesDiscountPrice(t *testing.T) {
	discount := int64(80)
	p := testProduct("prd_1", 100, 10)
	p.DiscountPrice = &discount
	f := newOrderFixture(t, p)

	order, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Items[0].UnitPrice != 80 || order.TotalAmount != 240 {
		t.Errorf("unit price = %d, total = %d, want 80/240", order.Items[0].UnitPrice, order.TotalAmount)
	}
}

func TestPlaceOrderRejectsUnavailableProduct(t *testing.T) {
	unpublished := testProduct("prd_1", 100, 10)
	unpublished.IsPublished = false
	f := newOrderFixture(t, unpublished, testProduct("prd_2", 50, 1))

	_, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}

	_, err = f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_2", Quantity: 5}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestConfirmOrderReservesStock(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	confirmed, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{
		OrderID: placed.ID,
		AdminID: "adm_1",
	})
	if err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}

	if confirmed.Status != domain.OrderStatusConfirmed {
		t.Errorf("status = %s, want Confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedBy != "adm_1" {
		t.Errorf("confirmedBy = %q, want adm_1", confirmed.ConfirmedBy)
	}
	if len(confirmed.Timeline) != 2 || confirmed.Timeline[1].Status != domain.OrderStatusConfirmed {
		t.Errorf("unexpected timeline %+v", confirmed.Timeline)
	}

	p, _ := f.products.FindByID(context.Background(), "prd_1")
	if p.Stock != 6 || p.TotalSold != 4 {
		t.Errorf("stock/totalSold = %d/%d, want 6/4", p.Stock, p.TotalSold)
	}
}

func TestConfirmOrderReplayFailsCleanly(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 4}},
	})
	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: placed.ID, AdminID: "adm_1"}); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	_, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: placed.ID, AdminID: "adm_2"})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState on replay, got %v", err)
	}

	// The replay must not have reserved a second time.
	p, _ := f.products.FindByID(context.Background(), "prd_1")
	if p.Stock != 6 || p.TotalSold != 4 {
		t.Errorf("stock/totalSold = %d/%d after replay, want 6/4", p.Stock, p.TotalSold)
	}
}

func TestConfirmOrderShortfallLeavesBatchUntouched(t *testing.T) {
	f := newOrderFixture(t,
		testProduct("prd_1", 100, 10),
		testProduct("prd_2", 50, 1),
		testProduct("prd_3", 30, 10),
	)

	placed, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items: []OrderLineInput{
			{ProductID: "prd_1", Quantity: 2},
			{ProductID: "prd_2", Quantity: 1},
			{ProductID: "prd_3", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// Another order drains prd_2 before confirmation.
	other, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_2",
		Items:  []OrderLineInput{{ProductID: "prd_2", Quantity: 1}},
	})
	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: other.ID, AdminID: "adm_1"}); err != nil {
		t.Fatalf("confirm competing order: %v", err)
	}

	_, err = f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: placed.ID, AdminID: "adm_1"})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *repositories.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError detail, got %v", err)
	}
	if stockErr.ProductID != "prd_2" || stockErr.Available != 0 {
		t.Errorf("stock error = %+v, want prd_2 with 0 available", stockErr)
	}

	// No line of the failed batch may have been applied.
	p1, _ := f.products.FindByID(context.Background(), "prd_1")
	p3, _ := f.products.FindByID(context.Background(), "prd_3")
	if p1.Stock != 10 || p1.TotalSold != 0 || p3.Stock != 10 || p3.TotalSold != 0 {
		t.Errorf("partial reservation applied: prd_1 %d/%d prd_3 %d/%d", p1.Stock, p1.TotalSold, p3.Stock, p3.TotalSold)
	}

	stored, _ := f.orders.FindByID(context.Background(), placed.ID)
	if stored.Status != domain.OrderStatusPending {
		t.Errorf("order status = %s, want still Pending", stored.Status)
	}
}

func TestOrderWalksFullTimelineToDelivered(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: placed.ID, AdminID: "adm_1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	for _, target := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		if _, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
			OrderID: placed.ID,
			Target:  target,
			AdminID: "adm_1",
		}); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", target, err)
		}
	}

	order, _ := f.orders.FindByID(context.Background(), placed.ID)
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("status = %s, want Delivered", order.Status)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(f.now) {
		t.Errorf("deliveredAt = %v, want %v", order.DeliveredAt, f.now)
	}

	want := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	}
	if len(order.Timeline) != len(want) {
		t.Fatalf("timeline length = %d, want %d", len(order.Timeline), len(want))
	}
	for i, status := range want {
		if order.Timeline[i].Status != status {
			t.Errorf("timeline[%d] = %s, want %s", i, order.Timeline[i].Status, status)
		}
	}
	if last := order.Timeline[len(order.Timeline)-1]; last.Status != order.Status {
		t.Errorf("last timeline status %s != order status %s", last.Status, order.Status)
	}
}

func TestUpdateStatusRejectsSkippedTransition(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})

	_, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: placed.ID,
		Target:  domain.OrderStatusShipped,
		AdminID: "adm_1",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState for Pending to Shipped, got %v", err)
	}

	stored, _ := f.orders.FindByID(context.Background(), placed.ID)
	if stored.Status != domain.OrderStatusPending || len(stored.Timeline) != 1 {
		t.Errorf("order mutated by rejected transition: %+v", stored)
	}
}

func TestUpdateStatusRejectsConfirmedTarget(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))
	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})

	_, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: placed.ID,
		Target:  domain.OrderStatusConfirmed,
		AdminID: "adm_1",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestAdminCancelReleasesReservedStock(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 4}},
	})
	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: placed.ID, AdminID: "adm_1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	cancelled, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: placed.ID,
		Target:  domain.OrderStatusCancelled,
		AdminID: "adm_1",
		Note:    "customer unreachable",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want Cancelled", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || cancelled.CancellationReason != "customer unreachable" {
		t.Errorf("cancellation stamps missing: %+v", cancelled)
	}

	p, _ := f.products.FindByID(context.Background(), "prd_1")
	if p.Stock != 10 || p.TotalSold != 0 {
		t.Errorf("stock/totalSold = %d/%d after release, want 10/0", p.Stock, p.TotalSold)
	}
}

func TestUserCancelAllowedOnlyWhilePending(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))

	placed, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})

	// Wrong owner.
	if _, err := f.service.CancelOrder(context.Background(), CancelOrderCommand{
		OrderID: placed.ID,
		UserID:  "usr_2",
	}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}

	cancelled, err := f.service.CancelOrder(context.Background(), CancelOrderCommand{
		OrderID: placed.ID,
		UserID:  "usr_1",
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("user cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled || cancelled.CancellationReason != "changed my mind" {
		t.Errorf("unexpected cancel result %+v", cancelled)
	}

	// Once confirmed, user cancellation is rejected.
	second, _ := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{OrderID: second.ID, AdminID: "adm_1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.service.CancelOrder(context.Background(), CancelOrderCommand{
		OrderID: second.ID,
		UserID:  "usr_1",
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestEventPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newOrderFixture(t, testProduct("prd_1", 100, 10))
	f.events.err = errors.New("broker down")

	if _, err := f.service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID: "usr_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	}); err != nil {
		t.Fatalf("PlaceOrder should not fail on publish error, got %v", err)
	}
}
