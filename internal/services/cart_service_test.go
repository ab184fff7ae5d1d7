package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/greenmart/api/internal/domain"
)

func newCartFixture(t *testing.T, products ...domain.Product) (CartService, *memCartRepo) {
	t.Helper()
	carts := newMemCartRepo()
	svc, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: newMemProductRepo(products...),
		Clock:    func() time.Time { return time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc, carts
}

func TestGetCartReturnsEmptyCartForNewUser(t *testing.T) {
	svc, _ := newCartFixture(t)

	cart, err := svc.GetCart(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.UserID != "usr_1" || len(cart.Items) != 0 {
		t.Errorf("unexpected cart %+v", cart)
	}
}

func TestAddItemMergesAndCaps(t *testing.T) {
	svc, _ := newCartFixture(t, testProduct("prd_1", 100, 10))

	if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: 60}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: 60})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected merged line, got %d items", len(cart.Items))
	}
	if cart.Items[0].Quantity != 99 {
		t.Errorf("quantity = %d, want capped 99", cart.Items[0].Quantity)
	}
}

func TestAddItemRejectsInvalidQuantity(t *testing.T) {
	svc, _ := newCartFixture(t, testProduct("prd_1", 100, 10))

	for _, qty := range []int64{0, -1, 100} {
		if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: qty}); !errors.Is(err, ErrCartInvalidInput) {
			t.Errorf("quantity %d: expected ErrCartInvalidInput, got %v", qty, err)
		}
	}
}

func TestAddItemRejectsUnknownOrUnpublishedProduct(t *testing.T) {
	hidden := testProduct("prd_2", 100, 10)
	hidden.IsPublished = false
	svc, _ := newCartFixture(t, hidden)

	if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_404", Quantity: 1}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_2", Quantity: 1}); !errors.Is(err, ErrProductUnavailable) {
		t.Errorf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestUpdateItemQuantityRequiresExistingLine(t *testing.T) {
	svc, _ := newCartFixture(t, testProduct("prd_1", 100, 10))

	if _, err := svc.UpdateItemQuantity(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: 2}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}

	if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	cart, err := svc.UpdateItemQuantity(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Quantity: 7})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cart.Items[0].Quantity != 7 {
		t.Errorf("quantity = %d, want 7", cart.Items[0].Quantity)
	}
}

func TestRemoveItemAndClear(t *testing.T) {
	svc, carts := newCartFixture(t, testProduct("prd_1", 100, 10), testProduct("prd_2", 50, 10))

	for _, id := range []string{"prd_1", "prd_2"} {
		if _, err := svc.AddItem(context.Background(), UpsertCartItemCommand{UserID: "usr_1", ProductID: id, Quantity: 1}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	cart, err := svc.RemoveItem(context.Background(), "usr_1", "prd_1")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "prd_2" {
		t.Errorf("unexpected cart after removal %+v", cart.Items)
	}

	if _, err := svc.RemoveItem(context.Background(), "usr_1", "prd_1"); !errors.Is(err, ErrCartItemNotFound) {
		t.Errorf("expected ErrCartItemNotFound on double remove, got %v", err)
	}

	if err := svc.ClearCart(context.Background(), "usr_1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(carts.cleared) != 1 {
		t.Errorf("clear not recorded: %v", carts.cleared)
	}
}
