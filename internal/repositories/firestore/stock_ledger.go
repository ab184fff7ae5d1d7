package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/repositories"
)

// StockLedger adjusts product stock/totalSold counters transactionally.
// A batch either applies in full or not at all: every product document is
// read and validated before the first write, honouring Firestore's
// read-before-write transaction rule. When an ambient unit-of-work
// transaction is on the context the ledger joins it, so order status and
// stock move in one commit.
type StockLedger struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewStockLedger constructs a Firestore-backed stock ledger over the products collection.
func NewStockLedger(provider *pfirestore.Provider) (*StockLedger, error) {
	if provider == nil {
		return nil, errors.New("stock ledger requires firestore provider")
	}
	products := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &StockLedger{provider: provider, products: products}, nil
}

// Reserve decrements stock and increments totalSold for every demand, or
// fails the whole batch when any product is missing or short.
func (l *StockLedger) Reserve(ctx context.Context, demands []domain.StockDemand, now time.Time) error {
	return l.apply(ctx, "stock.reserve", demands, now, func(doc *productDocument, d domain.StockDemand) error {
		if doc.Stock < d.Quantity {
			return repositories.NewInsufficientStockError(d.ProductID, doc.Stock, d.Quantity)
		}
		doc.Stock -= d.Quantity
		doc.TotalSold += d.Quantity
		return nil
	})
}

// Release returns previously reserved quantities to stock. TotalSold never
// drops below zero.
func (l *StockLedger) Release(ctx context.Context, demands []domain.StockDemand, now time.Time) error {
	return l.apply(ctx, "stock.release", demands, now, func(doc *productDocument, d domain.StockDemand) error {
		doc.Stock += d.Quantity
		doc.TotalSold -= d.Quantity
		if doc.TotalSold < 0 {
			doc.TotalSold = 0
		}
		return nil
	})
}

func (l *StockLedger) apply(ctx context.Context, op string, demands []domain.StockDemand, now time.Time, adjust func(*productDocument, domain.StockDemand) error) error {
	if l == nil || l.provider == nil {
		return errors.New("stock ledger not initialised")
	}
	if len(demands) == 0 {
		return repositories.NewStockError(repositories.StockErrorInvalidDemand, op+": at least one demand is required", nil)
	}
	seen := make(map[string]struct{}, len(demands))
	for _, d := range demands {
		productID := strings.TrimSpace(d.ProductID)
		if productID == "" {
			return repositories.NewStockError(repositories.StockErrorInvalidDemand, op+": product id is required", nil)
		}
		if d.Quantity < 1 {
			return repositories.NewStockError(repositories.StockErrorInvalidDemand, fmt.Sprintf("%s: quantity for %s must be >= 1", op, productID), nil)
		}
		if _, dup := seen[productID]; dup {
			return repositories.NewStockError(repositories.StockErrorInvalidDemand, fmt.Sprintf("%s: duplicate product %s", op, productID), nil)
		}
		seen[productID] = struct{}{}
	}

	now = now.UTC()
	run := func(txCtx context.Context, tx *firestore.Transaction) error {
		type pending struct {
			ref *firestore.DocumentRef
			doc productDocument
		}

		// Read phase: load and validate every document first.
		updates := make([]pending, 0, len(demands))
		for _, d := range demands {
			ref, err := l.products.DocumentRef(txCtx, d.ProductID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorProductNotFound, fmt.Sprintf("product %s has no stock record", d.ProductID), err)
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", d.ProductID, err)
			}
			if err := adjust(&doc, d); err != nil {
				return err
			}
			doc.UpdatedAt = now
			doc.recalculate()
			updates = append(updates, pending{ref: ref, doc: doc})
		}

		// Write phase.
		for _, u := range updates {
			if err := tx.Set(u.ref, u.doc); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		err = run(ctx, tx)
	} else {
		err = l.provider.RunTransaction(ctx, run)
	}
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			if stockErr.Op == "" {
				stockErr.Op = op
			}
			return stockErr
		}
		return pfirestore.WrapError(op, err)
	}
	return nil
}

var _ repositories.StockLedger = (*StockLedger)(nil)
