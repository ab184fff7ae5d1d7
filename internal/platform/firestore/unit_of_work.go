package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

// WithTransaction stores an active Firestore transaction on the context so
// repositories invoked inside a unit of work read and write through it.
func WithTransaction(ctx context.Context, tx *firestore.Transaction) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TransactionFrom extracts the ambient transaction, when one is present.
func TransactionFrom(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	if !ok || tx == nil {
		return nil, false
	}
	return tx, true
}

// UnitOfWork scopes multiple repository operations to a single Firestore
// transaction. Firestore requires every read to happen before the first
// write, so callers must order their repository calls accordingly.
type UnitOfWork struct {
	provider *Provider
	opts     []TxOption
}

// NewUnitOfWork builds a UnitOfWork backed by the given provider.
func NewUnitOfWork(provider *Provider, opts ...TxOption) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &UnitOfWork{provider: provider, opts: opts}, nil
}

// RunInTx executes fn inside one transaction. The transaction is attached to
// the context handed to fn; nested calls reuse the ambient transaction
// instead of opening a second one.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore: transaction function is required")
	}
	if _, ok := TransactionFrom(ctx); ok {
		return fn(ctx)
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(WithTransaction(txCtx, tx))
	}, u.opts...)
}
