package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/greenmart/api/internal/platform/firestore"
)

// notFoundStatus builds a NotFound gRPC status error so query misses surface
// through pfirestore.WrapError with the same shape as document misses.
func notFoundStatus(msg string) error {
	return status.Error(codes.NotFound, msg)
}

// Read/write helpers that join the ambient unit-of-work transaction when one
// is present on the context and fall back to plain document operations
// otherwise. Firestore requires all transactional reads to precede the first
// write; callers inside a transaction must order their repository calls
// accordingly.

func getSnapshot(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func createDocument(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)
	return err
}

func setDocument(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Set(ref, data)
	}
	_, err := ref.Set(ctx, data)
	return err
}

func updateDocument(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update, preconds ...firestore.Precondition) error {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Update(ref, updates, preconds...)
	}
	_, err := ref.Update(ctx, updates, preconds...)
	return err
}

func deleteDocument(ctx context.Context, ref *firestore.DocumentRef, preconds ...firestore.Precondition) error {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Delete(ref, preconds...)
	}
	_, err := ref.Delete(ctx, preconds...)
	return err
}

func queryDocuments(ctx context.Context, query firestore.Query) *firestore.DocumentIterator {
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		return tx.Documents(query)
	}
	return query.Documents(ctx)
}
