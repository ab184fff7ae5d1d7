package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	domain "github.com/greenmart/api/internal/domain"
	pfirestore "github.com/greenmart/api/internal/platform/firestore"
	"github.com/greenmart/api/internal/platform/pagination"
	"github.com/greenmart/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists order documents. Orders are append-then-update
// records; documents are never deleted.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := createDocument(ctx, ref, fromDomainOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := setDocument(ctx, ref, fromDomainOrder(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	snap, err := getSnapshot(ctx, ref)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	query := client.Collection(orderCollection).Query
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("userId", "==", userID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}

	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 50
	}
	query = query.Limit(limit + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		sortValue, docID, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: invalid page token: %w", err)
		}
		query = query.StartAfter(sortValue, docID)
	}

	iter := queryDocuments(ctx, query)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		nextToken = pagination.EncodeCursor(last.CreatedAt, last.ID)
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// CountByStatus runs one count aggregation per lifecycle status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	statuses := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	}

	counts := make(map[domain.OrderStatus]int64, len(statuses))
	for _, status := range statuses {
		query := client.Collection(orderCollection).Where("status", "==", string(status))
		results, err := query.NewAggregationQuery().WithCount("count").Get(ctx)
		if err != nil {
			return nil, pfirestore.WrapError("orders.countByStatus", err)
		}
		count, err := aggregationInt(results, "count")
		if err != nil {
			return nil, fmt.Errorf("orders.countByStatus %s: %w", status, err)
		}
		if count > 0 {
			counts[status] = count
		}
	}
	return counts, nil
}

// SumFinalAmount aggregates finalAmount over all orders in the given status.
func (r *OrderRepository) SumFinalAmount(ctx context.Context, status domain.OrderStatus) (int64, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	query := client.Collection(orderCollection).Where("status", "==", string(status))
	results, err := query.NewAggregationQuery().WithSum("finalAmount", "total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("orders.sumFinalAmount", err)
	}
	total, err := aggregationInt(results, "total")
	if err != nil {
		return 0, fmt.Errorf("orders.sumFinalAmount: %w", err)
	}
	return total, nil
}

func aggregationInt(results firestore.AggregationResult, alias string) (int64, error) {
	raw, ok := results[alias]
	if !ok {
		return 0, fmt.Errorf("aggregation alias %q missing", alias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("aggregation alias %q has unexpected type %T", alias, raw)
	}
	switch v := value.ValueType.(type) {
	case *firestorepb.Value_IntegerValue:
		return v.IntegerValue, nil
	case *firestorepb.Value_DoubleValue:
		return int64(v.DoubleValue), nil
	case *firestorepb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("aggregation alias %q has unexpected value kind %T", alias, value.ValueType)
	}
}

// Document mapping ------------------------------------------------------------

type orderDocument struct {
	UserID             string                  `firestore:"userId"`
	Items              []orderItemDocument     `firestore:"items"`
	TotalAmount        int64                   `firestore:"totalAmount"`
	ShippingCost       int64                   `firestore:"shippingCost"`
	Discount           int64                   `firestore:"discount"`
	FinalAmount        int64                   `firestore:"finalAmount"`
	Status             string                  `firestore:"status"`
	Timeline           []timelineEntryDocument `firestore:"timeline"`
	DeliveryAddress    addressDocument         `firestore:"deliveryAddress"`
	Phone              string                  `firestore:"phone"`
	ConfirmedBy        string                  `firestore:"confirmedBy,omitempty"`
	CancellationReason string                  `firestore:"cancellationReason,omitempty"`
	CancelledAt        *time.Time              `firestore:"cancelledAt,omitempty"`
	DeliveredAt        *time.Time              `firestore:"deliveredAt,omitempty"`
	CreatedAt          time.Time               `firestore:"createdAt"`
	UpdatedAt          time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Quantity  int64  `firestore:"qty"`
	UnitPrice int64  `firestore:"unitPrice"`
	LineTotal int64  `firestore:"lineTotal"`
}

type timelineEntryDocument struct {
	Status    string    `firestore:"status"`
	At        time.Time `firestore:"at"`
	ActorID   string    `firestore:"actorId"`
	ActorRole string    `firestore:"actorRole"`
	Note      string    `firestore:"note,omitempty"`
}

type addressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	District   string `firestore:"district,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country"`
}

func fromDomainOrder(o domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	timeline := make([]timelineEntryDocument, 0, len(o.Timeline))
	for _, entry := range o.Timeline {
		timeline = append(timeline, timelineEntryDocument{
			Status:    string(entry.Status),
			At:        entry.At.UTC(),
			ActorID:   entry.Actor.ID,
			ActorRole: entry.Actor.Role,
			Note:      entry.Note,
		})
	}
	return orderDocument{
		UserID:             o.UserID,
		Items:              items,
		TotalAmount:        o.TotalAmount,
		ShippingCost:       o.ShippingCost,
		Discount:           o.Discount,
		FinalAmount:        o.FinalAmount,
		Status:             string(o.Status),
		Timeline:           timeline,
		DeliveryAddress:    fromDomainAddress(o.DeliveryAddress),
		Phone:              strings.TrimSpace(o.Phone),
		ConfirmedBy:        o.ConfirmedBy,
		CancellationReason: o.CancellationReason,
		CancelledAt:        o.CancelledAt,
		DeliveredAt:        o.DeliveredAt,
		CreatedAt:          o.CreatedAt.UTC(),
		UpdatedAt:          o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	timeline := make([]domain.TimelineEntry, 0, len(d.Timeline))
	for _, entry := range d.Timeline {
		timeline = append(timeline, domain.TimelineEntry{
			Status: domain.OrderStatus(entry.Status),
			At:     entry.At,
			Actor:  domain.OrderActor{ID: entry.ActorID, Role: entry.ActorRole},
			Note:   entry.Note,
		})
	}
	return domain.Order{
		ID:                 id,
		UserID:             d.UserID,
		Items:              items,
		TotalAmount:        d.TotalAmount,
		ShippingCost:       d.ShippingCost,
		Discount:           d.Discount,
		FinalAmount:        d.FinalAmount,
		Status:             domain.OrderStatus(d.Status),
		Timeline:           timeline,
		DeliveryAddress:    d.DeliveryAddress.toDomain(),
		Phone:              d.Phone,
		ConfirmedBy:        d.ConfirmedBy,
		CancellationReason: d.CancellationReason,
		CancelledAt:        d.CancelledAt,
		DeliveredAt:        d.DeliveredAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func fromDomainAddress(a domain.Address) addressDocument {
	return addressDocument{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		District:   strings.TrimSpace(a.District),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		District:   d.District,
		PostalCode: d.PostalCode,
		Country:    d.Country,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
