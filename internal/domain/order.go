package domain

import "time"

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed but not yet confirmed.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusConfirmed indicates an admin confirmed the order and stock is reserved.
	OrderStatusConfirmed OrderStatus = "Confirmed"
	// OrderStatusProcessing indicates the order is being prepared for shipment.
	OrderStatusProcessing OrderStatus = "Processing"
	// OrderStatusShipped indicates the order has been handed to the courier.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled indicates the order was cancelled by the user or an admin.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Terminal reports whether the status has no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderActor identifies who drove a status transition.
type OrderActor struct {
	ID   string
	Role string
}

// TimelineEntry records one status transition on an order.
type TimelineEntry struct {
	Status OrderStatus
	At     time.Time
	Actor  OrderActor
	Note   string
}

// OrderItem is one line of an order. UnitPrice is frozen at purchase time and
// never re-read from the catalog.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int64
	UnitPrice int64
	LineTotal int64
}

// Order is the purchase record. It is never physically deleted; cancellation
// is a terminal status. The last timeline entry's status always equals Status.
type Order struct {
	ID                 string
	UserID             string
	Items              []OrderItem
	TotalAmount        int64
	ShippingCost       int64
	Discount           int64
	FinalAmount        int64
	Status             OrderStatus
	Timeline           []TimelineEntry
	DeliveryAddress    Address
	Phone              string
	ConfirmedBy        string
	CancellationReason string
	CancelledAt        *time.Time
	DeliveredAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StockDemand pairs a product with the quantity an order line reserves or releases.
type StockDemand struct {
	ProductID string
	Quantity  int64
}

// Demands extracts the stock demands for every line of the order.
func (o Order) Demands() []StockDemand {
	demands := make([]StockDemand, 0, len(o.Items))
	for _, item := range o.Items {
		demands = append(demands, StockDemand{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return demands
}
