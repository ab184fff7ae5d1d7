package services

import (
	"context"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Product            = domain.Product
	SEOMetadata        = domain.SEOMetadata
	Category           = domain.Category
	Review             = domain.Review
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Favourite          = domain.Favourite
	User               = domain.User
	Admin              = domain.Admin
	Address            = domain.Address
	MediaObject        = domain.MediaObject
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderActor         = domain.OrderActor
	TimelineEntry      = domain.TimelineEntry
	StockDemand        = domain.StockDemand
	ActivityLog        = domain.ActivityLog
	SystemHealthReport = domain.SystemHealthReport
)

// Filter aliases keep list surfaces identical between services and repositories.
type (
	ProductListFilter  = repositories.ProductFilter
	CategoryListFilter = repositories.CategoryFilter
	OrderListFilter    = repositories.OrderListFilter
	AuditLogFilter     = repositories.AuditLogFilter
)

// CatalogService manages products for public listing and admin curation.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	ListLowStock(ctx context.Context, limit int) ([]Product, error)
	AttachImage(ctx context.Context, cmd AttachProductImageCommand) (Product, error)
	RemoveImage(ctx context.Context, cmd RemoveProductImageCommand) (Product, error)
}

// CategoryService manages the single-level product taxonomy.
type CategoryService interface {
	Create(ctx context.Context, cmd CreateCategoryCommand) (Category, error)
	Update(ctx context.Context, cmd UpdateCategoryCommand) (Category, error)
	Delete(ctx context.Context, categoryID string) error
	Get(ctx context.Context, categoryID string) (Category, error)
	GetBySlug(ctx context.Context, slug string) (Category, error)
	List(ctx context.Context, filter CategoryListFilter) (domain.CursorPage[Category], error)
}

// CartService manages the mutable pre-checkout state for one user.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// FavouriteService tracks per-user product favourites.
type FavouriteService interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Favourite], error)
}

// ReviewService coordinates review writes with product rating aggregates.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error)
	Delete(ctx context.Context, cmd DeleteReviewCommand) error
}

// OrderService owns the order lifecycle: placement, confirmation with stock
// reservation, status transitions, and cancellation.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// AuthService registers and authenticates user and admin accounts.
type AuthService interface {
	RegisterUser(ctx context.Context, cmd RegisterUserCommand) (AuthSession, error)
	LoginUser(ctx context.Context, cmd LoginCommand) (AuthSession, error)
	LoginAdmin(ctx context.Context, cmd LoginCommand) (AuthSession, error)
	GetUser(ctx context.Context, userID string) (User, error)
}

// AnalyticsService aggregates sales figures for the admin dashboard.
type AnalyticsService interface {
	Summary(ctx context.Context) (DashboardSummary, error)
	TopProducts(ctx context.Context, limit int) ([]Product, error)
	RecentOrders(ctx context.Context, limit int) ([]Order, error)
}

// AuditLogService centralises immutable audit trail persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[ActivityLog], error)
}

// NotificationDispatcher builds transactional order emails and hands them to
// the mail job queue. Callers treat dispatch as best effort.
type NotificationDispatcher interface {
	OrderPlaced(ctx context.Context, order Order) error
	OrderStatusChanged(ctx context.Context, order Order, previous OrderStatus) error
}

// SystemService aggregates operational endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// BuildInfo carries version metadata stamped at build time, reported by the
// liveness endpoint.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// Command and DTO definitions ------------------------------------------------

type CreateProductCommand struct {
	Name          string
	Description   string
	Price         int64
	DiscountPrice *int64
	Stock         int64
	LowStockAlert int64
	CategoryID    string
	IsPublished   bool
	IsFeatured    bool
	ActorID       string
}

type UpdateProductCommand struct {
	ProductID     string
	Name          *string
	Description   *string
	Price         *int64
	DiscountPrice *int64
	ClearDiscount bool
	Stock         *int64
	LowStockAlert *int64
	CategoryID    *string
	IsPublished   *bool
	IsFeatured    *bool
	ActorID       string
}

type AttachProductImageCommand struct {
	ProductID   string
	Data        []byte
	ContentType string
}

type RemoveProductImageCommand struct {
	ProductID string
	ImageID   string
}

type CreateCategoryCommand struct {
	Name        string
	Description string
	IsActive    bool
}

type UpdateCategoryCommand struct {
	CategoryID  string
	Name        *string
	Description *string
	IsActive    *bool
}

type UpsertCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int64
}

type CreateReviewCommand struct {
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
}

type DeleteReviewCommand struct {
	ReviewID  string
	ActorID   string
	ActorRole string
}

type OrderLineInput struct {
	ProductID string
	Quantity  int64
}

type PlaceOrderCommand struct {
	UserID  string
	Items   []OrderLineInput
	Address Address
	Phone   string
}

type ConfirmOrderCommand struct {
	OrderID string
	AdminID string
}

type UpdateOrderStatusCommand struct {
	OrderID string
	Target  OrderStatus
	AdminID string
	Note    string
}

type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

type RegisterUserCommand struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type LoginCommand struct {
	Email    string
	Password string
}

// AuthSession is the result of a successful register or login call.
type AuthSession struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Name      string
	Email     string
	Roles     []string
}

// DashboardSummary is the admin landing-page aggregate.
type DashboardSummary struct {
	TotalOrders    int64
	OrdersByStatus map[OrderStatus]int64
	Revenue        int64
	TotalCustomers int64
}

// AuditLogRecord is the write-side input for the audit trail.
type AuditLogRecord struct {
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Changes    map[string]any
	IPAddress  string
	OccurredAt time.Time
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order lifecycle events.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	UserID         string             `json:"userId"`
	ActorID        string             `json:"actorId,omitempty"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// EmailJobPublisher hands prebuilt transactional emails to the mail worker queue.
type EmailJobPublisher interface {
	PublishEmailJob(ctx context.Context, message EmailJobMessage) (string, error)
}

// EmailJobMessage is the payload consumed by the mail worker.
type EmailJobMessage struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
	Template string `json:"template"`
	OrderID  string `json:"orderId,omitempty"`
}
