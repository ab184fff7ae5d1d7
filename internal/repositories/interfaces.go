package repositories

import (
	"context"
	"time"

	domain "github.com/greenmart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products. Stock counters are owned by
// the StockLedger; product writes here never touch Stock/TotalSold directly.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	SoftDelete(ctx context.Context, productID string, deletedAt time.Time) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductFilter) (domain.CursorPage[domain.Product], error)
	ListLowStock(ctx context.Context, limit int) ([]domain.Product, error)
	UpdateRating(ctx context.Context, productID string, ratingAvg float64, ratingCount int64) error
}

// StockLedger atomically adjusts stock/totalSold counters for batches of
// demands. Both operations apply all adjustments or none, and join an
// ambient unit-of-work transaction when one is present on the context.
type StockLedger interface {
	Reserve(ctx context.Context, demands []domain.StockDemand, now time.Time) error
	Release(ctx context.Context, demands []domain.StockDemand, now time.Time) error
}

// CategoryRepository persists taxonomy nodes.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context, filter CategoryFilter) (domain.CursorPage[domain.Category], error)
}

// OrderRepository persists order documents and query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error)
	SumFinalAmount(ctx context.Context, status domain.OrderStatus) (int64, error)
}

// CartRepository owns per-user cart persistence.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

// FavouriteRepository tracks (user, product) membership pairs.
type FavouriteRepository interface {
	Put(ctx context.Context, favourite domain.Favourite) error
	Delete(ctx context.Context, userID, productID string) error
	Exists(ctx context.Context, userID, productID string) (bool, error)
	List(ctx context.Context, userID string, page domain.Pagination) (domain.CursorPage[domain.Favourite], error)
}

// ReviewRepository stores product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, page domain.Pagination) (domain.CursorPage[domain.Review], error)
}

// UserRepository stores customer accounts.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// AdminRepository stores back-office accounts.
type AdminRepository interface {
	Insert(ctx context.Context, admin domain.Admin) error
	Update(ctx context.Context, admin domain.Admin) error
	FindByID(ctx context.Context, adminID string) (domain.Admin, error)
	FindByEmail(ctx context.Context, email string) (domain.Admin, error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.ActivityLog) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.ActivityLog], error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// ProductSort enumerates supported catalog list orderings.
type ProductSort string

const (
	ProductSortNewest      ProductSort = "newest"
	ProductSortPriceAsc    ProductSort = "price_asc"
	ProductSortPriceDesc   ProductSort = "price_desc"
	ProductSortBestSelling ProductSort = "best_selling"
	ProductSortTopRated    ProductSort = "top_rated"
)

type ProductFilter struct {
	CategoryID     string
	Search         string
	PriceRange     domain.RangeQuery[int64]
	Featured       *bool
	PublishedOnly  bool
	IncludeDeleted bool
	Sort           ProductSort
	Pagination     domain.Pagination
}

type CategoryFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
