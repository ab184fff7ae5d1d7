package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

// notFoundError satisfies repositories.RepositoryError for missing documents.
type notFoundError struct{ msg string }

func (e notFoundError) Error() string       { return e.msg }
func (e notFoundError) IsNotFound() bool    { return true }
func (e notFoundError) IsConflict() bool    { return false }
func (e notFoundError) IsUnavailable() bool { return false }

type conflictError struct{ msg string }

func (e conflictError) Error() string       { return e.msg }
func (e conflictError) IsNotFound() bool    { return false }
func (e conflictError) IsConflict() bool    { return true }
func (e conflictError) IsUnavailable() bool { return false }

// memProductRepo is a map-backed product repository shared by service tests.
type memProductRepo struct {
	products map[string]domain.Product
}

func newMemProductRepo(products ...domain.Product) *memProductRepo {
	repo := &memProductRepo{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *memProductRepo) Insert(_ context.Context, product domain.Product) error {
	if _, exists := r.products[product.ID]; exists {
		return conflictError{msg: "product exists"}
	}
	r.products[product.ID] = product
	return nil
}

func (r *memProductRepo) Update(_ context.Context, product domain.Product) error {
	if _, exists := r.products[product.ID]; !exists {
		return notFoundError{msg: "product not found"}
	}
	r.products[product.ID] = product
	return nil
}

func (r *memProductRepo) SoftDelete(_ context.Context, productID string, deletedAt time.Time) error {
	p, exists := r.products[productID]
	if !exists {
		return notFoundError{msg: "product not found"}
	}
	p.IsDeleted = true
	p.UpdatedAt = deletedAt
	r.products[productID] = p
	return nil
}

func (r *memProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	p, exists := r.products[productID]
	if !exists {
		return domain.Product{}, notFoundError{msg: fmt.Sprintf("product %s not found", productID)}
	}
	return p, nil
}

func (r *memProductRepo) FindBySlug(_ context.Context, slug string) (domain.Product, error) {
	for _, p := range r.products {
		if p.Slug == slug && !p.IsDeleted {
			return p, nil
		}
	}
	return domain.Product{}, notFoundError{msg: fmt.Sprintf("slug %s not found", slug)}
}

func (r *memProductRepo) List(_ context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	items := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.PublishedOnly && !p.IsPublished {
			continue
		}
		if !filter.IncludeDeleted && p.IsDeleted {
			continue
		}
		items = append(items, p)
	}
	if filter.Sort == repositories.ProductSortBestSelling {
		sort.Slice(items, func(i, j int) bool { return items[i].TotalSold > items[j].TotalSold })
	} else {
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}
	if size := filter.Pagination.PageSize; size > 0 && len(items) > size {
		items = items[:size]
	}
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (r *memProductRepo) ListLowStock(_ context.Context, limit int) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range r.products {
		if p.LowOnStock() && !p.IsDeleted {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProductRepo) UpdateRating(_ context.Context, productID string, ratingAvg float64, ratingCount int64) error {
	p, exists := r.products[productID]
	if !exists {
		return notFoundError{msg: "product not found"}
	}
	p.RatingAvg = ratingAvg
	p.RatingCount = ratingCount
	r.products[productID] = p
	return nil
}

// fakeStockLedger applies real reservation arithmetic against memProductRepo
// so atomicity and never-negative properties are observable.
type fakeStockLedger struct {
	repo *memProductRepo
}

func (l *fakeStockLedger) Reserve(_ context.Context, demands []domain.StockDemand, now time.Time) error {
	for _, d := range demands {
		if d.Quantity < 1 {
			return repositories.NewStockError(repositories.StockErrorInvalidDemand, "", nil)
		}
		p, exists := l.repo.products[d.ProductID]
		if !exists {
			return repositories.NewStockError(repositories.StockErrorProductNotFound, d.ProductID, nil)
		}
		if p.Stock < d.Quantity {
			return repositories.NewInsufficientStockError(d.ProductID, p.Stock, d.Quantity)
		}
	}
	for _, d := range demands {
		p := l.repo.products[d.ProductID]
		p.Stock -= d.Quantity
		p.TotalSold += d.Quantity
		p.UpdatedAt = now
		l.repo.products[d.ProductID] = p
	}
	return nil
}

func (l *fakeStockLedger) Release(_ context.Context, demands []domain.StockDemand, now time.Time) error {
	for _, d := range demands {
		if _, exists := l.repo.products[d.ProductID]; !exists {
			return repositories.NewStockError(repositories.StockErrorProductNotFound, d.ProductID, nil)
		}
	}
	for _, d := range demands {
		p := l.repo.products[d.ProductID]
		p.Stock += d.Quantity
		p.TotalSold -= d.Quantity
		if p.TotalSold < 0 {
			p.TotalSold = 0
		}
		p.UpdatedAt = now
		l.repo.products[d.ProductID] = p
	}
	return nil
}

// memOrderRepo is a map-backed order repository.
type memOrderRepo struct {
	orders map[string]domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *memOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if _, exists := r.orders[order.ID]; exists {
		return conflictError{msg: "order exists"}
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, order domain.Order) error {
	if _, exists := r.orders[order.ID]; !exists {
		return notFoundError{msg: "order not found"}
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	o, exists := r.orders[orderID]
	if !exists {
		return domain.Order{}, notFoundError{msg: fmt.Sprintf("order %s not found", orderID)}
	}
	return o, nil
}

func (r *memOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	items := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		items = append(items, o)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if size := filter.Pagination.PageSize; size > 0 && len(items) > size {
		items = items[:size]
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (r *memOrderRepo) CountByStatus(_ context.Context) (map[domain.OrderStatus]int64, error) {
	counts := make(map[domain.OrderStatus]int64)
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (r *memOrderRepo) SumFinalAmount(_ context.Context, status domain.OrderStatus) (int64, error) {
	var sum int64
	for _, o := range r.orders {
		if o.Status == status {
			sum += o.FinalAmount
		}
	}
	return sum, nil
}

// memCartRepo records cart clears.
type memCartRepo struct {
	carts   map[string]domain.Cart
	cleared []string
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]domain.Cart)}
}

func (r *memCartRepo) Get(_ context.Context, userID string) (domain.Cart, error) {
	c, exists := r.carts[userID]
	if !exists {
		return domain.Cart{}, notFoundError{msg: "cart not found"}
	}
	return c, nil
}

func (r *memCartRepo) Save(_ context.Context, cart domain.Cart) error {
	r.carts[cart.UserID] = cart
	return nil
}

func (r *memCartRepo) Clear(_ context.Context, userID string) error {
	delete(r.carts, userID)
	r.cleared = append(r.cleared, userID)
	return nil
}

// captureEvents records published order events.
type captureEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

// captureEmails records published email jobs.
type captureEmails struct {
	messages []EmailJobMessage
	err      error
}

func (c *captureEmails) PublishEmailJob(_ context.Context, msg EmailJobMessage) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.messages = append(c.messages, msg)
	return fmt.Sprintf("msg-%d", len(c.messages)), nil
}

// memUserRepo is a map-backed user repository.
type memUserRepo struct {
	users map[string]domain.User
}

func newMemUserRepo(users ...domain.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *memUserRepo) Insert(_ context.Context, user domain.User) error {
	if _, exists := r.users[user.ID]; exists {
		return conflictError{msg: "user exists"}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user domain.User) error {
	if _, exists := r.users[user.ID]; !exists {
		return notFoundError{msg: "user not found"}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, userID string) (domain.User, error) {
	u, exists := r.users[userID]
	if !exists {
		return domain.User{}, notFoundError{msg: "user not found"}
	}
	return u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, notFoundError{msg: "user not found"}
}

func (r *memUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

// memAdminRepo is a map-backed admin repository.
type memAdminRepo struct {
	admins map[string]domain.Admin
}

func newMemAdminRepo(admins ...domain.Admin) *memAdminRepo {
	repo := &memAdminRepo{admins: make(map[string]domain.Admin, len(admins))}
	for _, a := range admins {
		repo.admins[a.ID] = a
	}
	return repo
}

func (r *memAdminRepo) Insert(_ context.Context, admin domain.Admin) error {
	if _, exists := r.admins[admin.ID]; exists {
		return conflictError{msg: "admin exists"}
	}
	r.admins[admin.ID] = admin
	return nil
}

func (r *memAdminRepo) Update(_ context.Context, admin domain.Admin) error {
	if _, exists := r.admins[admin.ID]; !exists {
		return notFoundError{msg: "admin not found"}
	}
	r.admins[admin.ID] = admin
	return nil
}

func (r *memAdminRepo) FindByID(_ context.Context, adminID string) (domain.Admin, error) {
	a, exists := r.admins[adminID]
	if !exists {
		return domain.Admin{}, notFoundError{msg: "admin not found"}
	}
	return a, nil
}

func (r *memAdminRepo) FindByEmail(_ context.Context, email string) (domain.Admin, error) {
	for _, a := range r.admins {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domain.Admin{}, notFoundError{msg: "admin not found"}
}

// memCategoryRepo is a map-backed category repository.
type memCategoryRepo struct {
	categories map[string]domain.Category
}

func newMemCategoryRepo(categories ...domain.Category) *memCategoryRepo {
	repo := &memCategoryRepo{categories: make(map[string]domain.Category, len(categories))}
	for _, c := range categories {
		repo.categories[c.ID] = c
	}
	return repo
}

func (r *memCategoryRepo) Insert(_ context.Context, category domain.Category) error {
	if _, exists := r.categories[category.ID]; exists {
		return conflictError{msg: "category exists"}
	}
	r.categories[category.ID] = category
	return nil
}

func (r *memCategoryRepo) Update(_ context.Context, category domain.Category) error {
	if _, exists := r.categories[category.ID]; !exists {
		return notFoundError{msg: "category not found"}
	}
	r.categories[category.ID] = category
	return nil
}

func (r *memCategoryRepo) Delete(_ context.Context, categoryID string) error {
	if _, exists := r.categories[categoryID]; !exists {
		return notFoundError{msg: "category not found"}
	}
	delete(r.categories, categoryID)
	return nil
}

func (r *memCategoryRepo) FindByID(_ context.Context, categoryID string) (domain.Category, error) {
	c, exists := r.categories[categoryID]
	if !exists {
		return domain.Category{}, notFoundError{msg: "category not found"}
	}
	return c, nil
}

func (r *memCategoryRepo) FindBySlug(_ context.Context, slug string) (domain.Category, error) {
	for _, c := range r.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return domain.Category{}, notFoundError{msg: "category not found"}
}

func (r *memCategoryRepo) List(_ context.Context, filter repositories.CategoryFilter) (domain.CursorPage[domain.Category], error) {
	items := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return domain.CursorPage[domain.Category]{Items: items}, nil
}

// memReviewRepo is a map-backed review repository.
type memReviewRepo struct {
	reviews map[string]domain.Review
}

func newMemReviewRepo() *memReviewRepo {
	return &memReviewRepo{reviews: make(map[string]domain.Review)}
}

func (r *memReviewRepo) Insert(_ context.Context, review domain.Review) error {
	if _, exists := r.reviews[review.ID]; exists {
		return conflictError{msg: "review exists"}
	}
	r.reviews[review.ID] = review
	return nil
}

func (r *memReviewRepo) Delete(_ context.Context, reviewID string) error {
	if _, exists := r.reviews[reviewID]; !exists {
		return notFoundError{msg: "review not found"}
	}
	delete(r.reviews, reviewID)
	return nil
}

func (r *memReviewRepo) FindByID(_ context.Context, reviewID string) (domain.Review, error) {
	rv, exists := r.reviews[reviewID]
	if !exists {
		return domain.Review{}, notFoundError{msg: "review not found"}
	}
	return rv, nil
}

func (r *memReviewRepo) FindByProductAndUser(_ context.Context, productID, userID string) (domain.Review, error) {
	for _, rv := range r.reviews {
		if rv.ProductID == productID && rv.UserID == userID {
			return rv, nil
		}
	}
	return domain.Review{}, notFoundError{msg: "review not found"}
}

func (r *memReviewRepo) ListByProduct(_ context.Context, productID string, _ domain.Pagination) (domain.CursorPage[domain.Review], error) {
	var items []domain.Review
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			items = append(items, rv)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Review]{Items: items}, nil
}

// memFavouriteRepo is a map-backed favourite repository keyed by user_product.
type memFavouriteRepo struct {
	favourites map[string]domain.Favourite
}

func newMemFavouriteRepo() *memFavouriteRepo {
	return &memFavouriteRepo{favourites: make(map[string]domain.Favourite)}
}

func favKey(userID, productID string) string { return userID + "_" + productID }

func (r *memFavouriteRepo) Put(_ context.Context, favourite domain.Favourite) error {
	r.favourites[favKey(favourite.UserID, favourite.ProductID)] = favourite
	return nil
}

func (r *memFavouriteRepo) Delete(_ context.Context, userID, productID string) error {
	delete(r.favourites, favKey(userID, productID))
	return nil
}

func (r *memFavouriteRepo) Exists(_ context.Context, userID, productID string) (bool, error) {
	_, exists := r.favourites[favKey(userID, productID)]
	return exists, nil
}

func (r *memFavouriteRepo) List(_ context.Context, userID string, _ domain.Pagination) (domain.CursorPage[domain.Favourite], error) {
	var items []domain.Favourite
	for _, f := range r.favourites {
		if f.UserID == userID {
			items = append(items, f)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return domain.CursorPage[domain.Favourite]{Items: items}, nil
}

// memAuditRepo captures appended audit entries.
type memAuditRepo struct {
	entries   []domain.ActivityLog
	appendErr error
}

func (r *memAuditRepo) Append(_ context.Context, entry domain.ActivityLog) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.ActivityLog], error) {
	var items []domain.ActivityLog
	for _, e := range r.entries {
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		items = append(items, e)
	}
	return domain.CursorPage[domain.ActivityLog]{Items: items}, nil
}
