package services

import (
	"context"
	"errors"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

const defaultAnalyticsLimit = 10

// AnalyticsServiceDeps bundles collaborators required to construct the analytics service.
type AnalyticsServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Users    repositories.UserRepository
}

type analyticsService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
}

// NewAnalyticsService wires dependencies into a concrete AnalyticsService implementation.
func NewAnalyticsService(deps AnalyticsServiceDeps) (AnalyticsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("analytics service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("analytics service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("analytics service: user repository is required")
	}
	return &analyticsService{
		orders:   deps.Orders,
		products: deps.Products,
		users:    deps.Users,
	}, nil
}

// Summary aggregates the dashboard figures. Revenue counts delivered orders only.
func (s *analyticsService) Summary(ctx context.Context) (DashboardSummary, error) {
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}

	revenue, err := s.orders.SumFinalAmount(ctx, domain.OrderStatusDelivered)
	if err != nil {
		return DashboardSummary{}, err
	}

	customers, err := s.users.Count(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}

	return DashboardSummary{
		TotalOrders:    total,
		OrdersByStatus: counts,
		Revenue:        revenue,
		TotalCustomers: customers,
	}, nil
}

func (s *analyticsService) TopProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = defaultAnalyticsLimit
	}
	page, err := s.products.List(ctx, repositories.ProductFilter{
		PublishedOnly: true,
		Sort:          repositories.ProductSortBestSelling,
		Pagination:    domain.Pagination{PageSize: limit},
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *analyticsService) RecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = defaultAnalyticsLimit
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Pagination: domain.Pagination{PageSize: limit},
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
