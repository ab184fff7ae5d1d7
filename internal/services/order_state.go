package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/greenmart/api/internal/domain"
)

// orderStateTransitions is the single source of truth for lifecycle legality.
// Delivered and Cancelled have no outgoing edges.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

// stockReleasingStatuses are the states whose reserved stock must be returned
// when the order is cancelled.
var stockReleasingStatuses = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusProcessing,
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// applyTransition validates the move, appends the timeline entry, and applies
// per-status stamps. The order is mutated only when the transition is legal.
func applyTransition(order *domain.Order, target domain.OrderStatus, actor domain.OrderActor, note string, now time.Time) error {
	current := order.Status
	if !canTransition(current, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, current, target)
	}

	order.Status = target
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, domain.TimelineEntry{
		Status: target,
		At:     now,
		Actor:  actor,
		Note:   strings.TrimSpace(note),
	})

	switch target {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	return nil
}
