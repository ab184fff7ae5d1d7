package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	domain "github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/repositories"
)

const (
	emailTemplateOrderPlaced    = "order_placed"
	emailTemplateOrderConfirmed = "order_confirmed"
	emailTemplateOrderShipped   = "order_shipped"
	emailTemplateOrderDelivered = "order_delivered"
	emailTemplateOrderCancelled = "order_cancelled"
	emailTemplateStatusChanged  = "order_status_changed"
)

// NotificationServiceDeps bundles constructor inputs for the notification dispatcher.
type NotificationServiceDeps struct {
	Users     repositories.UserRepository
	Publisher EmailJobPublisher
}

type notificationService struct {
	users     repositories.UserRepository
	publisher EmailJobPublisher
}

// NewNotificationService builds the dispatcher that turns order lifecycle
// changes into prebuilt transactional emails on the mail job queue.
func NewNotificationService(deps NotificationServiceDeps) (NotificationDispatcher, error) {
	if deps.Users == nil {
		return nil, errors.New("notification service: user repository is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("notification service: email publisher is required")
	}
	return &notificationService{
		users:     deps.Users,
		publisher: deps.Publisher,
	}, nil
}

func (s *notificationService) OrderPlaced(ctx context.Context, order Order) error {
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("notification: load user %s: %w", order.UserID, err)
	}

	msg := EmailJobMessage{
		To:       user.Email,
		Subject:  fmt.Sprintf("We received your order %s", order.ID),
		Template: emailTemplateOrderPlaced,
		OrderID:  order.ID,
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Thanks for your order <strong>%s</strong>. We will confirm it shortly.</p><p>Order total: %d</p>",
			html.EscapeString(firstName(user.Name)), order.ID, order.FinalAmount,
		),
	}
	if _, err := s.publisher.PublishEmailJob(ctx, msg); err != nil {
		return fmt.Errorf("notification: publish email job: %w", err)
	}
	return nil
}

func (s *notificationService) OrderStatusChanged(ctx context.Context, order Order, previous OrderStatus) error {
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("notification: load user %s: %w", order.UserID, err)
	}

	subject, template, body := statusEmail(order, firstName(user.Name))
	msg := EmailJobMessage{
		To:       user.Email,
		Subject:  subject,
		Template: template,
		OrderID:  order.ID,
		HTMLBody: body,
	}
	if _, err := s.publisher.PublishEmailJob(ctx, msg); err != nil {
		return fmt.Errorf("notification: publish email job: %w", err)
	}
	return nil
}

func statusEmail(order Order, name string) (subject, template, body string) {
	name = html.EscapeString(name)
	switch order.Status {
	case domain.OrderStatusConfirmed:
		return fmt.Sprintf("Your order %s is confirmed", order.ID),
			emailTemplateOrderConfirmed,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> is confirmed and being prepared.</p>", name, order.ID)
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Your order %s is on its way", order.ID),
			emailTemplateOrderShipped,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> has been handed to the courier.</p>", name, order.ID)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s was delivered", order.ID),
			emailTemplateOrderDelivered,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> was delivered. Enjoy!</p>", name, order.ID)
	case domain.OrderStatusCancelled:
		reason := strings.TrimSpace(order.CancellationReason)
		detail := ""
		if reason != "" {
			detail = fmt.Sprintf("<p>Reason: %s</p>", html.EscapeString(reason))
		}
		return fmt.Sprintf("Your order %s was cancelled", order.ID),
			emailTemplateOrderCancelled,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> was cancelled.</p>%s", name, order.ID, detail)
	default:
		return fmt.Sprintf("Update on your order %s", order.ID),
			emailTemplateStatusChanged,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> is now <strong>%s</strong>.</p>", name, order.ID, order.Status)
	}
}

func firstName(full string) string {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
