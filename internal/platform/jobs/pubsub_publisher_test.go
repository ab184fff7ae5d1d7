package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/greenmart/api/internal/domain"
	"github.com/greenmart/api/internal/services"
)

func newTestTopic(t *testing.T, name string) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic, srv
}

func TestPubSubOrderEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "order-events")

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	event := services.OrderEvent{
		Type:       "order.confirmed",
		OrderID:    "ORD-20250506-ABCD1234",
		UserID:     "usr_1",
		ActorID:    "adm_1",
		Status:     domain.OrderStatusConfirmed,
		OccurredAt: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID || payload.Type != event.Type {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["status"]; attr != "Confirmed" {
		t.Fatalf("expected status attribute, got %q", attr)
	}
}

func TestPubSubEmailPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "email-jobs")

	publisher, err := NewPubSubEmailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubEmailPublisher: %v", err)
	}

	msg := services.EmailJobMessage{
		To:       "jamal@example.com",
		Subject:  "Your order is confirmed",
		HTMLBody: "<p>Order ORD-20250506-ABCD1234 confirmed.</p>",
		Template: "order_confirmed",
		OrderID:  "ORD-20250506-ABCD1234",
	}

	if _, err := publisher.PublishEmailJob(ctx, msg); err != nil {
		t.Fatalf("PublishEmailJob: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["template"]; attr != "order_confirmed" {
		t.Fatalf("expected template attribute, got %q", attr)
	}
	var payload services.EmailJobMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != msg.To || payload.Subject != msg.Subject {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
