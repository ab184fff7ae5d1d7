package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/greenmart/api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order event message on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "status", string(event.Status))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PubSubEmailPublisher publishes transactional email jobs consumed by the mail worker.
type PubSubEmailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEmailPublisher constructs a Pub/Sub backed email job publisher.
func NewPubSubEmailPublisher(topic *pubsub.Topic) (*PubSubEmailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub email publisher: topic is required")
	}
	return &PubSubEmailPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishEmailJob enqueues an email job message on the configured topic.
func (p *PubSubEmailPublisher) PublishEmailJob(ctx context.Context, message services.EmailJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub email publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal email job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "template", message.Template)
	setAttr(attrs, "orderId", message.OrderID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish email job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
