// Package pubsub publishes job completion events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
)

// EventTypeAttribute carries the event type on every published message.
const EventTypeAttribute = "event_type"

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the payload to JSON and publishes it to the topic. The
// topic argument becomes the event_type attribute; the destination is fixed by
// the handle given to New.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{}}
	if topic != "" {
		msg.Attributes[EventTypeAttribute] = topic
	}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and stops the topic's background goroutines.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
