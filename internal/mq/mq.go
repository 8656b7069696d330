// Package mq carries audit events over a pluggable broker.
package mq

import (
	"context"
	"fmt"

	"github.com/tsbernar/proxy-auth/config"
)

// Message is one delivery on an audit channel.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a delivery. A non-nil error nacks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by the RabbitMQ and Pub/Sub clients.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the audit bus handed to the user service and the events command.
type MQ struct {
	backend Backend
	name    string
}

// New wraps backend. name is only used in errors.
func New(name string, backend Backend) *MQ {
	return &MQ{backend: backend, name: name}
}

// Open builds the bus named by cfg.Backend. It returns nil, nil when audit
// events are disabled.
func Open(ctx context.Context, cfg config.EventsConfig) (*MQ, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(cfg.Backend, client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(cfg.Backend, client), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Publish sends one event and returns the broker's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id, err := m.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		return "", fmt.Errorf("%s publish to %s: %w", m.name, channel, err)
	}
	return id, nil
}

// Subscribe delivers events on channel to handler until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close releases the broker connection.
func (m *MQ) Close() error {
	return m.backend.Close()
}
