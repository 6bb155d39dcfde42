// Package eventbus provides the run queue abstraction the engine publishes
// to and workers consume from. It is injected, never a process singleton, so
// tests can swap an in-memory channel in.
package eventbus

import (
	"context"

	"github.com/forgehq/forge/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
