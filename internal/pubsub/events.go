// Package pubsub provides a generic publish/subscribe event system used to
// push state snapshots from the registration flow to the UI.
package pubsub

import (
	"context"
	"time"
)

// EventType tells a subscriber what happened to the payload.
type EventType string

const (
	// ChangedEvent carries a new state snapshot. Only the newest one matters.
	ChangedEvent EventType = "changed"
	// NavigateEvent carries the snapshot taken when a navigation fired. It is
	// never collapsed into later changes.
	NavigateEvent EventType = "navigate"
)

// Event is one published payload.
type Event[T any] struct {
	Type    EventType
	Payload T
	// Seq increases by one per Publish on the same broker, so a subscriber
	// can tell how many events were dropped or collapsed.
	Seq       uint64
	Timestamp time.Time
}

// Subscriber is the read side of a Broker.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}
