package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd returns a command that waits on ch and delivers the next event as
// a tea.Msg, or nil once ctx is done or ch is closed.
//
// A run of ChangedEvents already queued is collapsed into the newest one, so
// the update loop renders only the latest snapshot. Any other event type ends
// the run and is delivered as is; events behind it stay queued.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		var ev Event[T]
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-ch:
			if !ok {
				return nil
			}
			ev = next
		}

		for ev.Type == ChangedEvent {
			select {
			case next, ok := <-ch:
				if !ok {
					return ev
				}
				ev = next
			default:
				return ev
			}
		}
		return ev
	}
}

// ContinuousListener holds one subscription for the lifetime of a screen.
// Re-arm it with Listen after every event the screen handles.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes to src until ctx is cancelled.
func NewContinuousListener[T any](ctx context.Context, src Subscriber[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{ctx: ctx, ch: src.Subscribe(ctx)}
}

// Listen returns the command that waits for the next event.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}
