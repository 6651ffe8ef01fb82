package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

// Publisher delivers events to an external system.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error { return nil }

// Recorder keeps published events in memory for testing. PublishFunc, if
// set, can fail a publish before it is recorded.
type Recorder struct {
	PublishFunc func(e Event) error

	mu     sync.Mutex
	events []Event
	closed bool
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.PublishFunc != nil {
		if err := r.PublishFunc(e); err != nil {
			return err
		}
	}
	r.events = append(r.events, e)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subscriber is the part of the relay controller the forwarder needs.
type Subscriber interface {
	Subscribe(buf int) (<-chan relay.Transition, func())
}

// Forwarder drains relay transitions into a Publisher.
type Forwarder struct {
	source    Subscriber
	publisher Publisher
	name      string
	logger    *slog.Logger
}

// NewForwarder creates a forwarder. name identifies this room in every event.
func NewForwarder(source Subscriber, pub Publisher, name string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{source: source, publisher: pub, name: name, logger: logger}
}

// Run publishes transitions until ctx is done, then closes the publisher.
// Publish failures are logged and do not stop the loop.
func (f *Forwarder) Run(ctx context.Context) error {
	transitions, unsubscribe := f.source.Subscribe(64)
	defer unsubscribe()
	defer f.publisher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-transitions:
			if !ok {
				return nil
			}
			e := FromTransition(t, f.name)
			if err := f.publisher.Publish(ctx, e); err != nil {
				f.logger.Warn("event publish failed", "type", e.Type, "error", err)
				continue
			}
			f.logger.Debug("event published", "type", e.Type, "id", e.ID)
		}
	}
}
