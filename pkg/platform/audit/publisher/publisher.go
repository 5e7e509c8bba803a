// Package publisher decouples services from the audit store. In sync mode
// events are appended inline; with an async buffer they are queued and
// drained by a background goroutine so mutation paths never block on the
// audit backend.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "rollcall/pkg/platform/audit"
)

// Publisher emits audit events to a Store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox chan audit.Event
	done  chan struct{}
	once  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous publishing with the given queue size.
// When the queue is full, Emit drops the event and logs rather than blocking
// the request path.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan audit.Event, size)
		}
	}
}

// WithLogger sets the logger used for drop/append failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher constructs a Publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event, filling in the category from the action.
// Failures are logged, never returned: audit must not fail the mutation it
// describes.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event.Category = audit.Categorize(event.Action)

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			p.logger.Warn("audit queue full, dropping event", "action", event.Action, "subject", event.Subject)
		}
		return nil
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
	return nil
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}

// Close stops the async drainer, flushing any queued events first.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}
