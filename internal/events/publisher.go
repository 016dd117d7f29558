package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"order-dispatch/internal/models"
)

const defaultBufferSize = 1024

// Sink is a destination for engine events
type Sink interface {
	Name() string
	Write(ctx context.Context, ev models.Event) error
}

// PublisherOptions configures a Publisher. Zero values use the defaults.
type PublisherOptions struct {
	BufferSize int
	// NewBackOff builds the retry policy for one sink write. Defaults to an
	// exponential back-off capped at 30 seconds.
	NewBackOff func() backoff.BackOff
}

// Publisher decouples the engine from slow sinks. Handle only enqueues; Run
// delivers each event to every sink in order, retrying failed writes.
type Publisher struct {
	logger     *slog.Logger
	sinks      []Sink
	ch         chan models.Event
	newBackOff func() backoff.BackOff

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewPublisher creates a publisher delivering to sinks in the given order
func NewPublisher(logger *slog.Logger, opts PublisherOptions, sinks ...Sink) *Publisher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}

	return &Publisher{
		logger:     logger,
		sinks:      sinks,
		ch:         make(chan models.Event, opts.BufferSize),
		newBackOff: opts.NewBackOff,
	}
}

// Handle enqueues an event without blocking. Events are dropped when the
// buffer is full or the publisher is closed.
func (p *Publisher) Handle(ctx context.Context, ev models.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.ch <- ev:
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "event buffer full, dropping event",
			slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)))
	}
}

// Run delivers events until Close is called and the buffer is drained, or
// until ctx ends. Events still buffered when ctx ends are counted as dropped
// and ctx.Err() is returned.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			if n := len(p.ch); n > 0 {
				p.dropped.Add(int64(n))
				p.logger.WarnContext(ctx, "publisher stopped with undelivered events", slog.Int("events", n))
			}
			return err
		}

		select {
		case <-ctx.Done():
		case ev, ok := <-p.ch:
			if !ok {
				return nil
			}
			p.deliver(ctx, ev)
		}
	}
}

// Close stops accepting events. Events already buffered get a single write
// attempt per sink; Run returns once they are written.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

func (p *Publisher) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Dropped returns how many events were discarded, either because the buffer
// was full or because Run stopped before delivering them
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) deliver(ctx context.Context, ev models.Event) {
	for _, sink := range p.sinks {
		sink := sink
		operation := func() error {
			return sink.Write(ctx, ev)
		}

		notify := func(err error, d time.Duration) {
			p.logger.WarnContext(ctx, "sink write failed, retrying",
				slog.String("sink", sink.Name()),
				slog.String("event_id", ev.ID),
				slog.Duration("wait", d),
				slog.Any("err", err))
		}

		policy := backoff.BackOff(&stopOnClose{BackOff: p.newBackOff(), p: p})
		if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
			p.logger.ErrorContext(ctx, "sink write failed, giving up",
				slog.String("sink", sink.Name()),
				slog.String("event_id", ev.ID),
				slog.String("type", string(ev.Type)),
				slog.Any("err", err))
		}
	}
}

// stopOnClose ends retries once the publisher is closed, so a sink that is
// down cannot hold up shutdown.
type stopOnClose struct {
	backoff.BackOff
	p *Publisher
}

func (b *stopOnClose) NextBackOff() time.Duration {
	if b.p.isClosed() {
		return backoff.Stop
	}
	return b.BackOff.NextBackOff()
}
