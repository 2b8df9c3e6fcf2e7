// Package stream mirrors provenance ledger appends onto an event stream so
// downstream consumers (supply-chain partners, analytics) can follow custody
// in near real time. The stream is fail-open: the record store stays the
// source of truth and a broker outage never fails a ledger append.
package stream

import (
	"context"
	"log/slog"

	"dppengine/internal/passport"
	"dppengine/internal/platform/metrics"
)

// Message is one published ledger append.
type Message struct {
	RecordID string                   `json:"recordId"`
	Event    passport.ProvenanceEvent `json:"event"`
}

// Sink delivers messages to the underlying transport.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Close()
}

// Publisher decouples mutation paths from the sink through a bounded inbox.
// Enqueue never blocks; when the inbox is full the message is dropped and
// counted.
type Publisher struct {
	sink    Sink
	inbox   chan Message
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithInboxSize overrides the default inbox capacity.
func WithInboxSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Message, n)
		}
	}
}

// NewPublisher creates a publisher over the given sink.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:  sink,
		inbox: make(chan Message, 256),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue hands a ledger append to the stream. Non-blocking.
func (p *Publisher) Enqueue(recordID string, event passport.ProvenanceEvent) {
	if p == nil {
		return
	}
	select {
	case p.inbox <- Message{RecordID: recordID, Event: event}:
	default:
		p.metrics.IncStreamDropped()
		if p.logger != nil {
			p.logger.Warn("provenance stream inbox full, dropping event",
				"record_id", recordID,
				"event_id", event.ID,
			)
		}
	}
}

// Run consumes the inbox and publishes until ctx is done. Delivery failures
// are logged and skipped; the loop never stops on a bad message.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.sink.Close()
			return ctx.Err()
		case msg := <-p.inbox:
			if err := p.sink.Publish(ctx, msg); err != nil {
				if p.logger != nil {
					p.logger.ErrorContext(ctx, "provenance stream publish failed",
						"record_id", msg.RecordID,
						"event_id", msg.Event.ID,
						"error", err,
					)
				}
				continue
			}
			p.metrics.IncStreamPublished()
		}
	}
}
