// Package batch applies partial updates to many records at once. Atomicity is
// per item, never per batch: a failed item is reported and skipped while the
// rest of the batch proceeds, and successes already written are not rolled
// back. Bulk tooling over a best-effort store, by contract.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dppengine/internal/passport"
	"dppengine/internal/platform/metrics"
	"dppengine/internal/store"
	"dppengine/pkg/dpperrors"
)

// Item is one partial update. Only the provided sections are merged; a nil
// section leaves the record's section untouched.
type Item struct {
	ID             string                              `json:"id"`
	Metadata       map[string]any                      `json:"metadata,omitempty"`
	ProductDetails map[string]any                      `json:"productDetails,omitempty"`
	Compliance     map[string]passport.ComplianceEntry `json:"compliance,omitempty"`
}

// Item statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ItemResult reports one item's outcome.
type ItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result is the per-item report plus aggregate counts.
type Result struct {
	Items               []ItemResult `json:"items"`
	TotalProcessed      int          `json:"totalProcessed"`
	SuccessfullyUpdated int          `json:"successfullyUpdated"`
	FailedUpdates       int          `json:"failedUpdates"`
}

// Mutator applies batches against the record store.
type Mutator struct {
	store   store.RecordStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithClock sets the clock used to stamp lastUpdated. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Mutator) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Mutator) { m.metrics = mx }
}

// New constructs a Mutator.
func New(s store.RecordStore, logger *slog.Logger, opts ...Option) *Mutator {
	m := &Mutator{store: s, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var tracer = otel.Tracer("dppengine/internal/batch")

// Apply processes the items in order. It never returns an error: every
// failure is captured on its item and the loop continues.
func (m *Mutator) Apply(ctx context.Context, items []Item) Result {
	ctx, span := tracer.Start(ctx, "batch.Apply")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(items)))

	result := Result{Items: make([]ItemResult, 0, len(items))}
	for _, item := range items {
		result.TotalProcessed++
		if err := m.applyOne(ctx, item); err != nil {
			result.FailedUpdates++
			result.Items = append(result.Items, ItemResult{ID: item.ID, Status: StatusFailed, Error: itemError(err)})
			m.metrics.IncBatchItem(StatusFailed)
			if m.logger != nil {
				m.logger.WarnContext(ctx, "batch item failed", "record_id", item.ID, "error", err)
			}
			continue
		}
		result.SuccessfullyUpdated++
		result.Items = append(result.Items, ItemResult{ID: item.ID, Status: StatusSuccess})
		m.metrics.IncBatchItem(StatusSuccess)
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", result.SuccessfullyUpdated),
		attribute.Int("batch.failed", result.FailedUpdates),
	)
	return result
}

func (m *Mutator) applyOne(ctx context.Context, item Item) error {
	if item.ID == "" {
		return dpperrors.New(dpperrors.CodeValidation, "missing id")
	}
	_, err := m.store.Update(ctx, item.ID, func(record *passport.Record) error {
		mergeSections(record, item)
		record.Touch(m.clock())
		return nil
	})
	return err
}

// mergeSections shallow-merges each provided section key-by-key into the
// record. Keys absent from the item survive unchanged.
func mergeSections(record *passport.Record, item Item) {
	if len(item.Metadata) > 0 {
		if record.Metadata == nil {
			record.Metadata = make(map[string]any, len(item.Metadata))
		}
		for k, v := range item.Metadata {
			record.Metadata[k] = v
		}
	}
	if len(item.ProductDetails) > 0 {
		if record.ProductDetails == nil {
			record.ProductDetails = make(map[string]any, len(item.ProductDetails))
		}
		for k, v := range item.ProductDetails {
			record.ProductDetails[k] = v
		}
	}
	if len(item.Compliance) > 0 {
		if record.Compliance == nil {
			record.Compliance = make(map[string]passport.ComplianceEntry, len(item.Compliance))
		}
		for k, v := range item.Compliance {
			record.Compliance[k] = v
		}
	}
}

// itemError keeps per-item messages terse; the typed prefix is noise in a
// result row.
func itemError(err error) string {
	var e *dpperrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
