// Package service orchestrates the engine components around the record store:
// lifecycle transitions, ledger appends, compliance rollups, and the derived
// history view. Handlers stay thin; invariants live here and below.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dppengine/internal/compliance"
	"dppengine/internal/lifecycle"
	"dppengine/internal/passport"
	"dppengine/internal/platform/metrics"
	"dppengine/internal/provenance"
	"dppengine/internal/provenance/stream"
	"dppengine/internal/store"
	"dppengine/pkg/dpperrors"
)

// Service wires the record store to the pure engine components.
type Service struct {
	store   store.RecordStore
	ledger  *provenance.Ledger
	stream  *stream.Publisher
	cache   *compliance.CachedAggregator
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithStream mirrors ledger appends onto the event stream.
func WithStream(pub *stream.Publisher) Option {
	return func(s *Service) { s.stream = pub }
}

// WithComplianceCache fronts summary reads with the given cache.
func WithComplianceCache(cache *compliance.CachedAggregator) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the clock used to stamp lastUpdated. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides certification id generation for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New constructs a Service.
func New(st store.RecordStore, ledger *provenance.Ledger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ledger: ledger,
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (passport.Record, error) {
	return s.store.Get(ctx, id)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status string
	Stage  lifecycle.Stage
	Query  string
}

// List returns records matching the filter, sorted by id.
func (s *Service) List(ctx context.Context, filter Filter) ([]passport.Record, error) {
	return s.store.Find(ctx, func(r passport.Record) bool {
		if filter.Status != "" {
			status, _ := r.Metadata["status"].(string)
			if !strings.EqualFold(status, filter.Status) {
				return false
			}
		}
		if filter.Stage != "" && r.LifecycleStage != filter.Stage {
			return false
		}
		if filter.Query != "" && !matchesQuery(r, filter.Query) {
			return false
		}
		return true
	})
}

func matchesQuery(r passport.Record, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(r.ID), query) {
		return true
	}
	for _, key := range []string{"name", "description", "category"} {
		if v, ok := r.Metadata[key].(string); ok && strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// Transition moves a record's lifecycle stage through the state machine. The
// read-validate-write sequence runs inside the store's per-record update so
// concurrent transitions on the same record serialize.
func (s *Service) Transition(ctx context.Context, id string, next lifecycle.Stage) (passport.Record, error) {
	updated, err := s.store.Update(ctx, id, func(r *passport.Record) error {
		machine, err := lifecycle.NewMachine(r.LifecycleStage)
		if err != nil {
			return err
		}
		if err := machine.Transition(next); err != nil {
			return err
		}
		r.LifecycleStage = machine.Current()
		r.Touch(s.clock())
		return nil
	})
	if err != nil {
		if dpperrors.Is(err, dpperrors.CodeInvalidTransition) {
			s.metrics.IncTransitionDenied()
		}
		return passport.Record{}, err
	}
	s.metrics.IncTransitionApplied(string(next))
	return updated, nil
}

// AddCustodyStep appends a chain-of-custody event to the record's ledger.
func (s *Service) AddCustodyStep(ctx context.Context, id string, step provenance.CustodyStep) (passport.ProvenanceEvent, error) {
	return s.appendEvent(ctx, id, func(r *passport.Record) (passport.ProvenanceEvent, error) {
		return s.ledger.AppendCustodyStep(r, step)
	})
}

// TransferOwnership appends an ownership-transfer event.
func (s *Service) TransferOwnership(ctx context.Context, id string, step provenance.CustodyStep) (passport.ProvenanceEvent, error) {
	return s.appendEvent(ctx, id, func(r *passport.Record) (passport.ProvenanceEvent, error) {
		return s.ledger.AppendOwnershipTransfer(r, step)
	})
}

// AddLifecycleEvent appends a lifecycle event.
func (s *Service) AddLifecycleEvent(ctx context.Context, id string, ev provenance.LifecycleEvent) (passport.ProvenanceEvent, error) {
	return s.appendEvent(ctx, id, func(r *passport.Record) (passport.ProvenanceEvent, error) {
		return s.ledger.AppendLifecycleEvent(r, ev)
	})
}

func (s *Service) appendEvent(ctx context.Context, id string, appendFn func(*passport.Record) (passport.ProvenanceEvent, error)) (passport.ProvenanceEvent, error) {
	var event passport.ProvenanceEvent
	_, err := s.store.Update(ctx, id, func(r *passport.Record) error {
		ev, err := appendFn(r)
		if err != nil {
			return err
		}
		event = ev
		r.Touch(s.clock())
		return nil
	})
	if err != nil {
		return passport.ProvenanceEvent{}, err
	}
	s.metrics.IncLedgerAppend(event.StepName)
	s.stream.Enqueue(id, event)
	return event, nil
}

// Certification is the caller-supplied payload for a document addition.
type Certification struct {
	Name        string
	Issuer      string
	DocumentRef string
}

// AddCertification attaches a certification/document reference to the record.
func (s *Service) AddCertification(ctx context.Context, id string, cert Certification) (passport.Certification, error) {
	if strings.TrimSpace(cert.Name) == "" {
		return passport.Certification{}, dpperrors.New(dpperrors.CodeValidation, "certification name is required")
	}
	added := passport.Certification{
		ID:          s.newID(),
		Name:        cert.Name,
		Issuer:      cert.Issuer,
		DocumentRef: cert.DocumentRef,
		AddedAt:     s.clock(),
	}
	_, err := s.store.Update(ctx, id, func(r *passport.Record) error {
		r.Certifications = append(r.Certifications, added)
		r.Touch(added.AddedAt)
		return nil
	})
	if err != nil {
		return passport.Certification{}, err
	}
	return added, nil
}

// History returns the derived audit trail, newest first.
func (s *Service) History(ctx context.Context, id string) ([]provenance.HistoryEntry, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return provenance.History(record), nil
}

// ComplianceSummary is the per-regulation detail plus the aggregate rollup.
type ComplianceSummary struct {
	Overall compliance.Status                   `json:"overall"`
	Entries map[string]passport.ComplianceEntry `json:"entries"`
}

// Compliance returns the record's compliance summary, cached when a cache is
// wired.
func (s *Service) Compliance(ctx context.Context, id string) (ComplianceSummary, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return ComplianceSummary{}, err
	}
	summary := ComplianceSummary{Entries: record.Compliance}
	if s.cache != nil {
		summary.Overall = s.cache.Aggregate(ctx, id, record.Compliance)
	} else {
		summary.Overall = compliance.Aggregate(record.Compliance)
	}
	return summary, nil
}

// InvalidateCompliance drops the cached rollup for a record. Mutating paths
// outside this service (the batch mutator) call it after a successful write.
func (s *Service) InvalidateCompliance(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}
