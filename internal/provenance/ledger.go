// Package provenance appends custody, ownership, and lifecycle events to a
// record's ledger and derives the audit-trail view. Appends are the only way
// entries enter a record's provenance; nothing here ever edits or removes a
// stored entry.
package provenance

import (
	"strings"

	"github.com/google/uuid"

	"dppengine/internal/passport"
	"dppengine/pkg/dpperrors"
)

// Step classifications written by the ledger.
const (
	StepCustodyUpdate     = "Custody Update"
	StepOwnershipTransfer = "Ownership Transfer"
)

// Ledger constructs and appends provenance events.
type Ledger struct {
	newID func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator overrides event id generation for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// NewLedger returns a ledger generating uuid event ids.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CustodyStep is the caller-supplied payload for a chain-of-custody append.
// Timestamp is the caller's ISO-8601 time, not server time: it is the ordering
// key for history views.
type CustodyStep struct {
	ActorID         string
	Timestamp       string
	Location        string
	TransactionHash string
}

// AppendCustodyStep appends a "Custody Update" event. ActorID and Timestamp
// are required.
func (l *Ledger) AppendCustodyStep(record *passport.Record, step CustodyStep) (passport.ProvenanceEvent, error) {
	return l.appendStep(record, StepCustodyUpdate, step)
}

// AppendOwnershipTransfer appends an "Ownership Transfer" event with the same
// requirements as a custody step.
func (l *Ledger) AppendOwnershipTransfer(record *passport.Record, step CustodyStep) (passport.ProvenanceEvent, error) {
	return l.appendStep(record, StepOwnershipTransfer, step)
}

func (l *Ledger) appendStep(record *passport.Record, stepName string, step CustodyStep) (passport.ProvenanceEvent, error) {
	if strings.TrimSpace(step.ActorID) == "" {
		return passport.ProvenanceEvent{}, dpperrors.New(dpperrors.CodeValidation, "actorId is required")
	}
	if strings.TrimSpace(step.Timestamp) == "" {
		return passport.ProvenanceEvent{}, dpperrors.New(dpperrors.CodeValidation, "timestamp is required")
	}
	event := passport.ProvenanceEvent{
		ID:              l.newID(),
		StepName:        stepName,
		ActorID:         step.ActorID,
		Timestamp:       step.Timestamp,
		Location:        step.Location,
		TransactionHash: step.TransactionHash,
	}
	record.Provenance = append(record.Provenance, event)
	return event, nil
}

// LifecycleEvent is the caller-supplied payload for a lifecycle-event append.
type LifecycleEvent struct {
	EventType        string
	Timestamp        string
	Location         string
	Details          map[string]any
	ResponsibleParty string
}

// AppendLifecycleEvent appends a lifecycle event classified by its EventType,
// which must be non-empty.
func (l *Ledger) AppendLifecycleEvent(record *passport.Record, ev LifecycleEvent) (passport.ProvenanceEvent, error) {
	if strings.TrimSpace(ev.EventType) == "" {
		return passport.ProvenanceEvent{}, dpperrors.New(dpperrors.CodeValidation, "eventType is required")
	}
	event := passport.ProvenanceEvent{
		ID:        l.newID(),
		StepName:  ev.EventType,
		ActorID:   ev.ResponsibleParty,
		Timestamp: ev.Timestamp,
		Location:  ev.Location,
		Details:   ev.Details,
	}
	record.Provenance = append(record.Provenance, event)
	return event, nil
}
