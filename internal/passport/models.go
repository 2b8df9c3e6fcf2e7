// Package passport defines the canonical Digital Product Passport record and
// its constituent types. All other engine components operate on records fetched
// from and written back to the record store.
package passport

import (
	"time"

	"dppengine/internal/lifecycle"
)

// ComplianceEntry is one regulation's sub-status on a record. Entries are
// written by external compliance-sync collaborators; the engine only reads them.
type ComplianceEntry struct {
	Status      string    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`
	ID          string    `json:"id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// ProvenanceEvent is one append-only custody/lifecycle/ownership entry.
// Timestamp is the caller-supplied ISO-8601 string and is the ordering key for
// audit views; storage order is insertion order.
type ProvenanceEvent struct {
	ID              string         `json:"id"`
	StepName        string         `json:"stepName"`
	ActorID         string         `json:"actorId"`
	Timestamp       string         `json:"timestamp"`
	Location        string         `json:"location,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	TransactionHash string         `json:"transactionHash,omitempty"`
}

// Certification is a document/certificate attached to a record. Each addition
// surfaces as its own history entry.
type Certification struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Issuer      string    `json:"issuer,omitempty"`
	DocumentRef string    `json:"documentRef,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Record is the Digital Product Passport. ID and CreatedAt are immutable after
// creation; LifecycleStage moves only through the lifecycle machine; Provenance
// grows only through the ledger.
type Record struct {
	ID             string                     `json:"id"`
	LifecycleStage lifecycle.Stage            `json:"lifecycleStage"`
	Metadata       map[string]any             `json:"metadata,omitempty"`
	ProductDetails map[string]any             `json:"productDetails,omitempty"`
	Compliance     map[string]ComplianceEntry `json:"complianceEntries,omitempty"`
	Certifications []Certification            `json:"certifications,omitempty"`
	Provenance     []ProvenanceEvent          `json:"provenance"`
	CreatedAt      time.Time                  `json:"createdAt"`
	LastUpdated    time.Time                  `json:"lastUpdated"`
}

// Touch stamps LastUpdated. Every mutation path calls this exactly once before
// writing the record back.
func (r *Record) Touch(now time.Time) {
	r.LastUpdated = now
}

// Clone returns a deep copy so callers can never alias live store state.
func (r Record) Clone() Record {
	out := r
	out.Metadata = cloneMap(r.Metadata)
	out.ProductDetails = cloneMap(r.ProductDetails)
	if r.Compliance != nil {
		out.Compliance = make(map[string]ComplianceEntry, len(r.Compliance))
		for k, v := range r.Compliance {
			out.Compliance[k] = v
		}
	}
	if r.Certifications != nil {
		out.Certifications = append([]Certification(nil), r.Certifications...)
	}
	if r.Provenance != nil {
		out.Provenance = make([]ProvenanceEvent, len(r.Provenance))
		for i, ev := range r.Provenance {
			ev.Details = cloneMap(ev.Details)
			out.Provenance[i] = ev
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
