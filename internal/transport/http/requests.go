package httptransport

import (
	"dppengine/internal/batch"
)

// TransitionRequest asks for a lifecycle stage change.
type TransitionRequest struct {
	TargetStage string `json:"targetStage"`
}

// LifecycleEventRequest records a lifecycle event on the ledger.
type LifecycleEventRequest struct {
	EventType        string         `json:"eventType"`
	Timestamp        string         `json:"timestamp"`
	Location         string         `json:"location,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	ResponsibleParty string         `json:"responsibleParty,omitempty"`
}

// CustodyUpdate is a chain-of-custody step supplied by the caller.
type CustodyUpdate struct {
	ActorID         string `json:"actorId"`
	Timestamp       string `json:"timestamp"`
	Location        string `json:"location,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// DocumentReference attaches a certification or document to a record.
type DocumentReference struct {
	Name        string `json:"name"`
	Issuer      string `json:"issuer,omitempty"`
	DocumentRef string `json:"documentRef,omitempty"`
}

// UpdateRequest is the tagged-union body of PATCH /dpps/{id}. Exactly one arm
// must be set.
type UpdateRequest struct {
	DocumentReference    *DocumentReference `json:"documentReference,omitempty"`
	ChainOfCustodyUpdate *CustodyUpdate     `json:"chainOfCustodyUpdate,omitempty"`
}

// BatchRequest is the body of PATCH /dpps.
type BatchRequest struct {
	Items []batch.Item `json:"items"`
}
