package httptransport

import (
	"dppengine/internal/passport"
	"dppengine/internal/provenance"
)

// ListResponse wraps a record listing.
type ListResponse struct {
	Items []passport.Record `json:"items"`
	Count int               `json:"count"`
}

// HistoryResponse wraps a record's derived audit trail, newest first.
type HistoryResponse struct {
	ID      string                    `json:"id"`
	Entries []provenance.HistoryEntry `json:"entries"`
	Count   int                       `json:"count"`
}
