package provenance

import (
	"sort"
	"time"

	"dppengine/internal/passport"
)

// History entry types synthesized alongside ledger events.
const (
	EntryCreated       = "Created"
	EntryCertification = "Certification Added"
	EntryGeneralUpdate = "General Update"
)

// generalUpdateSlack is how much newer lastUpdated must be than the latest
// derived entry before a synthetic "General Update" entry is emitted. Keeps
// trivial touches from polluting the trail.
const generalUpdateSlack = 60 * time.Second

// HistoryEntry is one row of the derived audit trail.
type HistoryEntry struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`
	Location  string         `json:"location,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	at time.Time
}

// History derives the audit trail for a record: a synthetic Created entry, one
// entry per provenance event, one per certification, and a synthetic General
// Update when lastUpdated outruns everything else. The result is sorted by
// timestamp descending with a stable insertion-order tie-break. This is a
// presentation-layer derivation; the stored ledger is never touched.
func History(record passport.Record) []HistoryEntry {
	entries := []HistoryEntry{{
		Type:      EntryCreated,
		Timestamp: record.CreatedAt.UTC().Format(time.RFC3339),
		at:        record.CreatedAt,
	}}

	for _, ev := range record.Provenance {
		entries = append(entries, HistoryEntry{
			Type:      ev.StepName,
			Timestamp: ev.Timestamp,
			Actor:     ev.ActorID,
			Location:  ev.Location,
			Details:   ev.Details,
			at:        parseEventTime(ev.Timestamp),
		})
	}

	for _, cert := range record.Certifications {
		entries = append(entries, HistoryEntry{
			Type:      EntryCertification,
			Timestamp: cert.AddedAt.UTC().Format(time.RFC3339),
			Actor:     cert.Issuer,
			Details:   map[string]any{"name": cert.Name},
			at:        cert.AddedAt,
		})
	}

	latest := entries[0].at
	for _, e := range entries[1:] {
		if e.at.After(latest) {
			latest = e.at
		}
	}
	if record.LastUpdated.After(latest.Add(generalUpdateSlack)) {
		entries = append(entries, HistoryEntry{
			Type:      EntryGeneralUpdate,
			Timestamp: record.LastUpdated.UTC().Format(time.RFC3339),
			at:        record.LastUpdated,
		})
	}

	// Stable sort keeps insertion order among equal timestamps.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at.After(entries[j].at)
	})
	return entries
}

// parseEventTime accepts the RFC3339 forms callers actually send. Unparseable
// timestamps sort as oldest rather than failing the whole derivation.
func parseEventTime(ts string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
