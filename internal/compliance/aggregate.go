// Package compliance rolls a record's per-regulation sub-statuses up into one
// overall status. Aggregation is a pure function; callers decide where to
// cache the result.
package compliance

import (
	"strings"

	"dppengine/internal/passport"
)

// Status is the derived overall compliance status of a record.
type Status string

const (
	StatusNotApplicable  Status = "N/A"
	StatusNonCompliant   Status = "Non-Compliant"
	StatusPendingReview  Status = "Pending Review"
	StatusFullyCompliant Status = "Fully Compliant"
	StatusReviewNeeded   Status = "Review Needed"
)

// The classification vocabularies are literal lookup sets so new regulation
// status strings can be added without touching control flow. Matching is
// case-insensitive.
var (
	compliantStatuses = toSet(
		"compliant",
		"registered",
		"conformant",
		"synced successfully",
	)
	pendingStatuses = toSet(
		"pending",
		"pending_review",
		"pending_assessment",
		"pending_verification",
		"in progress",
		"data incomplete",
	)
	nonCompliantStatuses = toSet(
		"non_compliant",
		"non_conformant",
		"error",
		"data mismatch",
		"product not found in eprel",
	)
)

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Aggregate derives the overall status from a record's compliance entries.
// Resolution priority: any non-compliant entry dominates, then any pending
// entry, then fully compliant only when every entry classified as compliant.
// Entries whose status matches no vocabulary neither help nor hurt, but their
// presence blocks Fully Compliant.
func Aggregate(entries map[string]passport.ComplianceEntry) Status {
	if len(entries) == 0 {
		return StatusNotApplicable
	}

	var compliant, pending, nonCompliant int
	for _, entry := range entries {
		status := strings.ToLower(strings.TrimSpace(entry.Status))
		switch {
		case member(nonCompliantStatuses, status):
			nonCompliant++
		case member(pendingStatuses, status):
			pending++
		case member(compliantStatuses, status):
			compliant++
		}
	}

	switch {
	case nonCompliant > 0:
		return StatusNonCompliant
	case pending > 0:
		return StatusPendingReview
	case compliant == len(entries) && compliant > 0:
		return StatusFullyCompliant
	default:
		return StatusReviewNeeded
	}
}

func member(set map[string]struct{}, status string) bool {
	_, ok := set[status]
	return ok
}
