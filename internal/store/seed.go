package store

import (
	"context"
	"time"

	"dppengine/internal/lifecycle"
	"dppengine/internal/passport"
)

// Seed loads the demo passports used by the dev server and the test suites.
func Seed(ctx context.Context, s RecordStore, now time.Time) error {
	for _, record := range SeedRecords(now) {
		if err := s.Upsert(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// SeedRecords returns the demo fixtures. DPP001 is the canonical in-use
// battery passport exercised by most scenarios.
func SeedRecords(now time.Time) []passport.Record {
	created := now.Add(-90 * 24 * time.Hour)
	return []passport.Record{
		{
			ID:             "DPP001",
			LifecycleStage: lifecycle.StageInUse,
			Metadata: map[string]any{
				"name":     "EV Battery Module X1",
				"category": "battery",
				"status":   "active",
			},
			ProductDetails: map[string]any{
				"manufacturer": "Nordcell GmbH",
				"model":        "X1-48V",
				"batch":        "B-2207",
			},
			Compliance: map[string]passport.ComplianceEntry{
				"eprel":   {Status: "registered", LastChecked: now.Add(-24 * time.Hour)},
				"battery": {Status: "pending_review", LastChecked: now.Add(-2 * time.Hour)},
			},
			Provenance: []passport.ProvenanceEvent{
				{
					ID:        "seed-ev-1",
					StepName:  "Custody Update",
					ActorID:   "did:example:factory-7",
					Timestamp: created.Add(24 * time.Hour).UTC().Format(time.RFC3339),
					Location:  "Rotterdam",
				},
			},
			CreatedAt:   created,
			LastUpdated: now.Add(-2 * time.Hour),
		},
		{
			ID:             "DPP002",
			LifecycleStage: lifecycle.StageDistribution,
			Metadata: map[string]any{
				"name":     "Smart Thermostat T3",
				"category": "electronics",
				"status":   "active",
			},
			ProductDetails: map[string]any{
				"manufacturer": "Heimdal Oy",
				"model":        "T3",
			},
			Compliance: map[string]passport.ComplianceEntry{
				"rohs": {Status: "compliant", LastChecked: now.Add(-48 * time.Hour)},
			},
			CreatedAt:   created.Add(10 * 24 * time.Hour),
			LastUpdated: now.Add(-48 * time.Hour),
		},
		{
			ID:             "DPP003",
			LifecycleStage: lifecycle.StageDesign,
			Metadata: map[string]any{
				"name":     "Recycled Textile Jacket",
				"category": "textile",
				"status":   "draft",
			},
			CreatedAt:   now.Add(-time.Hour),
			LastUpdated: now.Add(-time.Hour),
		},
	}
}
