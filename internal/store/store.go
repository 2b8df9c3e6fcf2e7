// Package store owns the authoritative id -> record collection. All other
// engine components read and write records through it.
package store

import (
	"context"

	"dppengine/internal/passport"
	"dppengine/pkg/dpperrors"
)

// ErrNotFound keeps storage-specific 404s consistent across in-memory and
// postgres implementations.
var ErrNotFound = dpperrors.New(dpperrors.CodeNotFound, "record not found")

// RecordStore is interface-driven to keep the engine testable and to allow
// swapping in-memory or external persistence without rewiring business code.
//
// Update is the only read-modify-write primitive: implementations must make
// the mutate-and-write sequence atomic per record id so concurrent callers
// never observe torn writes. Upsert stamps nothing automatically; callers own
// lastUpdated.
type RecordStore interface {
	Get(ctx context.Context, id string) (passport.Record, error)
	Upsert(ctx context.Context, record passport.Record) error
	Find(ctx context.Context, predicate func(passport.Record) bool) ([]passport.Record, error)
	List(ctx context.Context) ([]passport.Record, error)
	Update(ctx context.Context, id string, mutate func(*passport.Record) error) (passport.Record, error)
}
