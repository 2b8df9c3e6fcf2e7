package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Registers the postgres driver for database/sql.
	_ "github.com/lib/pq"

	"dppengine/internal/passport"
	"dppengine/pkg/dpperrors"
)

// PostgresRecordStore persists records as jsonb documents. Per-record
// atomicity for Update comes from a row lock (SELECT ... FOR UPDATE) inside a
// transaction, matching the in-memory store's per-id mutex semantics.
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore wraps an open database handle.
func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// Migrate creates the backing table when missing. Idempotent.
func (s *PostgresRecordStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS dpp_records (
			id           TEXT PRIMARY KEY,
			doc          JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return storageErr("migrate dpp_records", err)
	}
	return nil
}

func (s *PostgresRecordStore) Get(ctx context.Context, id string) (passport.Record, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM dpp_records WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return passport.Record{}, ErrNotFound
		}
		return passport.Record{}, storageErr("get record", err)
	}
	return decodeRecord(doc)
}

func (s *PostgresRecordStore) Upsert(ctx context.Context, record passport.Record) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return storageErr("encode record", err)
	}
	query := `
		INSERT INTO dpp_records (id, doc, created_at, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			last_updated = EXCLUDED.last_updated
	`
	if _, err := s.db.ExecContext(ctx, query, record.ID, doc, record.CreatedAt, record.LastUpdated); err != nil {
		return storageErr("upsert record", err)
	}
	return nil
}

func (s *PostgresRecordStore) Find(ctx context.Context, predicate func(passport.Record) bool) ([]passport.Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []passport.Record
	for _, record := range all {
		if predicate(record) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *PostgresRecordStore) List(ctx context.Context) ([]passport.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM dpp_records ORDER BY id`)
	if err != nil {
		return nil, storageErr("list records", err)
	}
	defer rows.Close()

	out := []passport.Record{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, storageErr("scan record", err)
		}
		record, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list records", err)
	}
	return out, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, id string, mutate func(*passport.Record) error) (passport.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return passport.Record{}, storageErr("begin update", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM dpp_records WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return passport.Record{}, ErrNotFound
		}
		return passport.Record{}, storageErr("lock record", err)
	}

	record, err := decodeRecord(doc)
	if err != nil {
		return passport.Record{}, err
	}
	if err := mutate(&record); err != nil {
		return passport.Record{}, err
	}
	record.ID = id

	updated, err := json.Marshal(record)
	if err != nil {
		return passport.Record{}, storageErr("encode record", err)
	}
	query := `UPDATE dpp_records SET doc = $2, last_updated = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, updated, record.LastUpdated); err != nil {
		return passport.Record{}, storageErr("write record", err)
	}
	if err := tx.Commit(); err != nil {
		return passport.Record{}, storageErr("commit update", err)
	}
	return record, nil
}

func decodeRecord(doc []byte) (passport.Record, error) {
	var record passport.Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return passport.Record{}, storageErr("decode record", err)
	}
	return record, nil
}

func storageErr(op string, err error) error {
	return dpperrors.Wrap(dpperrors.CodeStorage, fmt.Sprintf("postgres: %s", op), err)
}
