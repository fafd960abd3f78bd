package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dppapi/internal/model"
	"dppapi/internal/record"
)

// PassportPostgres is a PostgreSQL implementation of record.PassportStore.
// The document collection lives in a JSONB column and the revision column
// guards every write, so the conditional-write primitive is a single UPDATE.
type PassportPostgres struct {
	db *sql.DB
}

// NewPassportPostgres creates a new PassportPostgres store.
func NewPassportPostgres(db *sql.DB) *PassportPostgres {
	return &PassportPostgres{db: db}
}

var _ record.PassportStore = (*PassportPostgres)(nil)

// Create inserts an empty passport record at revision 1.
func (r *PassportPostgres) Create(ctx context.Context, id, kind string) error {
	const q = `
		INSERT INTO passports (id, kind, documents, aggregate_status, revision)
		VALUES ($1, $2, '{}'::jsonb, $3, 1)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q, id, kind, model.AggregateNoDocuments)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", record.ErrAlreadyExists, id)
	}
	return nil
}

// Get returns the current snapshot of a record, including its revision.
func (r *PassportPostgres) Get(ctx context.Context, id string) (*record.Snapshot, error) {
	const q = `
		SELECT id, kind, documents, aggregate_status, revision, created_at, updated_at
		FROM passports
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var s record.Snapshot
	if err := row.Scan(
		&s.ID,
		&s.Kind,
		&s.RawDocuments,
		&s.AggregateStatus,
		&s.Revision,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}
		return nil, err
	}
	return &s, nil
}

// CompareAndSwap writes the blob iff the stored revision matches expected.
func (r *PassportPostgres) CompareAndSwap(ctx context.Context, id string, rawDocuments []byte, aggregate model.AggregateStatus, expected record.Revision) (record.Revision, error) {
	const q = `
		UPDATE passports
		SET documents = $2, aggregate_status = $3, revision = revision + 1, updated_at = now()
		WHERE id = $1 AND revision = $4
		RETURNING revision
	`
	var rev record.Revision
	err := r.db.QueryRowContext(ctx, q, id, rawDocuments, aggregate, expected).Scan(&rev)
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Zero rows is either a lost race or a missing record; tell them apart so
	// the caller does not retry against a record that no longer exists.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM passports WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", record.ErrNotFound, id)
	}
	return 0, fmt.Errorf("%w: %s at revision %d", record.ErrRevisionConflict, id, expected)
}
