package record

import (
	"context"
	"errors"
	"time"

	"dppapi/internal/model"
)

// Package record contains the entity record store abstraction: versioned
// read and conditional write of the passport records that embed a document
// collection blob. Implementations live in subpackages (postgres, memory).

var (
	// ErrNotFound means no passport record exists for the id.
	ErrNotFound = errors.New("passport record not found")

	// ErrAlreadyExists means a record with the id already exists.
	ErrAlreadyExists = errors.New("passport record already exists")

	// ErrRevisionConflict means a conditional write lost the race: the stored
	// revision no longer matches the one the caller read.
	ErrRevisionConflict = errors.New("passport revision conflict")
)

// Revision is the optimistic-concurrency token on a passport record. The
// store advances it on every successful write; it is not business data.
type Revision int64

// Snapshot is one versioned read of a passport record. RawDocuments is the
// persisted collection blob exactly as stored; decoding it is the engine's
// job, which keeps the store shape-agnostic while legacy shapes still exist.
type Snapshot struct {
	ID              string
	Kind            string
	RawDocuments    []byte
	AggregateStatus model.AggregateStatus
	Revision        Revision
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PassportStore defines versioned access to passport records. No business
// logic here — strictly persistence operations.
//
// A backend without a native conditional-write primitive must emulate
// CompareAndSwap by re-reading and comparing revisions under an exclusive
// per-record lock held for the duration of the write.
type PassportStore interface {
	// Create inserts an empty passport record for the entity at revision 1.
	// Kind distinguishes products from companies; the engine treats both
	// identically.
	Create(ctx context.Context, id, kind string) error

	// Get returns the current snapshot of a record, including its revision.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// CompareAndSwap writes the documents blob and derived aggregate status
	// iff the stored revision still equals expected, and returns the new
	// revision. A lost race is ErrRevisionConflict.
	CompareAndSwap(ctx context.Context, id string, rawDocuments []byte, aggregate model.AggregateStatus, expected Revision) (Revision, error)
}
