package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dppapi/internal/model"
	"dppapi/internal/record"
)

// Store is an in-memory record.PassportStore with real compare-and-swap
// semantics. It backs unit tests and the concurrency tests, where testify
// mocks cannot express a genuine lost race between interleaved cycles.
type Store struct {
	mu   sync.Mutex
	recs map[string]*record.Snapshot

	// BeforeSwap, when set, runs inside CompareAndSwap before the revision
	// check, outside the lock window of the caller's read. Tests use it to
	// force interleavings.
	BeforeSwap func(id string)
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{recs: make(map[string]*record.Snapshot)}
}

var _ record.PassportStore = (*Store)(nil)

// Create inserts an empty record at revision 1.
func (s *Store) Create(_ context.Context, id, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; ok {
		return fmt.Errorf("%w: %s", record.ErrAlreadyExists, id)
	}
	now := time.Now().UTC()
	s.recs[id] = &record.Snapshot{
		ID:              id,
		Kind:            kind,
		RawDocuments:    []byte(`{}`),
		AggregateStatus: model.AggregateNoDocuments,
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}

// Get returns a copy of the current snapshot.
func (s *Store) Get(_ context.Context, id string) (*record.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", record.ErrNotFound, id)
	}
	cp := *rec
	cp.RawDocuments = append([]byte(nil), rec.RawDocuments...)
	return &cp, nil
}

// CompareAndSwap writes iff the stored revision equals expected.
func (s *Store) CompareAndSwap(_ context.Context, id string, rawDocuments []byte, aggregate model.AggregateStatus, expected record.Revision) (record.Revision, error) {
	if s.BeforeSwap != nil {
		s.BeforeSwap(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", record.ErrNotFound, id)
	}
	if rec.Revision != expected {
		return 0, fmt.Errorf("%w: %s at revision %d", record.ErrRevisionConflict, id, expected)
	}
	rec.RawDocuments = append([]byte(nil), rawDocuments...)
	rec.AggregateStatus = aggregate
	rec.Revision++
	rec.UpdatedAt = time.Now().UTC()
	return rec.Revision, nil
}
