package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"dppapi/internal/cache"
	"dppapi/internal/docstore"
	"dppapi/internal/events"
	"dppapi/internal/model"
	"dppapi/internal/record"
)

var (
	ErrEntityIDRequired = errors.New("entity id is required")
	ErrTypeRequired     = errors.New("document type is required")
	ErrNameRequired     = errors.New("document name is required")
	ErrInvalidKind      = errors.New("kind must be product or company")

	// ErrConcurrentModification means the optimistic-concurrency retry budget
	// was exhausted. Transient: the caller may retry the whole operation.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// DocumentDraft is the caller's description of a new upload. The engine
// assigns the id and the initial pending status.
type DocumentDraft struct {
	Type       model.DocumentType
	Name       string
	URL        string
	Version    string
	ValidUntil *time.Time
	FileSize   int64
}

// ListQuery filters and paginates a document listing. Zero values mean
// "no filter"; Status filters on the effective (expiry-aware) status.
type ListQuery struct {
	Type   model.DocumentType
	Status model.DocumentStatus
	Limit  int
	Offset int
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// PassportService is the only component that performs the read-modify-write
// cycle on a passport record. Every mutation is one document transition,
// applied to a fresh snapshot and committed with a revision-guarded write,
// so concurrent reviewers acting on different documents of the same entity
// never lose each other's edits.
type PassportService interface {
	// CreatePassport registers an owning entity (product or company) with an
	// empty document collection.
	CreatePassport(ctx context.Context, entityID, kind string) error

	// AddDocument records an uploaded artifact. A draft whose name already
	// exists uniquely under its type is treated as a reupload of that
	// document rather than a duplicate entry.
	AddDocument(ctx context.Context, entityID string, draft DocumentDraft) (*model.Document, error)

	// TransitionDocument applies a review decision (approve or reject) to
	// the referenced document.
	TransitionDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, target model.DocumentStatus, reason string) (*model.Document, error)

	// ReuploadDocument resets the referenced document to pending with a new
	// url and/or version.
	ReuploadDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, newURL, newVersion string, validUntil *time.Time) (*model.Document, error)

	// GetDocument resolves a reference against the current collection and
	// returns the matched document.
	GetDocument(ctx context.Context, entityID string, ref docstore.DocumentRef) (*model.Document, error)

	// GetAggregateStatus derives the entity's rolled-up compliance status.
	GetAggregateStatus(ctx context.Context, entityID string) (model.AggregateStatus, error)

	// ListDocuments returns a filtered, paginated view over the collection.
	ListDocuments(ctx context.Context, entityID string, q ListQuery) (*DocumentListResult, error)
}

// Config tunes the optimistic-concurrency retry loop.
type Config struct {
	// MaxAttempts bounds full read-modify-write cycles per mutation.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt with full
	// jitter. Zero disables sleeping (useful in tests).
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

// Option customizes a PassportService.
type Option func(*passportService)

// WithEvents attaches a status-change event publisher.
func WithEvents(p events.Publisher) Option {
	return func(s *passportService) { s.events = p }
}

// WithCache attaches a display cache for aggregate statuses.
func WithCache(c cache.StatusCache) Option {
	return func(s *passportService) { s.cache = c }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *passportService) { s.metrics = m }
}

// WithConfig overrides the retry configuration.
func WithConfig(cfg Config) Option {
	return func(s *passportService) { s.cfg = cfg.withDefaults() }
}

// withClock pins time for tests.
func withClock(now func() time.Time) Option {
	return func(s *passportService) { s.now = now }
}

type passportService struct {
	store   record.PassportStore
	events  events.Publisher
	cache   cache.StatusCache
	metrics *Metrics
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

// NewPassportService constructs the mutation coordinator. events, cache, and
// metrics are optional.
func NewPassportService(store record.PassportStore, logger *zap.Logger, opts ...Option) PassportService {
	s := &passportService{
		store:  store,
		logger: logger,
		cfg:    Config{}.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statusChange is what a committed mutation reports for event publishing.
type statusChange struct {
	docID     string
	docType   model.DocumentType
	oldStatus model.DocumentStatus
	newStatus model.DocumentStatus
}

// mutation inspects and edits a decoded collection snapshot. Returning an
// error aborts the cycle before anything is written.
type mutation func(coll model.DocumentCollection) (*model.Document, *statusChange, error)

// mutate runs one full optimistic read-modify-write cycle, retrying on
// revision conflicts up to the configured bound. Business-rule violations
// abort on the first attempt; only lost races are retried.
func (s *passportService) mutate(ctx context.Context, entityID string, fn mutation) (*model.Document, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		snap, err := s.store.Get(ctx, entityID)
		if err != nil {
			return nil, err
		}

		coll, err := docstore.Decode(entityID, snap.RawDocuments)
		if err != nil {
			return nil, err
		}

		doc, change, err := fn(coll)
		if err != nil {
			return nil, err
		}

		agg := docstore.Aggregate(coll, s.now())
		raw, err := docstore.Encode(coll)
		if err != nil {
			return nil, err
		}

		_, err = s.store.CompareAndSwap(ctx, entityID, raw, agg, snap.Revision)
		if errors.Is(err, record.ErrRevisionConflict) {
			s.metrics.conflict()
			s.logger.Debug("passport revision conflict",
				zap.String("entity_id", entityID),
				zap.Int("attempt", attempt),
			)
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.afterCommit(ctx, entityID, agg, change)
		return doc, nil
	}

	s.metrics.exhausted()
	s.logger.Warn("passport mutation retries exhausted",
		zap.String("entity_id", entityID),
		zap.Int("attempts", s.cfg.MaxAttempts),
	)
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrConcurrentModification, entityID, s.cfg.MaxAttempts)
}

// backoff sleeps for the attempt's jittered delay or until ctx is done.
func (s *passportService) backoff(ctx context.Context, attempt int) error {
	if s.cfg.BackoffBase <= 0 {
		return ctx.Err()
	}
	d := s.cfg.BackoffBase << (attempt - 1)
	d += time.Duration(rand.Int63n(int64(d) + 1))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// afterCommit updates the display cache and publishes the status event.
// Both are best effort: the mutation is already durable.
func (s *passportService) afterCommit(ctx context.Context, entityID string, agg model.AggregateStatus, change *statusChange) {
	if s.cache != nil {
		if err := s.cache.SetAggregate(ctx, entityID, agg); err != nil {
			s.logger.Warn("aggregate cache update failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	if s.events != nil && change != nil {
		evt := events.StatusChanged{
			EntityID:   entityID,
			DocumentID: change.docID,
			Type:       change.docType,
			OldStatus:  change.oldStatus,
			NewStatus:  change.newStatus,
			At:         s.now(),
		}
		if err := s.events.PublishStatusChanged(ctx, evt); err != nil {
			s.logger.Warn("status event publish failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
}

func (s *passportService) CreatePassport(ctx context.Context, entityID, kind string) error {
	if entityID == "" {
		return ErrEntityIDRequired
	}
	if kind != "product" && kind != "company" {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.store.Create(ctx, entityID, kind)
}

func (s *passportService) AddDocument(ctx context.Context, entityID string, draft DocumentDraft) (*model.Document, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}
	if draft.Type == "" {
		return nil, ErrTypeRequired
	}
	if draft.Name == "" {
		return nil, ErrNameRequired
	}

	return s.mutate(ctx, entityID, func(coll model.DocumentCollection) (*model.Document, *statusChange, error) {
		m, err := docstore.Resolve(coll, docstore.DocumentRef{Type: draft.Type, Name: draft.Name})
		switch {
		case err == nil:
			// Same name under the same type: a new version of an existing
			// document, not a duplicate entry.
			d := &coll[m.Type][m.Index]
			old := d.Status
			if err := docstore.Reupload(d, draft.URL, draft.Version, draft.ValidUntil); err != nil {
				return nil, nil, err
			}
			cp := *d
			return &cp, &statusChange{docID: d.ID, docType: d.Type, oldStatus: old, newStatus: d.Status}, nil

		case errors.Is(err, docstore.ErrDocumentNotFound):
			seq := coll[draft.Type]
			d := model.Document{
				ID:         docstore.SynthesizeID(entityID, draft.Type, draft.Name, len(seq)),
				Type:       draft.Type,
				Name:       draft.Name,
				URL:        draft.URL,
				Status:     model.StatusPending,
				Version:    draft.Version,
				ValidUntil: draft.ValidUntil,
				UploadedAt: s.now(),
				FileSize:   draft.FileSize,
			}
			coll[draft.Type] = append(seq, d)
			return &d, &statusChange{docID: d.ID, docType: d.Type, newStatus: d.Status}, nil

		default:
			return nil, nil, err
		}
	})
}

func (s *passportService) TransitionDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, target model.DocumentStatus, reason string) (*model.Document, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}

	return s.mutate(ctx, entityID, func(coll model.DocumentCollection) (*model.Document, *statusChange, error) {
		m, err := docstore.Resolve(coll, ref)
		if err != nil {
			return nil, nil, err
		}
		d := &coll[m.Type][m.Index]
		old := d.Status
		if err := docstore.Transition(d, target, reason, s.now()); err != nil {
			return nil, nil, err
		}
		cp := *d
		return &cp, &statusChange{docID: d.ID, docType: d.Type, oldStatus: old, newStatus: d.Status}, nil
	})
}

func (s *passportService) ReuploadDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, newURL, newVersion string, validUntil *time.Time) (*model.Document, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}

	return s.mutate(ctx, entityID, func(coll model.DocumentCollection) (*model.Document, *statusChange, error) {
		m, err := docstore.Resolve(coll, ref)
		if err != nil {
			return nil, nil, err
		}
		d := &coll[m.Type][m.Index]
		old := d.Status
		if err := docstore.Reupload(d, newURL, newVersion, validUntil); err != nil {
			return nil, nil, err
		}
		cp := *d
		return &cp, &statusChange{docID: d.ID, docType: d.Type, oldStatus: old, newStatus: d.Status}, nil
	})
}

func (s *passportService) GetDocument(ctx context.Context, entityID string, ref docstore.DocumentRef) (*model.Document, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}
	snap, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	coll, err := docstore.Decode(entityID, snap.RawDocuments)
	if err != nil {
		return nil, err
	}
	m, err := docstore.Resolve(coll, ref)
	if err != nil {
		return nil, err
	}
	doc := coll[m.Type][m.Index]
	doc.Status = docstore.EffectiveStatus(doc, s.now())
	return &doc, nil
}

// GetAggregateStatus recomputes the status from the stored collection. The
// cache only short-circuits the read; it is refilled on every miss and
// overwritten on every mutation.
func (s *passportService) GetAggregateStatus(ctx context.Context, entityID string) (model.AggregateStatus, error) {
	if entityID == "" {
		return "", ErrEntityIDRequired
	}

	if s.cache != nil {
		agg, ok, err := s.cache.GetAggregate(ctx, entityID)
		if err != nil {
			s.logger.Warn("aggregate cache read failed", zap.String("entity_id", entityID), zap.Error(err))
		} else if ok {
			return agg, nil
		}
	}

	snap, err := s.store.Get(ctx, entityID)
	if err != nil {
		return "", err
	}
	coll, err := docstore.Decode(entityID, snap.RawDocuments)
	if err != nil {
		return "", err
	}
	agg := docstore.Aggregate(coll, s.now())

	if s.cache != nil {
		if err := s.cache.SetAggregate(ctx, entityID, agg); err != nil {
			s.logger.Warn("aggregate cache fill failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return agg, nil
}

func (s *passportService) ListDocuments(ctx context.Context, entityID string, q ListQuery) (*DocumentListResult, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	snap, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	coll, err := docstore.Decode(entityID, snap.RawDocuments)
	if err != nil {
		return nil, err
	}

	// Listings show the effective status: expiry is a view, never stored.
	now := s.now()
	filtered := make([]model.Document, 0, coll.Count())
	for _, d := range coll.Flatten() {
		if q.Type != "" && d.Type != q.Type {
			continue
		}
		d.Status = docstore.EffectiveStatus(d, now)
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		filtered = append(filtered, d)
	}

	total := len(filtered)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return &DocumentListResult{Items: filtered[start:end], Total: total}, nil
}
