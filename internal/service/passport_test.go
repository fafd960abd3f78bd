package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dppapi/internal/docstore"
	"dppapi/internal/model"
	"dppapi/internal/record"
	"dppapi/internal/record/memory"
	recordMocks "dppapi/internal/record/mocks"
)

func newTestService(t *testing.T, store record.PassportStore, opts ...Option) PassportService {
	t.Helper()
	opts = append([]Option{
		WithConfig(Config{MaxAttempts: 5}),
		withClock(func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	return NewPassportService(store, zap.NewNop(), opts...)
}

func TestCreatePassport(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))
	assert.ErrorIs(t, svc.CreatePassport(ctx, "prod-1", "product"), record.ErrAlreadyExists)
	assert.ErrorIs(t, svc.CreatePassport(ctx, "", "product"), ErrEntityIDRequired)
	assert.ErrorIs(t, svc.CreatePassport(ctx, "x", "warehouse"), ErrInvalidKind)
}

// Walks the full review lifecycle of one document and checks the aggregate
// status after every step.
func TestDocumentLifecycle(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))

	agg, err := svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregateNoDocuments, agg)

	doc, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type:    model.DocTypeSafetyCert,
		Name:    "a.pdf",
		URL:     "passports/prod-1/safety_cert/a.pdf",
		Version: "1.0",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.StatusPending, doc.Status)

	agg, err = svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregatePendingReview, agg)

	ref := docstore.DocumentRef{ID: doc.ID}

	doc, err = svc.TransitionDocument(ctx, "prod-1", ref, model.StatusRejected, "illegible")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, doc.Status)
	assert.Equal(t, "illegible", doc.RejectionReason)

	agg, err = svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregateHasRejected, agg)

	doc, err = svc.ReuploadDocument(ctx, "prod-1", ref, "passports/prod-1/safety_cert/a-v2.pdf", "2.0", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.Empty(t, doc.RejectionReason)

	agg, err = svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregatePendingReview, agg)

	doc, err = svc.TransitionDocument(ctx, "prod-1", ref, model.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, doc.Status)

	agg, err = svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregateAllApproved, agg)
}

func TestAddDocument_Validation(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	ctx := context.Background()

	_, err := svc.AddDocument(ctx, "", DocumentDraft{Type: model.DocTypeSafetyCert, Name: "a.pdf"})
	assert.ErrorIs(t, err, ErrEntityIDRequired)

	_, err = svc.AddDocument(ctx, "prod-1", DocumentDraft{Name: "a.pdf"})
	assert.ErrorIs(t, err, ErrTypeRequired)

	_, err = svc.AddDocument(ctx, "prod-1", DocumentDraft{Type: model.DocTypeSafetyCert})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestAddDocument_SameNameIsReupload(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))

	first, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "a.pdf", URL: "u1", Version: "1.0",
	})
	require.NoError(t, err)

	second, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "a.pdf", URL: "u2", Version: "2.0",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same name and type keeps identity")
	assert.Equal(t, "u2", second.URL)

	res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	// Re-submitting the identical draft changes nothing and is refused.
	_, err = svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "a.pdf", URL: "u2", Version: "2.0",
	})
	assert.ErrorIs(t, err, docstore.ErrNoOpReupload)
}

func TestTransitionDocument_FailedValidationWritesNothing(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))
	doc, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "a.pdf", URL: "u1", Version: "1.0",
	})
	require.NoError(t, err)

	before, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)

	_, err = svc.TransitionDocument(ctx, "prod-1", docstore.DocumentRef{ID: doc.ID}, model.StatusRejected, "")
	assert.ErrorIs(t, err, docstore.ErrMissingRejectionReason)

	after, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision, "failed validation must not consume a revision")
	assert.Equal(t, before.RawDocuments, after.RawDocuments)
}

func TestTransitionDocument_References(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))
	doc, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "a.pdf", URL: "u1", Version: "1.0",
	})
	require.NoError(t, err)

	t.Run("by name and type", func(t *testing.T) {
		got, err := svc.TransitionDocument(ctx, "prod-1",
			docstore.DocumentRef{Type: model.DocTypeSafetyCert, Name: "a.pdf"},
			model.StatusApproved, "")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.TransitionDocument(ctx, "prod-1",
			docstore.DocumentRef{ID: "nope"}, model.StatusApproved, "")
		assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := svc.TransitionDocument(ctx, "ghost",
			docstore.DocumentRef{ID: doc.ID}, model.StatusApproved, "")
		assert.ErrorIs(t, err, record.ErrNotFound)
	})
}

func TestListDocuments(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))
	for _, d := range []DocumentDraft{
		{Type: model.DocTypeSafetyCert, Name: "s1.pdf", URL: "u1", Version: "1.0"},
		{Type: model.DocTypeSafetyCert, Name: "s2.pdf", URL: "u2", Version: "1.0"},
		{Type: model.DocTypeQualityCert, Name: "q1.pdf", URL: "u3", Version: "1.0"},
	} {
		_, err := svc.AddDocument(ctx, "prod-1", d)
		require.NoError(t, err)
	}
	_, err := svc.TransitionDocument(ctx, "prod-1",
		docstore.DocumentRef{Type: model.DocTypeSafetyCert, Name: "s1.pdf"},
		model.StatusApproved, "")
	require.NoError(t, err)

	t.Run("no filter", func(t *testing.T) {
		res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Len(t, res.Items, 3)
	})

	t.Run("type filter", func(t *testing.T) {
		res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{Type: model.DocTypeSafetyCert})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
	})

	t.Run("status filter", func(t *testing.T) {
		res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{Status: model.StatusPending})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
	})

	t.Run("pagination window", func(t *testing.T) {
		res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("offset past the end", func(t *testing.T) {
		res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{Limit: 10, Offset: 99})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Empty(t, res.Items)
	})
}

// A lapsed validUntil shows up as expired in listings even though the stored
// status stays pending.
func TestListDocuments_ShowsEffectiveExpiry(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.CreatePassport(ctx, "prod-1", "product"))
	lapsed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.AddDocument(ctx, "prod-1", DocumentDraft{
		Type: model.DocTypeSafetyCert, Name: "old.pdf", URL: "u1", Version: "1.0",
		ValidUntil: &lapsed,
	})
	require.NoError(t, err)

	res, err := svc.ListDocuments(ctx, "prod-1", ListQuery{Status: model.StatusExpired})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.StatusExpired, res.Items[0].Status)

	doc, err := svc.GetDocument(ctx, "prod-1", docstore.DocumentRef{Type: model.DocTypeSafetyCert, Name: "old.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, doc.Status)

	agg, err := svc.GetAggregateStatus(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, model.AggregateHasExpired, agg)
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	snap := &record.Snapshot{
		ID:           "prod-1",
		Kind:         "product",
		RawDocuments: []byte(`{"safety_cert":[{"id":"a","name":"a.pdf","url":"u1","version":"1.0","status":"pending"}]}`),
		Revision:     3,
	}

	t.Run("succeeds after conflicts", func(t *testing.T) {
		mStore := new(recordMocks.MockPassportStore)
		mStore.On("Get", ctx, "prod-1").Return(snap, nil).Times(3)
		mStore.On("CompareAndSwap", ctx, "prod-1", mock.Anything, model.AggregateAllApproved, record.Revision(3)).
			Return(record.Revision(0), record.ErrRevisionConflict).Twice()
		mStore.On("CompareAndSwap", ctx, "prod-1", mock.Anything, model.AggregateAllApproved, record.Revision(3)).
			Return(record.Revision(4), nil).Once()

		svc := newTestService(t, mStore)
		doc, err := svc.TransitionDocument(ctx, "prod-1", docstore.DocumentRef{ID: "a"}, model.StatusApproved, "")

		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, doc.Status)
		mStore.AssertExpectations(t)
	})

	t.Run("gives up after the bound", func(t *testing.T) {
		mStore := new(recordMocks.MockPassportStore)
		mStore.On("Get", ctx, "prod-1").Return(snap, nil).Times(5)
		mStore.On("CompareAndSwap", ctx, "prod-1", mock.Anything, model.AggregateAllApproved, record.Revision(3)).
			Return(record.Revision(0), record.ErrRevisionConflict).Times(5)

		svc := newTestService(t, mStore)
		_, err := svc.TransitionDocument(ctx, "prod-1", docstore.DocumentRef{ID: "a"}, model.StatusApproved, "")

		assert.ErrorIs(t, err, ErrConcurrentModification)
		mStore.AssertExpectations(t)
	})

	t.Run("store errors are not retried", func(t *testing.T) {
		mStore := new(recordMocks.MockPassportStore)
		mStore.On("Get", ctx, "prod-1").Return(nil, errors.New("store down")).Once()

		svc := newTestService(t, mStore)
		_, err := svc.TransitionDocument(ctx, "prod-1", docstore.DocumentRef{ID: "a"}, model.StatusApproved, "")

		assert.EqualError(t, err, "store down")
		mStore.AssertExpectations(t)
	})
}

func TestMutate_MalformedCollectionSurfaces(t *testing.T) {
	ctx := context.Background()
	mStore := new(recordMocks.MockPassportStore)
	mStore.On("Get", ctx, "prod-1").Return(&record.Snapshot{
		ID:           "prod-1",
		RawDocuments: []byte(`[{"name":"typeless.pdf"}]`),
		Revision:     1,
	}, nil).Once()

	svc := newTestService(t, mStore)
	_, err := svc.TransitionDocument(ctx, "prod-1", docstore.DocumentRef{ID: "a"}, model.StatusApproved, "")

	assert.ErrorIs(t, err, docstore.ErrMalformedCollection)
	mStore.AssertExpectations(t)
}
