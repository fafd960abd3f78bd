package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"dppapi/internal/docstore"
	"dppapi/internal/model"
	"dppapi/internal/service"
)

type MockPassportService struct {
	mock.Mock
}

func (m *MockPassportService) CreatePassport(ctx context.Context, entityID, kind string) error {
	args := m.Called(ctx, entityID, kind)
	return args.Error(0)
}

func (m *MockPassportService) AddDocument(ctx context.Context, entityID string, draft service.DocumentDraft) (*model.Document, error) {
	args := m.Called(ctx, entityID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockPassportService) TransitionDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, target model.DocumentStatus, reason string) (*model.Document, error) {
	args := m.Called(ctx, entityID, ref, target, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockPassportService) ReuploadDocument(ctx context.Context, entityID string, ref docstore.DocumentRef, newURL, newVersion string, validUntil *time.Time) (*model.Document, error) {
	args := m.Called(ctx, entityID, ref, newURL, newVersion, validUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockPassportService) GetDocument(ctx context.Context, entityID string, ref docstore.DocumentRef) (*model.Document, error) {
	args := m.Called(ctx, entityID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockPassportService) GetAggregateStatus(ctx context.Context, entityID string) (model.AggregateStatus, error) {
	args := m.Called(ctx, entityID)
	return args.Get(0).(model.AggregateStatus), args.Error(1)
}

func (m *MockPassportService) ListDocuments(ctx context.Context, entityID string, q service.ListQuery) (*service.DocumentListResult, error) {
	args := m.Called(ctx, entityID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}
