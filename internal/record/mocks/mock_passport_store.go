package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dppapi/internal/model"
	"dppapi/internal/record"
)

type MockPassportStore struct {
	mock.Mock
}

func (m *MockPassportStore) Create(ctx context.Context, id, kind string) error {
	args := m.Called(ctx, id, kind)
	return args.Error(0)
}

func (m *MockPassportStore) Get(ctx context.Context, id string) (*record.Snapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Snapshot), args.Error(1)
}

func (m *MockPassportStore) CompareAndSwap(ctx context.Context, id string, rawDocuments []byte, aggregate model.AggregateStatus, expected record.Revision) (record.Revision, error) {
	args := m.Called(ctx, id, rawDocuments, aggregate, expected)
	return args.Get(0).(record.Revision), args.Error(1)
}
