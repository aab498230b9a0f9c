package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"index-coordinator/internal/source"
	"index-coordinator/internal/store"
)

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexProject(ctx context.Context, projectKey string) error {
	args := m.Called(ctx, projectKey)
	return args.Error(0)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchRecords(ctx context.Context, projectKey string, since time.Time,
	startAt int) (*source.RecordPage, error) {
	args := m.Called(ctx, projectKey, since, startAt)
	if args.Get(0) != nil {
		return args.Get(0).(*source.RecordPage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) ListProjectKeys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockIndexStore struct {
	mock.Mock
}

func (m *MockIndexStore) PutDocuments(ctx context.Context, projectKey string, docs []*store.Document) error {
	args := m.Called(ctx, projectKey, docs)
	return args.Error(0)
}

func (m *MockIndexStore) GetDocument(ctx context.Context, projectKey, id string) (*store.Document, error) {
	args := m.Called(ctx, projectKey, id)
	if args.Get(0) != nil {
		return args.Get(0).(*store.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIndexStore) Count(ctx context.Context, projectKey string) (int, error) {
	args := m.Called(ctx, projectKey)
	return args.Int(0), args.Error(1)
}

func (m *MockIndexStore) DeleteProject(ctx context.Context, projectKey string) error {
	args := m.Called(ctx, projectKey)
	return args.Error(0)
}

func (m *MockIndexStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
