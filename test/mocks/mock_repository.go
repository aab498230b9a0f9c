package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"index-coordinator/internal/repository"
)

type MockProjectLister struct {
	mock.Mock
}

func (m *MockProjectLister) ListProjectKeys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockPropertyStore struct {
	mock.Mock
}

func (m *MockPropertyStore) ReadDatetime(ctx context.Context, projectKey, property string) (time.Time, bool, error) {
	args := m.Called(ctx, projectKey, property)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockPropertyStore) StoreDatetime(ctx context.Context, projectKey, property string, value time.Time,
	batch *repository.PropertyBatch) error {
	args := m.Called(ctx, projectKey, property, value, batch)
	return args.Error(0)
}

func (m *MockPropertyStore) FlushBatch(ctx context.Context, batch *repository.PropertyBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockPropertyStore) DeleteProperties(ctx context.Context, projectKey string) error {
	args := m.Called(ctx, projectKey)
	return args.Error(0)
}
