package mocks

import (
	"github.com/stretchr/testify/mock"

	"index-coordinator/internal/executor"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Acquire(name string, task executor.Task) (executor.WorkerHandle, error) {
	args := m.Called(name, task)
	if args.Get(0) != nil {
		return args.Get(0).(executor.WorkerHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockWorkerHandle struct {
	mock.Mock
}

func (m *MockWorkerHandle) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockWorkerHandle) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWorkerHandle) Interrupt() {
	m.Called()
}

type MockHost struct {
	mock.Mock
}

func (m *MockHost) IsClosed() bool {
	args := m.Called()
	return args.Bool(0)
}
