package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger records only the calls a test has set expectations for, so
// tests can assert on the lines they care about and ignore the rest.
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) log(method, format string, args []any) {
	if len(args) == 0 {
		args = nil
	}
	if !m.expects(method, format, args) {
		return
	}
	m.MethodCalled(method, format, args)
}

func (m *MockLogger) expects(method, format string, args []any) bool {
	for _, call := range m.ExpectedCalls {
		if call.Method != method {
			continue
		}
		if _, diffs := call.Arguments.Diff([]any{format, args}); diffs == 0 {
			return true
		}
	}
	return false
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.log("Debug", format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.log("Info", format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.log("Warn", format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.log("Error", format, args)
}

func (m *MockLogger) Fatal(format string, args ...any) {
	m.log("Fatal", format, args)
}
