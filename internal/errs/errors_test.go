package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(ErrCancelled))
	assert.True(t, IsCancelled(NewCancelledErr(nil)))
	assert.True(t, IsCancelled(fmt.Errorf("list projects: %w", context.Canceled)))
	assert.True(t, IsCancelled(context.DeadlineExceeded))
	assert.False(t, IsCancelled(errors.New("boom")))
	assert.False(t, IsCancelled(nil))
}

func TestNewCancelledErrKeepsCause(t *testing.T) {
	cause := errors.New("host closed")
	err := NewCancelledErr(cause)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, cause)
}

func TestNewRecordNotFoundErr(t *testing.T) {
	err := NewRecordNotFoundErr("project", "ORG")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Contains(t, err.Error(), "project not found by ORG")
}
