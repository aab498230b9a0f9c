package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"index-coordinator/pkg/logger"
	"index-coordinator/pkg/pool"
)

func newTestExecutor(t *testing.T, n int) *PoolExecutor {
	e := NewPoolExecutor(n, logger.NewZapLogger(zap.NewNop()))
	t.Cleanup(e.Close)
	return e
}

func TestPoolExecutor_RunsTask(t *testing.T) {
	e := newTestExecutor(t, 1)

	done := make(chan struct{})
	h, err := e.Acquire("project_indexer_ORG", func(ctx context.Context) { close(done) })
	require.NoError(t, err)
	assert.Equal(t, "project_indexer_ORG", h.Name())

	require.NoError(t, h.Start())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestPoolExecutor_AcquireDoesNotStart(t *testing.T) {
	e := newTestExecutor(t, 1)

	ran := make(chan struct{}, 1)
	_, err := e.Acquire("idle", func(ctx context.Context) { ran <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-ran:
		t.Fatal("task ran without Start")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoolExecutor_Interrupt(t *testing.T) {
	e := newTestExecutor(t, 1)

	started := make(chan struct{})
	result := make(chan error, 1)
	h, err := e.Acquire("long", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, h.Start())

	<-started
	h.Interrupt()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task did not observe interrupt")
	}
}

func TestPoolExecutor_InterruptBeforeRunStillRunsTask(t *testing.T) {
	e := newTestExecutor(t, 1)

	release := make(chan struct{})
	blocker, err := e.Acquire("blocker", func(ctx context.Context) { <-release })
	require.NoError(t, err)
	require.NoError(t, blocker.Start())

	observed := make(chan error, 1)
	h, err := e.Acquire("queued", func(ctx context.Context) { observed <- ctx.Err() })
	require.NoError(t, err)
	require.NoError(t, h.Start())
	h.Interrupt()
	close(release)

	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("interrupted task was dropped")
	}
}

func TestPoolExecutor_StartTwice(t *testing.T) {
	e := newTestExecutor(t, 1)

	h, err := e.Acquire("twice", func(ctx context.Context) {})
	require.NoError(t, err)
	require.NoError(t, h.Start())
	assert.ErrorIs(t, h.Start(), ErrAlreadyStarted)
}

func TestPoolExecutor_AcquireValidation(t *testing.T) {
	e := newTestExecutor(t, 1)

	_, err := e.Acquire("", func(ctx context.Context) {})
	assert.Error(t, err)

	_, err = e.Acquire("nil-task", nil)
	assert.Error(t, err)
}

func TestPoolExecutor_AcquireAfterClose(t *testing.T) {
	e := NewPoolExecutor(1, logger.NewZapLogger(zap.NewNop()))
	e.Close()

	_, err := e.Acquire("late", func(ctx context.Context) {})
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
}
