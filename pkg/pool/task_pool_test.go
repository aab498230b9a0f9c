package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"index-coordinator/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewZapLogger(zap.NewNop())
}

// 测试正常提交和执行任务
func TestTaskPool_NormalExecution(t *testing.T) {
	pool := NewTaskPool(2, newTestLogger())
	defer pool.Close()

	var counter int32
	taskCount := 5

	for i := 0; i < taskCount; i++ {
		err := pool.Submit(context.Background(), func(ctx context.Context, taskId uint64) {
			atomic.AddInt32(&counter, 1)
		})
		require.NoError(t, err)
	}

	pool.Wait()
	assert.Equal(t, int32(taskCount), atomic.LoadInt32(&counter))
}

// 测试任务在等待执行时被取消
func TestTaskPool_CancelBeforeExecution(t *testing.T) {
	pool := NewTaskPool(1, newTestLogger()) // 只启动一个工作者，确保任务会排队
	defer pool.Close()

	err := pool.Submit(context.Background(), func(ctx context.Context, taskId uint64) {
		time.Sleep(100 * time.Millisecond)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Bool
	err = pool.Submit(ctx, func(ctx context.Context, taskId uint64) {
		executed.Store(true)
	})
	require.NoError(t, err)

	pool.Wait()
	assert.False(t, executed.Load(), "cancelled task was executed")
}

// 测试任务执行过程中被取消
func TestTaskPool_TaskCancelDuringExecution(t *testing.T) {
	pool := NewTaskPool(2, newTestLogger())
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())

	var cancelled atomic.Bool
	var started sync.WaitGroup
	started.Add(1)

	err := pool.Submit(ctx, func(ctx context.Context, taskId uint64) {
		started.Done()
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			cancelled.Store(errors.Is(ctx.Err(), context.Canceled))
		}
	})
	require.NoError(t, err)

	started.Wait()
	cancel()
	pool.Wait()

	assert.True(t, cancelled.Load())
}

func TestTaskPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewTaskPool(1, newTestLogger())
	defer pool.Close()

	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context, taskId uint64) {
		panic("boom")
	}))

	var ran atomic.Bool
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context, taskId uint64) {
		ran.Store(true)
	}))

	pool.Wait()
	assert.True(t, ran.Load())
	assert.Zero(t, pool.Active())
}

func TestTaskPool_TrySubmitFull(t *testing.T) {
	pool := NewTaskPool(1, newTestLogger())
	defer pool.Close()

	release := make(chan struct{})
	block := func(ctx context.Context, taskId uint64) { <-release }

	// one running plus a buffer of two
	accepted := 0
	var lastErr error
	for i := 0; i < 10; i++ {
		if lastErr = pool.TrySubmit(context.Background(), block); lastErr != nil {
			break
		}
		accepted++
	}

	assert.ErrorIs(t, lastErr, ErrPoolFull)
	assert.GreaterOrEqual(t, accepted, 2)
	assert.LessOrEqual(t, accepted, 3)

	close(release)
	pool.Wait()
}

func TestTaskPool_SubmitAfterClose(t *testing.T) {
	pool := NewTaskPool(1, newTestLogger())
	pool.Close()
	pool.Close()

	noop := func(ctx context.Context, taskId uint64) {}
	assert.ErrorIs(t, pool.Submit(context.Background(), noop), ErrPoolClosed)
	assert.ErrorIs(t, pool.TrySubmit(context.Background(), noop), ErrPoolClosed)
}
