package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(3)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	pool.Shutdown()
	assert.Equal(t, int32(10), ran.Load())
}

func TestWorkerPool_TaskErrorDoesNotStopWorkers(t *testing.T) {
	pool := NewWorkerPool(1)

	var ran atomic.Int32
	pool.Submit(func(ctx context.Context) error {
		return errors.New("boom")
	})
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	pool.Shutdown()
	assert.Equal(t, int32(1), ran.Load())
}

func TestWorkerPool_DropsTasksAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	var ran atomic.Int32
	assert.NotPanics(t, func() {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}
