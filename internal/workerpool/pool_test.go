package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func TestPool_SubmitRunsTasks(t *testing.T) {
	p := New(Config{MaxWorkers: 3, QueueSize: 16}, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	p.Close()

	assert.Equal(t, int32(10), ran.Load())
	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Completed)
	assert.Zero(t, stats.Workers)
}

func TestPool_TaskErrorCounted(t *testing.T) {
	p := New(DefaultConfig(), zap.NewNop())

	boom := errors.New("boom")
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error { return boom }))
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error { return nil }))
	p.Close()

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestPool_PanicRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := New(Config{MaxWorkers: 1, QueueSize: 4}, zap.New(core))

	var ran atomic.Bool
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error { panic("bad record") }))
	// worker 仍然可用
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	p.Close()

	assert.True(t, ran.Load())
	assert.Equal(t, 1, logs.FilterMessage("task panicked").Len())
	assert.Equal(t, int64(1), p.Stats().Failed)
	assert.Equal(t, int64(1), p.Stats().Completed)
}

func TestPool_QueueFull(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return nil }))
	err := p.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	p.Close()
	assert.Equal(t, int64(2), p.Stats().Completed)
}

func TestPool_Closed(t *testing.T) {
	p := New(DefaultConfig(), zap.NewNop())
	p.Close()
	p.Close()

	noop := func(context.Context) error { return nil }
	assert.ErrorIs(t, p.Submit(context.Background(), noop), ErrPoolClosed)
	assert.ErrorIs(t, p.Enqueue(context.Background(), noop), ErrPoolClosed)
}

func TestPool_EnqueueBlocksUntilQueueHasRoom(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	noop := func(context.Context) error { return nil }
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.Enqueue(context.Background(), noop))

	queued := make(chan error, 1)
	go func() { queued <- p.Enqueue(context.Background(), noop) }()

	select {
	case err := <-queued:
		t.Fatalf("Enqueue returned %v while the queue was full", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-queued)
	p.Close()
	assert.Equal(t, int64(3), p.Stats().Completed)
	assert.Zero(t, p.Stats().Rejected)
}

func TestPool_EnqueueContextCanceled(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 0}, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Enqueue(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Enqueue(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	p.Close()
}

func TestPool_CanceledTaskSkipped(t *testing.T) {
	p := New(DefaultConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	require.NoError(t, p.Submit(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	p.Close()
	assert.False(t, ran.Load())
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_NormalizesConfig(t *testing.T) {
	p := New(Config{MaxWorkers: 0, QueueSize: -1}, nil)

	assert.Equal(t, 1, p.maxWorkers)
	assert.Equal(t, DefaultConfig().IdleTimeout, p.idleTimeout)
	assert.NoError(t, p.Enqueue(context.Background(), func(context.Context) error { return nil }))
	p.Close()
	assert.Equal(t, int64(1), p.Stats().Completed)
}

func TestPool_IdleWorkersExit(t *testing.T) {
	p := New(Config{MaxWorkers: 4, QueueSize: 16, IdleTimeout: 20 * time.Millisecond}, zap.NewNop())
	defer p.Close()

	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			<-release
			return nil
		}))
	}
	assert.Eventually(t, func() bool { return p.Stats().Active == 4 }, time.Second, 5*time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool { return p.Stats().Workers == 1 }, 2*time.Second, 10*time.Millisecond)
}

// 任意任务数与 worker 上限下：全部任务执行且并发不超过上限
func TestPool_BoundedConcurrencyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		workers := rapid.IntRange(1, 6).Draw(t, "workers")
		tasks := rapid.IntRange(0, 40).Draw(t, "tasks")

		p := New(Config{MaxWorkers: workers, QueueSize: tasks}, zap.NewNop())

		var running, peak, done atomic.Int32
		for i := 0; i < tasks; i++ {
			err := p.Submit(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				done.Add(1)
				return nil
			})
			if err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		p.Close()

		if int(done.Load()) != tasks {
			t.Fatalf("done %d of %d tasks", done.Load(), tasks)
		}
		if int(peak.Load()) > workers {
			t.Fatalf("peak concurrency %d exceeds %d workers", peak.Load(), workers)
		}
	})
}
