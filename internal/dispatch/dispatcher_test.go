package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsTasks(t *testing.T) {
	d := New(4, time.Second, zerolog.Nop())

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		d.Submit("count", func(ctx context.Context) {
			count.Add(1)
		})
	}

	require.NoError(t, d.Shutdown(context.Background()))
	assert.EqualValues(t, 10, count.Load())
}

func TestDispatcher_PanicDoesNotAffectOtherTasks(t *testing.T) {
	d := New(1, time.Second, zerolog.Nop())

	var ran atomic.Bool
	d.Submit("boom", func(ctx context.Context) {
		panic("boom")
	})
	d.Submit("ok", func(ctx context.Context) {
		ran.Store(true)
	})

	require.NoError(t, d.Shutdown(context.Background()))
	assert.True(t, ran.Load())
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	d := New(2, time.Second, zerolog.Nop())

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	for i := 0; i < 8; i++ {
		d.Submit("slow", func(ctx context.Context) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}

	require.NoError(t, d.Shutdown(context.Background()))
	assert.LessOrEqual(t, peak, 2)
}

func TestDispatcher_TaskContextHasTimeout(t *testing.T) {
	d := New(1, 50*time.Millisecond, zerolog.Nop())

	var hasDeadline atomic.Bool
	d.Submit("deadline", func(ctx context.Context) {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
	})

	require.NoError(t, d.Shutdown(context.Background()))
	assert.True(t, hasDeadline.Load())
}

func TestDispatcher_ShutdownDeadlineCancelsTasks(t *testing.T) {
	d := New(1, 0, zerolog.Nop())

	started := make(chan struct{})
	var cancelled atomic.Bool
	d.Submit("blocked", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cancelled.Load())
}

func TestDispatcher_SubmitAfterShutdownIsDropped(t *testing.T) {
	d := New(1, time.Second, zerolog.Nop())
	require.NoError(t, d.Shutdown(context.Background()))

	var ran atomic.Bool
	d.Submit("late", func(ctx context.Context) {
		ran.Store(true)
	})

	require.NoError(t, d.Shutdown(context.Background()))
	assert.False(t, ran.Load())
}

func TestDispatcher_SubmitDuringShutdown(t *testing.T) {
	d := New(1, 0, zerolog.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit("blocking", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- d.Shutdown(context.Background()) }()

	var ran atomic.Bool
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.closed
	}, time.Second, time.Millisecond)
	d.Submit("late", func(ctx context.Context) {
		ran.Store(true)
	})

	close(release)
	require.NoError(t, <-shutdownDone)
	assert.False(t, ran.Load())
}
