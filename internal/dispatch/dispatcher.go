package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of background work. Its context is detached from the
// request that scheduled it.
type Task func(ctx context.Context)

// Dispatcher runs fire-and-forget tasks after the triggering request has been
// answered. At most maxConcurrent tasks run at once; the rest wait for a slot.
type Dispatcher struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(maxConcurrent int64, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: timeout,
		log:     log.With().Str("component", "dispatch").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules task and returns immediately. Tasks submitted after
// Shutdown has started are dropped.
func (d *Dispatcher) Submit(name string, task Task) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn().Str("task", name).Msg("dispatcher shut down, task dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.log.Warn().Str("task", name).Err(err).Msg("task dropped")
			return
		}
		defer d.sem.Release(1)

		d.run(name, task)
	}()
}

func (d *Dispatcher) run(name string, task Task) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("task", name).Err(fmt.Errorf("panic: %v", r)).Msg("task panicked")
		}
	}()

	task(ctx)
}

// Shutdown waits for running and queued tasks. When ctx expires first the
// remaining tasks are cancelled and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
