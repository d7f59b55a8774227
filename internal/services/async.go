package services

import (
	"context"
	"sync"
	"time"
)

const defaultBackgroundTimeout = 10 * time.Second

// BackgroundTasks runs fire-and-forget work detached from the request lifetime and lets the
// process wait for it on shutdown.
type BackgroundTasks struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewBackgroundTasks returns a tracker whose tasks each get at most timeout to finish.
func NewBackgroundTasks(timeout time.Duration) *BackgroundTasks {
	if timeout <= 0 {
		timeout = defaultBackgroundTimeout
	}
	return &BackgroundTasks{timeout: timeout}
}

// Go starts fn on its own goroutine. The context keeps the caller's values but not its
// cancellation, so the task survives the response being written.
func (b *BackgroundTasks) Go(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		fn(detached)
	}()
}

// Wait blocks until every started task has finished or ctx is done.
func (b *BackgroundTasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
