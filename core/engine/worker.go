package engine

import (
	"context"
	"sync/atomic"
	"time"

	"fmsync/logger"
)

// Hooks parameterize the reconciliation loop for one class of work items.
// ListPending and Process are required; LoadingCount and BeforeLoop are
// optional.
type Hooks[T any] struct {
	// ListPending returns the current batch of items needing work.
	ListPending func(ctx context.Context) ([]T, error)

	// Process handles one item. A returned error is logged and isolated;
	// it never stops the loop or skips the rest of the batch.
	Process func(ctx context.Context, item T) error

	// LoadingCount reports items still mid-flight elsewhere. While it is
	// nonzero the loop keeps polling without sleeping.
	LoadingCount func(ctx context.Context) (int, error)

	// BeforeLoop runs once before the first iteration, for startup
	// cleanup such as resetting stuck items.
	BeforeLoop func(ctx context.Context) error
}

// Worker drives an indefinitely-running reconciliation loop without busy
// polling. One long-lived goroutine per worker; items within a batch are
// processed sequentially with per-item failure isolation.
type Worker[T any] struct {
	name     string
	hooks    Hooks[T]
	minSleep time.Duration
	maxSleep time.Duration
	started  atomic.Bool
	wake     chan struct{}
}

// NewWorker creates a worker. The idle sleep window is [minSleep, maxSleep]:
// an idle loop waits at most maxSleep between polls and at least minSleep,
// so neither a transiently-empty store nor a WakeUp storm can hot-poll it.
func NewWorker[T any](name string, hooks Hooks[T], minSleep, maxSleep time.Duration) *Worker[T] {
	if minSleep <= 0 {
		minSleep = time.Second
	}
	if maxSleep < minSleep {
		maxSleep = minSleep
	}
	return &Worker[T]{
		name:     name,
		hooks:    hooks,
		minSleep: minSleep,
		maxSleep: maxSleep,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the loop. Idempotent: concurrent and repeated calls start
// it exactly once. The loop runs until ctx is canceled.
func (w *Worker[T]) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// WakeUp shortens the current idle wait. It never blocks and is safe to
// call from any goroutine, at any time, including before Start. The signal
// is sticky: with no waiter present it is kept for the next wait.
func (w *Worker[T]) WakeUp() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker[T]) run(ctx context.Context) {
	if w.hooks.BeforeLoop != nil {
		if err := w.hooks.BeforeLoop(ctx); err != nil {
			logger.Warn("Worker startup hook failed",
				logger.String("worker", w.name),
				logger.ErrorField(err))
		}
	}

	logger.Info("Worker loop started", logger.String("worker", w.name))

	for ctx.Err() == nil {
		items, err := w.hooks.ListPending(ctx)
		if err != nil {
			logger.Error("Worker failed to list pending items",
				logger.String("worker", w.name),
				logger.ErrorField(err))
			w.idle(ctx)
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			if err := w.hooks.Process(ctx, item); err != nil {
				// One bad item must not take down the rest of the batch.
				logger.Warn("Worker failed to process item",
					logger.String("worker", w.name),
					logger.ErrorField(err))
			}
		}

		loading := 0
		if w.hooks.LoadingCount != nil {
			n, err := w.hooks.LoadingCount(ctx)
			if err != nil {
				logger.Warn("Worker failed to read loading count",
					logger.String("worker", w.name),
					logger.ErrorField(err))
			} else {
				loading = n
			}
		}

		if len(items) == 0 && loading == 0 {
			w.idle(ctx)
		}
		// Otherwise more work is expected soon; poll again immediately.
	}
}

// idle suspends the loop until WakeUp or the sleep window elapses,
// whichever comes first, then enforces the minSleep floor.
func (w *Worker[T]) idle(ctx context.Context) {
	start := time.Now()
	timer := time.NewTimer(w.maxSleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-w.wake:
	case <-timer.C:
	}

	if remaining := w.minSleep - time.Since(start); remaining > 0 {
		floor := time.NewTimer(remaining)
		defer floor.Stop()
		select {
		case <-ctx.Done():
		case <-floor.C:
		}
	}
}
