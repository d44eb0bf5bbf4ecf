package grantdata

import (
	"context"
	"time"
)

// Limiter serializes units of work so that at most one is in flight and
// consecutive units start no closer together than a fixed interval. All
// remote grant-data API calls route through one shared instance, so the
// pacing holds globally no matter how many callers submit concurrently.
//
// Ordering is FIFO. A failing unit delivers its error only to its own
// submitter; queued units behind it still run.
type Limiter struct {
	interval time.Duration
	tasks    chan limiterTask
}

type limiterTask struct {
	fn  func() error
	err chan error
}

func NewLimiter(minInterval time.Duration) *Limiter {
	l := &Limiter{
		interval: minInterval,
		tasks:    make(chan limiterTask, 256),
	}
	go l.run()
	return l
}

func (l *Limiter) run() {
	var lastStart time.Time
	for task := range l.tasks {
		if !lastStart.IsZero() {
			if wait := l.interval - time.Since(lastStart); wait > 0 {
				time.Sleep(wait)
			}
		}
		lastStart = time.Now()
		task.err <- task.fn()
	}
}

// Do enqueues fn and blocks until it has run. The context is consulted only
// while waiting for queue space; once enqueued a unit cannot be cancelled.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	task := limiterTask{fn: fn, err: make(chan error, 1)}
	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-task.err
}

// Close stops the worker once the queue drains. Do must not be called after
// Close.
func (l *Limiter) Close() {
	close(l.tasks)
}
