// Package bridge runs work submitted from one execution context (the web API,
// Discord event handlers) on a fixed set of worker goroutines and hands the
// result back to the caller within a deadline.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrTimeout is returned when a call does not finish before its deadline.
	// The job's context is cancelled when this happens.
	ErrTimeout = errors.New("bridge call timed out")

	// ErrStopped is returned when the bridge is no longer running.
	ErrStopped = errors.New("bridge stopped")
)

var callDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "bridge_call_duration_seconds",
		Help: "Duration of calls submitted to the bridge",
	},
	[]string{"outcome"},
)

// Job is a unit of work. It must return promptly once ctx is done.
type Job func(ctx context.Context) error

type call struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Bridge executes jobs on its workers.
type Bridge struct {
	l       *slog.Logger
	workers int
	calls   chan *call

	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a bridge with the given number of workers. Run must be called
// before jobs are executed.
func New(l *slog.Logger, workers int) *Bridge {
	if workers < 1 {
		workers = 1
	}

	return &Bridge{
		l:       l,
		workers: workers,
		calls:   make(chan *call),
		stopped: make(chan struct{}),
	}
}

// Run starts the workers and blocks until ctx is done and every worker has
// returned.
func (b *Bridge) Run(ctx context.Context) {
	wg := new(sync.WaitGroup)
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.work(ctx)
		}()
	}

	<-ctx.Done()
	b.stopOnce.Do(func() { close(b.stopped) })
	wg.Wait()
}

func (b *Bridge) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.calls:
			c.done <- b.exec(c)
		}
	}
}

func (b *Bridge) exec(c *call) (err error) {
	if err := c.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.l.Error("bridge job panicked", slog.Any("panic", r))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return c.job(c.ctx)
}

// Call submits job and waits for it to finish. If timeout elapses first, the
// job's context is cancelled and ErrTimeout is returned. Cancelling ctx has the
// same effect and returns the context's error.
func (b *Bridge) Call(ctx context.Context, timeout time.Duration, job Job) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := b.call(ctx, job)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
		b.l.Warn("bridge call timed out", slog.Duration("timeout", timeout))
	case errors.Is(err, ErrStopped):
		outcome = "stopped"
	case err != nil:
		outcome = "error"
	}
	callDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return err
}

func (b *Bridge) call(ctx context.Context, job Job) error {
	c := &call{
		ctx:  ctx,
		job:  job,
		done: make(chan error, 1),
	}

	select {
	case b.calls <- c:
	case <-b.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctxErr(ctx)
	}

	select {
	case err := <-c.done:
		// A job that noticed its own deadline reports it the same way.
		if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		return ctxErr(ctx)
	}
}

func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

