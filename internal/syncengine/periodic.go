package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner invokes a task on a fixed interval until stopped. A failing or
// panicking cycle is logged and the loop continues, optionally on a shorter
// recheck interval.
type Runner struct {
	name            string
	interval        time.Duration
	failureInterval time.Duration
	task            func(context.Context) error
	logger          *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner builds a runner; failureInterval <= 0 falls back to interval.
func NewRunner(name string, interval, failureInterval time.Duration, task func(context.Context) error, logger *slog.Logger) *Runner {
	if failureInterval <= 0 {
		failureInterval = interval
	}
	return &Runner{
		name:            name,
		interval:        interval,
		failureInterval: failureInterval,
		task:            task,
		logger:          logger,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Stop signals the loop, cancels any in-flight cycle and waits for exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Runner) loop() {
	defer close(r.done)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-timer.C:
		}

		next := r.interval
		if err := r.runOnce(); err != nil {
			r.logger.Error("periodic task failed",
				slog.String("task", r.name),
				slog.Any("error", err),
			)
			next = r.failureInterval
		}
		timer.Reset(next)
	}
}

func (r *Runner) runOnce() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	return r.task(ctx)
}
