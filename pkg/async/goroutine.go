// Package async runs supervised background goroutines. Use it instead of a
// bare `go func()` so panics are logged with a stack trace instead of
// crashing the process.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/careledger/careledger/pkg/observability"
)

// Go executes fn in a goroutine with a timeout and panic recovery. Errors are
// logged, not returned; callers that need the result should not be async.
func Go(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// Forever runs fn in a goroutine and restarts it after a panic or an early
// return, backing off restartDelay between attempts. It stops when ctx is
// cancelled. Long-lived subscribers and pollers run under it.
func Forever(ctx context.Context, logger *observability.Logger, restartDelay time.Duration, taskName string, fn func(context.Context)) {
	go func() {
		for {
			ran := func() (exited bool) {
				defer func() {
					if r := recover(); r != nil {
						logger.WithField("task", taskName).
							WithField("panic", r).
							WithField("stack", string(debug.Stack())).
							Error("supervised task panicked; restarting")
					}
				}()
				fn(ctx)
				return true
			}()

			if ctx.Err() != nil {
				return
			}
			if ran {
				logger.WithField("task", taskName).Warn("supervised task returned; restarting")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}
