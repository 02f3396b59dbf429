// Package dispatch bounds calls to unreliable collaborators with a hard
// deadline and fans a single operation out to many of them at once.
//
// Every call yields an Outcome instead of a panic or a dangling goroutine:
//
//	Call ──► fn returns first  ──► Outcome{Value, Err: fn's error}
//	     └─► deadline fires    ──► Outcome{Err: ErrTimeout}
//	     └─► fn panics         ──► Outcome{Err: ErrPanic}
//
// A call that loses the race against its deadline is abandoned: its context
// is cancelled so cancellation-aware callees can stop early, and its result,
// if it ever arrives, is discarded. Call never waits for it.
//
// FanOut runs Call once per index concurrently and joins on all of them.
// One slow or failing callee never delays or cancels its siblings, and each
// outcome lands in the slot of its own index, so no locking is involved.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrTimeout marks an outcome whose callee did not finish before its deadline.
	ErrTimeout = errors.New("deadline exceeded")

	// ErrPanic marks an outcome whose callee panicked.
	ErrPanic = errors.New("callee panicked")
)

// Outcome is the settled result of one bounded call.
// Exactly one of Value or Err is meaningful: Err == nil means success.
type Outcome[T any] struct {
	Value   T             // Result of the callee on success
	Err     error         // Callee error, ErrTimeout or ErrPanic
	Elapsed time.Duration // Wall-clock time until the outcome settled
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Call runs fn with a deadline of timeout and returns as soon as either fn
// finishes or the deadline passes, whichever is first.
//
// Parameters:
//   - ctx: Parent context; cancelling it settles the call immediately
//   - timeout: Hard deadline for fn (<= 0 means only ctx bounds the call)
//   - fn: The callee; it receives a context that is cancelled at the deadline
//
// Returns:
//   - Outcome[T]: Never blocks past the deadline, never panics
//
// Example:
//
//	out := dispatch.Call(ctx, 5*time.Second, func(ctx context.Context) (quote.Quote, error) {
//	    return carrier.Quote(ctx, 12.5, "Porto")
//	})
//	if errors.Is(out.Err, dispatch.ErrTimeout) {
//	    // carrier was too slow
//	}
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	// Returning cancels an abandoned callee.
	defer cancel()

	// Buffered so the callee goroutine can always deliver and exit.
	done := make(chan Outcome[T], 1)
	go func() {
		var out Outcome[T]
		defer func() {
			if r := recover(); r != nil {
				out = Outcome[T]{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
			done <- out
		}()
		value, err := fn(callCtx)
		out = Outcome[T]{Value: value, Err: err}
	}()

	select {
	case out := <-done:
		if out.Err != nil && errors.Is(out.Err, context.DeadlineExceeded) && ctx.Err() == nil {
			out.Err = fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, out.Err)
		}
		out.Elapsed = time.Since(start)
		return out
	case <-callCtx.Done():
		var zero T
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return Outcome[T]{Value: zero, Err: err, Elapsed: time.Since(start)}
	}
}

// FanOut runs fn for every index in [0, n) concurrently, each bounded by
// timeout, and returns once every call has settled. outcomes[i] always holds
// the result of fn(ctx, i), so callers can rely on index order.
//
// Total latency is that of the slowest call, capped at timeout; it is never
// the sum of the individual latencies. n <= 0 returns an empty slice.
func FanOut[T any](ctx context.Context, n int, timeout time.Duration, fn func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	if n <= 0 {
		return []Outcome[T]{}
	}

	outcomes := make([]Outcome[T], n)

	// A plain Group: no derived context, so a failure never cancels siblings.
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			outcomes[i] = Call(ctx, timeout, func(ctx context.Context) (T, error) {
				return fn(ctx, i)
			})
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
