// Package race runs an operation against a timer and reports whichever settles first.
package race

import (
	"context"
	"time"
)

// Winner tags which branch of a race settled first.
type Winner int

const (
	WinnerOperation Winner = iota
	WinnerTimer
	WinnerCancelled
)

func (w Winner) String() string {
	switch w {
	case WinnerOperation:
		return "operation"
	case WinnerTimer:
		return "timer"
	default:
		return "cancelled"
	}
}

// Outcome is the result of a race. Value and Err are only meaningful when
// Winner is WinnerOperation.
type Outcome[T any] struct {
	Value  T
	Err    error
	Winner Winner
}

// TimedOut reports whether the timer won.
func (o Outcome[T]) TimedOut() bool { return o.Winner == WinnerTimer }

type settled[T any] struct {
	value T
	err   error
}

// FirstSettle starts op and returns as soon as op returns, timeout elapses or ctx
// is done. op is not cancelled when it loses: it keeps running with ctx and its
// result is dropped on arrival. A non-positive timeout waits for op or ctx only.
func FirstSettle[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) Outcome[T] {
	done := make(chan settled[T], 1)
	go func() {
		v, err := op(ctx)
		done <- settled[T]{value: v, err: err}
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case r := <-done:
		return Outcome[T]{Value: r.value, Err: r.err, Winner: WinnerOperation}
	case <-timerC:
		return Outcome[T]{Winner: WinnerTimer}
	case <-ctx.Done():
		return Outcome[T]{Err: ctx.Err(), Winner: WinnerCancelled}
	}
}
