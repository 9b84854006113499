package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one concurrent branch.
type Outcome[T any] struct {
	Value T
	Err   error
}

// SettleAll runs every task concurrently and waits until each has either
// returned or hit its own timeout. A failing or slow task never cancels the
// others; its error is reported in its slot. Panics become errors. Results
// keep the order of tasks.
func SettleAll[T any](ctx context.Context, timeout time.Duration, tasks []func(context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))

	// Branches always return nil so the group never short-circuits.
	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcomes[i] = runBounded(ctx, timeout, task)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func runBounded[T any](parent context.Context, timeout time.Duration, task func(context.Context) (T, error)) Outcome[T] {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()

	done := make(chan Outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome[T]{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := task(ctx)
		done <- Outcome[T]{Value: v, Err: err}
	}()

	// A task that ignores ctx is abandoned once its deadline passes.
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		var zero T
		return Outcome[T]{Value: zero, Err: ctx.Err()}
	}
}
