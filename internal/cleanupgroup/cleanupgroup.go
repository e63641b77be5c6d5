// Package cleanupgroup collects shutdown steps and runs them in reverse order
// of registration.
package cleanupgroup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type step struct {
	name string
	fn   func(context.Context) error
}

// Group is a list of named cleanup steps. The zero value is ready for use.
type Group struct {
	steps []step
}

// Append registers a cleanup step. Steps run in reverse order.
func (g *Group) Append(name string, fn func(context.Context) error) {
	g.steps = append(g.steps, step{name, fn})
}

// Len returns the number of registered steps.
func (g *Group) Len() int {
	return len(g.steps)
}

// CallWithTimeout is like Call with a context expiring after the given
// duration.
func (g *Group) CallWithTimeout(logger *zap.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return g.Call(ctx, logger)
}

// Call runs all steps, even when some of them fail, and removes them from the
// group. Errors are annotated with the step name.
func (g *Group) Call(ctx context.Context, logger *zap.Logger) error {
	var allErrors error

	steps := g.steps
	g.steps = nil

	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]

		logger.Debug("Running cleanup", zap.String("step", s.name))

		if err := s.fn(ctx); err != nil {
			multierr.AppendInto(&allErrors, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	return allErrors
}
