// Package fallback runs an ordered list of strategies, returning the first
// one that succeeds. The order is data, so it can be inspected and tested
// without any network access.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one way of turning an input into an output.
type Strategy[I, O any] struct {
	Name string
	Run  func(ctx context.Context, in I) (O, error)
}

// Chain tries strategies in order.
type Chain[I, O any] struct {
	Strategies []Strategy[I, O]
}

// New builds a chain from the given strategies.
func New[I, O any](strategies ...Strategy[I, O]) Chain[I, O] {
	return Chain[I, O]{Strategies: strategies}
}

// ErrEmptyChain is returned when a chain has no strategies.
var ErrEmptyChain = errors.New("fallback chain has no strategies")

// Run returns the first successful output and the name of the strategy that
// produced it. When every strategy fails the errors are joined. A cancelled
// context stops the chain before the next strategy starts.
func (c Chain[I, O]) Run(ctx context.Context, in I) (O, string, error) {
	var zero O
	if len(c.Strategies) == 0 {
		return zero, "", ErrEmptyChain
	}
	var errs []error
	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := s.Run(ctx, in)
		if err == nil {
			return out, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return zero, "", errors.Join(errs...)
}

// Names lists the strategy names in the order they are tried.
func (c Chain[I, O]) Names() []string {
	names := make([]string, len(c.Strategies))
	for i, s := range c.Strategies {
		names[i] = s.Name
	}
	return names
}
