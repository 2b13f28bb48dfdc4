package status

import "context"

// Feeder supplies one part of the charge-point status.
type Feeder[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FeederFunc adapts a plain function to Feeder.
type FeederFunc[T any] func(ctx context.Context) (T, error)

func (f FeederFunc[T]) Fetch(ctx context.Context) (T, error) { return f(ctx) }
