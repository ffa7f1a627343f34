package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a single mapFunc call
type Result[E, D any] struct {
	In  E
	Out D
	Err error
}

// Map calls mapFunc for every element of input, at most limit of them at
// once, and yields the results in order of completion. Zero or negative
// limit means no limit. Every input yields exactly one Result: once ctx is
// done, inputs not yet started yield ctx.Err() without calling mapFunc.
// Breaking the loop cancels the context passed to calls still running; Map
// returns after all of them finished.
//
//	for r := range parallel.Map(ctx, 4, ids, f) {}
func Map[E, D any](ctx context.Context, limit int, input []E, mapFunc func(context.Context, E) (D, error)) iter.Seq[Result[E, D]] {
	return func(yield func(Result[E, D]) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		mapped := make(chan Result[E, D])
		stop := make(chan struct{})
		send := func(r Result[E, D]) {
			select {
			case mapped <- r:
			case <-stop:
			}
		}

		go func() {
			defer close(mapped)
			for _, in := range input {
				if err := ctx.Err(); err != nil {
					send(Result[E, D]{In: in, Err: err})
					continue
				}
				g.Go(func() error {
					out, err := mapFunc(ctx, in)
					send(Result[E, D]{In: in, Out: out, Err: err})
					return nil
				})
			}
			_ = g.Wait()
		}()

		for r := range mapped {
			if !yield(r) {
				close(stop)
				cancel()
				for range mapped {
				}
				return
			}
		}
	}
}
