package app

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// SharedCallTimeout bounds a call shared by concurrent callers once it no
// longer follows any single caller's context.
const SharedCallTimeout = 30 * time.Second

// SharedCall runs fn once per key for all concurrent callers. fn does not
// inherit the cancellation of whichever caller started it; every caller stops
// waiting when its own ctx is done.
func SharedCall[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SharedCallTimeout)
		defer cancel()
		return fn(callCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
