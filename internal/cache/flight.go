package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// flightTimeout bounds a shared fetch once it no longer follows any caller
const flightTimeout = 2 * time.Minute

// share runs fetch at most once per key across concurrent callers. The
// fetch is detached from the caller that started it, so one caller giving
// up never fails the others; each caller still returns as soon as its own
// ctx is done.
func share[V any](ctx context.Context, group *singleflight.Group, key string, fetch func(ctx context.Context) (V, error)) (V, bool, error) {
	ch := group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return fetch(fctx)
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		return res.Val.(V), res.Shared, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}
