// Package cache реализует идемпотентность POST /api/v1/discharge поверх Redis.
//
//	if err := results.Acquire(ctx, clinic, key); errors.Is(err, cache.ErrInProgress) {
//	    // 409
//	}
//	result := orch.Orchestrate(ctx, actor, req)
//	_ = results.Put(ctx, clinic, key, result)
package cache
