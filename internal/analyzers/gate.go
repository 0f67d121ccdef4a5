package analyzers

import (
	"context"
	"fmt"
	"time"

	"kestrel/internal/cache"
	"kestrel/internal/ratelimit"
)

// RateLimitedError reports that the limiter rejected an upstream call before
// it was made. Analyzers fold it into a neutral "unavailable" result instead
// of failing the scan.
type RateLimitedError struct {
	Service string
	Reason  string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

// Gate fronts every outbound lookup with the result cache and the adaptive
// limiter. A cache hit never consumes limiter budget; a fetch consumes budget
// and feeds its latency and outcome back into the limiter.
type Gate struct {
	Cache   *cache.Cache
	Limiter *ratelimit.AdaptiveLimiter
}

// Do returns the cached payload for kind+target, or admits one fetch through
// the limiter and caches its result. Concurrent callers of the same key share
// a single fetch. A failed fetch is never cached, so the next scan retries.
func (g *Gate) Do(ctx context.Context, service, kind, target string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if g.Cache == nil {
		return g.guarded(ctx, service, fetch)
	}
	return g.Cache.GetOrFetch(ctx, cache.Key(kind, target), 0, func(ctx context.Context) ([]byte, error) {
		return g.guarded(ctx, service, fetch)
	})
}

// DoUncached admits one fetch through the limiter without consulting the
// cache. For lookups whose answers must never be reused.
func (g *Gate) DoUncached(ctx context.Context, service string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return g.guarded(ctx, service, fetch)
}

func (g *Gate) guarded(ctx context.Context, service string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if g.Limiter != nil {
		decision := g.Limiter.TryAcquire(service)
		if !decision.Allowed {
			return nil, &RateLimitedError{Service: service, Reason: decision.Reason}
		}
	}

	started := time.Now()
	payload, err := fetch(ctx)
	if g.Limiter != nil {
		g.Limiter.RecordResponse(service, time.Since(started), err != nil)
	}
	return payload, err
}
