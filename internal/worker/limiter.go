package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ppiankov/truthindex/internal/llm"
)

// Limiter implements per-key rate limiting. Keys are generation provider
// names: all workers share one budget per provider so a large batch
// cannot stampede the upstream API.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 2
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until the key's limiter admits one event or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if an event is admissible without waiting.
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter
	return limiter
}

// SetKeyRate sets a custom rate limit for a specific key.
func (l *Limiter) SetKeyRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// rateLimitedGenerator gates every Generate call through a shared
// limiter keyed by provider name.
type rateLimitedGenerator struct {
	inner   llm.Generator
	limiter *Limiter
}

// RateLimited wraps a generator with the shared limiter. A nil generator
// passes through untouched.
func RateLimited(gen llm.Generator, limiter *Limiter) llm.Generator {
	if gen == nil || limiter == nil {
		return gen
	}
	return &rateLimitedGenerator{inner: gen, limiter: limiter}
}

func (g *rateLimitedGenerator) Name() string {
	return g.inner.Name()
}

func (g *rateLimitedGenerator) IsAvailable(ctx context.Context) bool {
	return g.inner.IsAvailable(ctx)
}

func (g *rateLimitedGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	if err := g.limiter.Wait(ctx, g.inner.Name()); err != nil {
		return "", err
	}
	return g.inner.Generate(ctx, req)
}
