package service

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter throttles expensive requests per key (a participant ID for
// generation calls, a client address for sign-in). Each key holds up to
// burst tokens that refill at rate per second.
type RateLimiter struct {
	mu      sync.Mutex
	keys    map[string]*allowance
	rate    float64
	burst   float64
	idleTTL time.Duration
	now     func() time.Time
}

type allowance struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter. Idle keys are swept until ctx is done.
func NewRateLimiter(ctx context.Context, rate, burst float64) *RateLimiter {
	rl := &RateLimiter{
		keys:    make(map[string]*allowance),
		rate:    rate,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	go rl.sweep(ctx, 5*time.Minute)
	return rl
}

// Allow spends one token for key. When none is left it returns false and
// how long until the next token is available.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	a, ok := rl.keys[key]
	if !ok {
		a = &allowance{tokens: rl.burst, seen: now}
		rl.keys[key] = a
	}
	a.tokens = min(a.tokens+now.Sub(a.seen).Seconds()*rl.rate, rl.burst)
	a.seen = now

	if a.tokens >= 1 {
		a.tokens--
		return true, 0
	}
	if rl.rate <= 0 {
		return false, rl.idleTTL
	}
	wait := (1 - a.tokens) / rl.rate
	return false, time.Duration(math.Ceil(wait * float64(time.Second)))
}

// Len is the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.keys)
}

func (rl *RateLimiter) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idleTTL)
	for key, a := range rl.keys {
		if a.seen.Before(cutoff) {
			delete(rl.keys, key)
		}
	}
}
