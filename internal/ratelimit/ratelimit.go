package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"hackid/internal/config"
	pkgredis "hackid/pkg/redis"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a limiter check for a single request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter enforces a requests-per-minute budget per key. A limit of zero or
// less means the key is exempt.
type Limiter interface {
	Allow(ctx context.Context, key string, limitRPM int) (Decision, error)
}

var Module = fx.Module("ratelimit", fx.Provide(Provide))

type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Redis     *redis.Client `optional:"true"`
}

// Provide selects the limiter backend. The in-memory sliding window is the
// default; counters reset on process restart and are not shared between
// instances, which the redis backend addresses.
func Provide(p Params) Limiter {
	if p.Config.RateLimit.Backend == "redis" {
		rdb := p.Redis
		if rdb == nil {
			rdb = pkgredis.New(p.Lifecycle, p.Config)
		}
		if rdb != nil {
			return NewRedisLimiter(rdb)
		}
		zap.L().Warn("redis rate limiter requested but no redis address configured, falling back to memory")
	}
	return NewSlidingWindow()
}

const window = time.Minute

// SlidingWindow is an in-memory limiter that tracks request timestamps per
// key inside a trailing 60-second window.
type SlidingWindow struct {
	mu       sync.Mutex
	now      func() time.Time
	requests map[string][]time.Time
}

func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
}

func (l *SlidingWindow) Allow(_ context.Context, key string, limitRPM int) (Decision, error) {
	if limitRPM <= 0 {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	recent := l.requests[key]
	for len(recent) > 0 && recent[0].Before(cutoff) {
		recent = recent[1:]
	}

	if len(recent) >= limitRPM {
		l.requests[key] = recent
		return Decision{
			Allowed:   false,
			Limit:     limitRPM,
			Remaining: 0,
			Reset:     recent[0].Add(window),
		}, nil
	}

	recent = append(recent, now)
	l.requests[key] = recent
	return Decision{
		Allowed:   true,
		Limit:     limitRPM,
		Remaining: limitRPM - len(recent),
		Reset:     recent[0].Add(window),
	}, nil
}

// Reset clears the counters for a key.
func (l *SlidingWindow) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, key)
}

// Cleanup drops keys with no requests inside the current window.
func (l *SlidingWindow) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	for key, recent := range l.requests {
		for len(recent) > 0 && recent[0].Before(cutoff) {
			recent = recent[1:]
		}
		if len(recent) == 0 {
			delete(l.requests, key)
			continue
		}
		l.requests[key] = recent
	}
}
