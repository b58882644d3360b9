// Package suggest rate-limits the suggestion lookups triggered by
// keystrokes: a quiet-period debounce per session plus a shared token bucket
// in front of the upstream suggestion endpoint.
package suggest

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrSuperseded reports that a newer lookup for the same key arrived during
// the quiet period; the caller should simply discard this one.
var ErrSuperseded = errors.New("suggestion lookup superseded")

type Fetcher interface {
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}

type Config struct {
	QuietPeriod    time.Duration
	MaxSuggestions int
	// Token bucket applied across all sessions before any upstream call.
	RatePerSecond float64
	Burst         int
}

type Debouncer struct {
	fetcher Fetcher
	cfg     Config
	limiter *rate.Limiter

	mu  sync.Mutex
	seq map[string]uint64
}

func NewDebouncer(fetcher Fetcher, cfg Config) *Debouncer {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = 300 * time.Millisecond
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 8
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Debouncer{
		fetcher: fetcher,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		seq:     make(map[string]uint64),
	}
}

// Lookup waits the quiet period for the key, then fetches suggestions unless
// a newer lookup for the same key arrived while waiting. Only the trailing
// lookup of a rapid burst reaches the upstream.
func (d *Debouncer) Lookup(ctx context.Context, key, query string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	d.seq[key]++
	ticket := d.seq[key]
	d.mu.Unlock()

	if err := waitWithContext(ctx, d.cfg.QuietPeriod); err != nil {
		return nil, err
	}

	d.mu.Lock()
	current := d.seq[key]
	d.mu.Unlock()
	if current != ticket {
		return nil, ErrSuperseded
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return d.fetcher.Suggest(ctx, query, d.cfg.MaxSuggestions)
}

// Forget drops the debounce state for a key, typically on logout.
func (d *Debouncer) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seq, key)
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
