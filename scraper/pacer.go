package scraper

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum gap between consecutive requests to the
// same upstream host. The gap applies on every path, including after
// a failed extraction; skipping it on errors is exactly what trips
// anti-scraping defenses.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until at least the configured interval has passed since
// the previous Wait returned, or until ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	elapsed := time.Since(p.lastCall)
	var sleep time.Duration
	if !p.lastCall.IsZero() && elapsed < p.interval {
		sleep = p.interval - elapsed
	}
	p.lastCall = time.Now().Add(sleep)
	p.mu.Unlock()

	if sleep <= 0 {
		return nil
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
