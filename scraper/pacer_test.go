package scraper

import (
	"context"
	"testing"
	"time"
)

func TestPacerEnforcesDelay(t *testing.T) {
	p := NewPacer(60 * time.Millisecond)
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second wait returned after %v, want >= 50ms", elapsed)
	}
}

func TestPacerFirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first wait blocked for %v", elapsed)
	}
}

func TestPacerCancellation(t *testing.T) {
	p := NewPacer(time.Minute)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected context error from cancelled wait")
	}
}
