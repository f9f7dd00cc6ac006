package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

// fakeSource connects successfully n times, sending ticks then failing,
// before finally blocking until ctx is cancelled.
type fakeSource struct {
	mu        sync.Mutex
	attempts  int
	failUntil int
}

func (f *fakeSource) Connect(ctx context.Context, tickCh chan<- model.Tick) error {
	f.mu.Lock()
	f.attempts++
	attempt := f.attempts
	f.mu.Unlock()

	if attempt <= f.failUntil {
		select {
		case tickCh <- model.Tick{Symbol: "AAPL", Price: 100, TS: time.Now().UTC()}:
		case <-ctx.Done():
			return nil
		}
		return errors.New("simulated disconnect")
	}

	select {
	case tickCh <- model.Tick{Symbol: "AAPL", Price: 101, TS: time.Now().UTC()}:
	case <-ctx.Done():
		return nil
	}
	<-ctx.Done()
	return nil
}

// burstSource sends n ticks on its first connection, then blocks until ctx
// is cancelled.
type burstSource struct{ n int }

func (b burstSource) Connect(ctx context.Context, tickCh chan<- model.Tick) error {
	for i := 0; i < b.n; i++ {
		select {
		case tickCh <- model.Tick{Symbol: "AAPL", Price: 100 + float64(i), TS: time.Now().UTC()}:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func TestRunnerReconnectsAndRecovers(t *testing.T) {
	src := &fakeSource{failUntil: 2}
	r := New(src, Config{BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan model.Tick, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, out) }()

	received := 0
	timeout := time.After(1500 * time.Millisecond)
	for received < 3 {
		select {
		case <-out:
			received++
		case <-timeout:
			t.Fatalf("expected at least 3 ticks across reconnects, got %d", received)
		}
	}
	cancel()
	<-errCh
}

func TestRunnerMaxRetryWindowExceeded(t *testing.T) {
	src := &fakeSource{failUntil: 1000}
	r := New(src, Config{
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MaxRetryWindow: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan model.Tick, 64)
	err := r.Run(ctx, out)
	if !errors.Is(err, ErrMaxRetryWindowExceeded) {
		t.Fatalf("expected ErrMaxRetryWindowExceeded, got %v", err)
	}
}

func TestRunnerDropsOnFullQueue(t *testing.T) {
	src := burstSource{n: 5}
	var drops int
	var mu sync.Mutex
	r := New(src, Config{
		QueueSize: 1,
		OnDrop: func(t model.Tick) {
			mu.Lock()
			drops++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := make(chan model.Tick) // unbuffered, never read — forces backpressure
	_ = r.Run(ctx, out)

	// Queue capacity 1 plus at most one tick held by the forwarder leaves
	// at least 3 of the 5 ticks dropped.
	mu.Lock()
	defer mu.Unlock()
	if drops < 3 {
		t.Fatalf("expected at least 3 dropped ticks with a full queue, got %d", drops)
	}
}

func TestFullJitterBackoffBounded(t *testing.T) {
	base := 1 * time.Second
	cap := 60 * time.Second
	for attempt := 0; attempt < 10; attempt++ {
		d := fullJitterBackoff(attempt, base, cap)
		if d < 0 || d > cap {
			t.Fatalf("attempt %d: backoff %s out of bounds [0, %s]", attempt, d, cap)
		}
	}
}
