// Package stream implements the broker-agnostic market-data ingest half of
// spec §4.4: a reconnecting Source wrapper around a raw feed connection,
// full-jitter exponential backoff, a max-retry-window fatal cutoff, and a
// bounded backpressure queue between network receive and the aggregator.
//
// This generalizes the teacher's Angel One-specific pkg/smartconnect /
// internal/marketdata/ws pairing into a feed-agnostic Source interface so
// any transport (this module ships WebSocketSource) can drive the same
// reconnect/backoff/backpressure machinery.
package stream

import (
	"context"
	"errors"
	"log"
	"time"

	"trading-systemv1/internal/model"
)

// Source is a single market-data connection. Connect blocks until ctx is
// cancelled or the connection drops, delivering ticks to tickCh and
// returning the error that ended the connection (nil on clean ctx
// cancellation). Implementations must not buffer internally — backpressure
// is Runner's job.
type Source interface {
	Connect(ctx context.Context, tickCh chan<- model.Tick) error
}

// ErrMaxRetryWindowExceeded is returned by Run when the reconnect loop has
// spent longer than Config.MaxRetryWindow failing to stay connected,
// signalling the supervisor should treat ingest as fatally down.
var ErrMaxRetryWindowExceeded = errors.New("stream: max retry window exceeded without a sustained connection")

// Config holds the reconnect/backpressure knobs from spec §4.4.
type Config struct {
	// BaseBackoff is the first retry delay's upper bound. Default 1s.
	BaseBackoff time.Duration
	// MaxBackoff caps the full-jitter backoff window. Default 60s.
	MaxBackoff time.Duration
	// MaxRetryWindow is the longest span of continuous reconnect failure
	// tolerated before Run gives up with ErrMaxRetryWindowExceeded.
	// Default 15 minutes.
	MaxRetryWindow time.Duration
	// QueueSize bounds the tick queue between Source.Connect and the
	// consumer passed to Run. Default 4096.
	QueueSize int

	// OnReconnect is called before each reconnect attempt (attempt is
	// 0-based) with the backoff delay about to be slept.
	OnReconnect func(attempt int, delay time.Duration)
	// OnDrop is called whenever the bounded queue is full and a tick is
	// dropped rather than blocking the network-receive goroutine.
	OnDrop func(t model.Tick)
	// OnTick is called for every tick received from the Source, before it
	// is offered to the queue (so also for a tick that is then dropped),
	// independent of how fast the consumer drains.
	OnTick func(t model.Tick)
}

func (c *Config) defaults() {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 1 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.MaxRetryWindow <= 0 {
		c.MaxRetryWindow = 15 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
}

// Runner drives a Source with reconnect/backoff/backpressure around it.
type Runner struct {
	src Source
	cfg Config
}

// New builds a Runner over src with cfg (zero-value fields take the
// spec §4.4 defaults).
func New(src Source, cfg Config) *Runner {
	cfg.defaults()
	return &Runner{src: src, cfg: cfg}
}

// Run connects (and reconnects) to src, pushing admitted ticks to out until
// ctx is cancelled, the Source returns a clean nil error under a cancelled
// ctx, or the max retry window elapses without a sustained connection — in
// which case Run returns ErrMaxRetryWindowExceeded. "Sustained" means at
// least one tick was received post-connect, which resets the attempt
// counter and the retry-window clock per spec §4.4.
func (r *Runner) Run(ctx context.Context, out chan<- model.Tick) error {
	queue := make(chan model.Tick, r.cfg.QueueSize)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-queue:
				if !ok {
					return
				}
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	defer func() {
		close(queue)
		<-done
	}()

	attempt := 0
	windowStart := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		gotTick := false
		markTick := func(t model.Tick) {
			if !gotTick {
				gotTick = true
				attempt = 0
				windowStart = time.Now()
			}
			if r.cfg.OnTick != nil {
				r.cfg.OnTick(t)
			}
			select {
			case queue <- t:
			default:
				if r.cfg.OnDrop != nil {
					r.cfg.OnDrop(t)
				}
			}
		}

		err := r.connectOnce(ctx, markTick)
		if err == nil {
			return nil // clean shutdown
		}

		if time.Since(windowStart) > r.cfg.MaxRetryWindow {
			return ErrMaxRetryWindowExceeded
		}

		delay := fullJitterBackoff(attempt, r.cfg.BaseBackoff, r.cfg.MaxBackoff)
		if r.cfg.OnReconnect != nil {
			r.cfg.OnReconnect(attempt, delay)
		} else {
			log.Printf("[stream] disconnected (%v), reconnecting in %s (attempt %d)", err, delay, attempt)
		}
		attempt++

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectOnce wraps a single Source.Connect call, routing every delivered
// tick through markTick instead of handing the Source a raw channel —
// Source implementations only need to know how to read the wire, not how
// reconnect bookkeeping works.
func (r *Runner) connectOnce(ctx context.Context, markTick func(model.Tick)) error {
	relay := make(chan model.Tick)
	errCh := make(chan error, 1)

	go func() {
		errCh <- r.src.Connect(ctx, relay)
		close(relay)
	}()

	for {
		select {
		case t, ok := <-relay:
			if !ok {
				return <-errCh
			}
			markTick(t)
		case <-ctx.Done():
			return <-errCh
		}
	}
}
