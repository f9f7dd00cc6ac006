package retry

import (
	"sync"
)

// BufferedWriter wraps a CircuitBreaker so that, while the breaker is
// open, writes are not lost: each failed-due-to-open call is captured as
// a replay closure and queued, then replayed in order once the breaker
// closes again. Bounded by maxBuffered; once full, the oldest pending
// write is dropped to make room for the newest (spec.md §7: a resilience
// layer favors availability of the newest state over completeness of
// the backlog).
//
// Generalized from the teacher's Redis tf_candle/candle_1s buffered
// writer, which buffered by marshaling each payload and switching on a
// string write-type tag at flush time. Buffering the replay closure
// itself instead means BufferedWriter has no knowledge of what it is
// writing — it works for any Execute-shaped write, not just candles.
type BufferedWriter struct {
	cb *CircuitBreaker

	mu          sync.Mutex
	buffer      []func() error
	maxBuffered int

	// OnBuffer is called (with the new pending count) whenever a write is
	// queued instead of applied immediately.
	OnBuffer func(pending int)
	// OnFlush is called after a flush completes with how many writes
	// were successfully replayed and how many failed and were dropped.
	OnFlush func(replayed, failed int)
}

// NewBufferedWriter wraps cb. maxBuffered <= 0 means 10000.
func NewBufferedWriter(cb *CircuitBreaker, maxBuffered int) *BufferedWriter {
	if maxBuffered <= 0 {
		maxBuffered = 10000
	}
	bw := &BufferedWriter{
		cb:          cb,
		buffer:      make([]func() error, 0, 64),
		maxBuffered: maxBuffered,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}
	return bw
}

// Write executes fn through the circuit breaker. If the breaker is open,
// fn is queued for replay instead of being dropped; any other error from
// fn is returned to the caller unchanged.
func (bw *BufferedWriter) Write(fn func() error) error {
	err := bw.cb.Execute(fn)
	if err == ErrCircuitOpen {
		bw.enqueue(fn)
		return nil
	}
	return err
}

func (bw *BufferedWriter) enqueue(fn func() error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuffered {
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, fn)

	if bw.OnBuffer != nil {
		bw.OnBuffer(len(bw.buffer))
	}
}

func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	pending := bw.buffer
	bw.buffer = make([]func() error, 0, 64)
	bw.mu.Unlock()

	replayed, failed := 0, 0
	for _, fn := range pending {
		if err := bw.cb.Execute(fn); err != nil {
			failed++
			continue
		}
		replayed++
	}

	if bw.OnFlush != nil {
		bw.OnFlush(replayed, failed)
	}
}

// PendingCount returns the number of writes queued for replay.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
