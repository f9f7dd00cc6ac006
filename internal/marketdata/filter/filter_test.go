package filter

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func tick(symbol string, price float64, offset time.Duration) model.Tick {
	return model.Tick{Symbol: symbol, Price: price, TS: time.Unix(0, 0).UTC().Add(offset)}
}

func TestOutlierDroppedWithinWindow(t *testing.T) {
	f := New(Config{PctThreshold: 0.05, Confirm: 3, Window: 10})

	for i := 0; i < 5; i++ {
		if _, keep := f.Apply(tick("AAPL", 100, time.Duration(i)*time.Second)); !keep {
			t.Fatalf("expected stable-price tick %d to be accepted", i)
		}
	}

	_, keep := f.Apply(tick("AAPL", 200, 5*time.Second))
	if keep {
		t.Fatalf("expected a single 100%% spike to be rejected as an outlier")
	}
}

func TestReanchorsAfterConfirmConsecutiveOutliers(t *testing.T) {
	var reanchored bool
	f := New(Config{PctThreshold: 0.05, Confirm: 2, Window: 10})
	f.OnReanchor = func(symbol string, level float64) { reanchored = true }

	for i := 0; i < 5; i++ {
		f.Apply(tick("AAPL", 100, time.Duration(i)*time.Second))
	}

	_, keep1 := f.Apply(tick("AAPL", 150, 5*time.Second))
	if keep1 {
		t.Fatalf("expected first outlier to be rejected")
	}
	_, keep2 := f.Apply(tick("AAPL", 150, 6*time.Second))
	if !keep2 {
		t.Fatalf("expected second consecutive outlier to force a reanchor and be accepted")
	}
	if !reanchored {
		t.Errorf("expected OnReanchor to fire")
	}
}

func TestClampBoundsAcceptedPrice(t *testing.T) {
	f := New(Config{PctThreshold: 0.50, Confirm: 3, ClampPct: 0.02, Window: 10})

	f.Apply(tick("AAPL", 100, 0))
	out, keep := f.Apply(tick("AAPL", 101, time.Second))
	if !keep {
		t.Fatalf("expected a small move to be accepted")
	}
	if out.Price > 102.0001 {
		t.Errorf("expected clamp to cap price near 102, got %v", out.Price)
	}
}

func TestFirstTickAlwaysAccepted(t *testing.T) {
	f := New(Config{})
	_, keep := f.Apply(tick("AAPL", 1000000, 0))
	if !keep {
		t.Fatalf("expected first tick for a symbol to always be accepted (no history yet)")
	}
}
