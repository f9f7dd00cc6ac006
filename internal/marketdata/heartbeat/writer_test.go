package heartbeat

import (
	"context"
	"sync"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

type fakeActivityStore struct {
	mu    sync.Mutex
	beats []model.HeartbeatInfo
}

func (s *fakeActivityStore) WriteHeartbeat(ctx context.Context, h model.HeartbeatInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats = append(s.beats, h)
	return nil
}
func (s *fakeActivityStore) ReadHeartbeat(ctx context.Context, serviceID string) (model.HeartbeatInfo, error) {
	return model.HeartbeatInfo{}, nil
}
func (s *fakeActivityStore) WriteMarketdataActivity(ctx context.Context, t model.Tick) error {
	return nil
}
func (s *fakeActivityStore) ReadLastMarketdataTS(ctx context.Context) (*int64, error) { return nil, nil }
func (s *fakeActivityStore) CacheVIX(ctx context.Context, value float64) error        { return nil }
func (s *fakeActivityStore) ReadVIX(ctx context.Context) (float64, bool, error)       { return 0, false, nil }
func (s *fakeActivityStore) Close() error                                            { return nil }

func TestWriterWritesImmediatelyAndOnInterval(t *testing.T) {
	store := &fakeActivityStore{}
	w := &Writer{ServiceID: "ingest", Store: store, Interval: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 65*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.beats) < 2 {
		t.Fatalf("expected at least 2 heartbeats (immediate + ticks), got %d", len(store.beats))
	}
	for _, b := range store.beats {
		if b.ServiceID != "ingest" {
			t.Errorf("expected service id 'ingest', got %q", b.ServiceID)
		}
		if b.Status != model.HeartbeatHealthy && b.Status != "running" {
			t.Errorf("unexpected status %q", b.Status)
		}
	}
}

func TestWriterUsesStatusHook(t *testing.T) {
	store := &fakeActivityStore{}
	w := &Writer{
		ServiceID: "ingest",
		Store:     store,
		Interval:  time.Hour,
		Status:    func() string { return "degraded" },
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.beats) != 1 || store.beats[0].Status != "degraded" {
		t.Fatalf("expected one heartbeat with status 'degraded', got %+v", store.beats)
	}
}
