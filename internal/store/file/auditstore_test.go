package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func TestWriteIntentUsesHyphenatedDateDirectory(t *testing.T) {
	root := t.TempDir()
	store := NewAuditStore(AuditStoreConfig{Root: root})
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	intent, err := model.NewAgentIntent(model.AgentIntent{
		IntentID: "i1", CreatedAtUTC: created, Symbol: "AAPL",
		AssetType: model.AssetEquity, Kind: model.KindDirectional, Side: model.SideBuyIntent,
	})
	if err != nil {
		t.Fatalf("unexpected error building intent: %v", err)
	}

	if err := store.WriteIntent(ctx, intent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(root, "audit_artifacts", "agent_intents", "2026-03-01", "intents.ndjson")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected audit file at %s, got error: %v", want, err)
	}
}

func TestWriteIntentRoundTripsLosslessly(t *testing.T) {
	root := t.TempDir()
	store := NewAuditStore(AuditStoreConfig{Root: root})
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	conf := 0.75
	intent, err := model.NewAgentIntent(model.AgentIntent{
		IntentID: "i1", CreatedAtUTC: created, Symbol: "AAPL", Confidence: &conf,
		AssetType: model.AssetEquity, Kind: model.KindDirectional, Side: model.SideBuyIntent,
		Rationale: model.Rationale{ShortReason: "fast_sma_cross"},
	})
	if err != nil {
		t.Fatalf("unexpected error building intent: %v", err)
	}
	if err := store.WriteIntent(ctx, intent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(root, "audit_artifacts", "agent_intents", "2026-03-01", "intents.ndjson")
	lines, err := readLines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 audit line, got %d", len(lines))
	}

	var got model.AgentIntent
	if err := json.Unmarshal(lines[0], &got); err != nil {
		t.Fatalf("unexpected error decoding audit line: %v", err)
	}
	if got.IntentID != "i1" || got.Symbol != "AAPL" || !got.CreatedAtUTC.Equal(created) {
		t.Errorf("expected identity fields to round-trip, got %+v", got)
	}
	if got.Confidence == nil || *got.Confidence != 0.75 {
		t.Errorf("expected confidence 0.75 to round-trip, got %v", got.Confidence)
	}
	if got.Rationale.ShortReason != "fast_sma_cross" {
		t.Errorf("expected rationale short_reason to round-trip, got %q", got.Rationale.ShortReason)
	}
}
