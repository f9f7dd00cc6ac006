package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func TestWriteTickAppendsToDatePartitionedFile(t *testing.T) {
	root := t.TempDir()
	store := NewTickStore(TickStoreConfig{Root: root})
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	tick := model.Tick{Symbol: "BRK.B", TS: ts, Price: 400, Size: 10}
	if err := store.WriteTick(ctx, tick); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(root, "ticks", "2026", "03", "01", "BRK.B.ndjson")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected tick file at %s, got error: %v", want, err)
	}
}

func TestWriteTickAppendsMultipleLines(t *testing.T) {
	root := t.TempDir()
	store := NewTickStore(TickStoreConfig{Root: root})
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		tick := model.Tick{Symbol: "AAPL", TS: ts.Add(time.Duration(i) * time.Second), Price: 100, Size: 1}
		if err := store.WriteTick(ctx, tick); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	path := filepath.Join(root, "ticks", "2026", "03", "01", "AAPL.ndjson")
	lines, err := readLines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 appended lines, got %d", len(lines))
	}
}
