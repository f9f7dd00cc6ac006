package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"trading-systemv1/internal/model"
)

// CandleStoreConfig configures the file-backed candle store.
type CandleStoreConfig struct {
	Root string // defaults to "data" when empty
}

// CandleStore implements model.CandleStore as NDJSON partitioned files:
// <root>/candles/<tf>/YYYY/MM/DD/<symbol>.ndjson, one line per candle,
// partitioned by the candle's ts_start_utc date. Grounded on
// original_source/backend/dataplane/file_store.py's FileCandleStore.
type CandleStore struct {
	root  string
	locks *pathLocks
}

// NewCandleStore creates a CandleStore rooted at cfg.Root.
func NewCandleStore(cfg CandleStoreConfig) *CandleStore {
	root := cfg.Root
	if root == "" {
		root = "data"
	}
	return &CandleStore{root: root, locks: newPathLocks()}
}

func (s *CandleStore) path(c model.Candle) string {
	return filepath.Join(datePath(s.root, c.TSStart, "candles", c.TFLabel), sanitizeSymbol(c.Symbol)+".ndjson")
}

// WriteCandle appends a candle, or — if a candle for the same
// ts_start_utc bucket already exists in that day's file (a late
// re-emission within the aggregator's lateness tolerance) — replaces it
// in place rather than duplicating it, per the CandleStore contract.
func (s *CandleStore) WriteCandle(ctx context.Context, c model.Candle) error {
	path := s.path(c)
	lock := s.locks.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	line, err := marshalLine(c)
	if err != nil {
		return err
	}

	existing, err := readLines(path)
	if err != nil {
		return err
	}
	if existing == nil {
		return appendLine(path, line)
	}

	replaced := false
	out := make([][]byte, 0, len(existing)+1)
	for _, l := range existing {
		var prior model.Candle
		if err := json.Unmarshal(l, &prior); err == nil && prior.TSStart.Equal(c.TSStart) && prior.Symbol == c.Symbol && prior.TFLabel == c.TFLabel {
			out = append(out, line)
			replaced = true
			continue
		}
		out = append(out, l)
	}
	if !replaced {
		out = append(out, line)
	}
	return rewriteFile(path, out)
}

// ReadCandles returns every candle for (symbol, tfLabel) whose
// ts_start_utc (as a Unix-seconds timestamp) is at or after afterTS,
// ascending. Scans every partitioned day file for this symbol/timeframe
// since the port does not bound the upper end of the range.
func (s *CandleStore) ReadCandles(ctx context.Context, symbol, tfLabel string, afterTS int64) ([]model.Candle, error) {
	tfRoot := filepath.Join(s.root, "candles", tfLabel)
	target := sanitizeSymbol(symbol) + ".ndjson"

	var out []model.Candle
	err := filepath.WalkDir(tfRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Base(path) != target {
			return nil
		}

		lock := s.locks.lockFor(path)
		lock.Lock()
		lines, readErr := readLines(path)
		lock.Unlock()
		if readErr != nil {
			return readErr
		}
		for _, l := range lines {
			var c model.Candle
			if err := json.Unmarshal(l, &c); err != nil {
				return fmt.Errorf("file store: unmarshal candle in %s: %w", path, err)
			}
			if c.TSStart.Unix() >= afterTS {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file store: read candles %s/%s: %w", tfLabel, symbol, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TSStart.Before(out[j].TSStart) })
	return out, nil
}

// Close is a no-op: the store holds no persistent connection.
func (s *CandleStore) Close() error { return nil }

var _ model.CandleStore = (*CandleStore)(nil)
