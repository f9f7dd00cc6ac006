package file

import (
	"context"
	"path/filepath"

	"trading-systemv1/internal/model"
)

// TickStoreConfig configures the file-backed tick store.
type TickStoreConfig struct {
	Root string // defaults to "data" when empty
}

// TickStore implements model.TickStore as append-only NDJSON files:
// <root>/ticks/YYYY/MM/DD/<symbol>.ndjson, partitioned by the tick's
// ts_utc date. Ticks are never re-emitted for a given timestamp, so
// unlike CandleStore this is a pure append, no read-modify-write.
type TickStore struct {
	root  string
	locks *pathLocks
}

// NewTickStore creates a TickStore rooted at cfg.Root.
func NewTickStore(cfg TickStoreConfig) *TickStore {
	root := cfg.Root
	if root == "" {
		root = "data"
	}
	return &TickStore{root: root, locks: newPathLocks()}
}

func (s *TickStore) path(t model.Tick) string {
	return filepath.Join(datePath(s.root, t.TS, "ticks"), sanitizeSymbol(t.Symbol)+".ndjson")
}

// WriteTick appends t to its day-partitioned file.
func (s *TickStore) WriteTick(ctx context.Context, t model.Tick) error {
	path := s.path(t)
	lock := s.locks.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	line, err := marshalLine(t)
	if err != nil {
		return err
	}
	return appendLine(path, line)
}

// Close is a no-op: the store holds no persistent connection.
func (s *TickStore) Close() error { return nil }

var _ model.TickStore = (*TickStore)(nil)
