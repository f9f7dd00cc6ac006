package file

import (
	"context"
	"path/filepath"

	"trading-systemv1/internal/model"
)

// ProposalStoreConfig configures the file-backed proposal store.
type ProposalStoreConfig struct {
	Root string // defaults to "data" when empty
}

// ProposalStore implements model.ProposalStore as an append-only NDJSON
// file: <root>/proposals/YYYY/MM/DD/proposals.ndjson, partitioned by the
// proposal's underlying intent's created_at_utc date.
type ProposalStore struct {
	root  string
	locks *pathLocks
}

// NewProposalStore creates a ProposalStore rooted at cfg.Root.
func NewProposalStore(cfg ProposalStoreConfig) *ProposalStore {
	root := cfg.Root
	if root == "" {
		root = "data"
	}
	return &ProposalStore{root: root, locks: newPathLocks()}
}

func (s *ProposalStore) path(p model.OrderProposal) string {
	return filepath.Join(datePath(s.root, p.Intent.CreatedAtUTC, "proposals"), "proposals.ndjson")
}

// WriteProposal appends p to its day-partitioned file.
func (s *ProposalStore) WriteProposal(ctx context.Context, p model.OrderProposal) error {
	path := s.path(p)
	lock := s.locks.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	line, err := marshalLine(p)
	if err != nil {
		return err
	}
	return appendLine(path, line)
}

// Close is a no-op: the store holds no persistent connection.
func (s *ProposalStore) Close() error { return nil }

var _ model.ProposalStore = (*ProposalStore)(nil)
