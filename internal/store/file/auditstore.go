package file

import (
	"context"
	"fmt"
	"path/filepath"

	"trading-systemv1/internal/model"
)

// AuditStoreConfig configures the file-backed audit trail.
type AuditStoreConfig struct {
	Root string // defaults to "data" when empty
}

// AuditStore implements model.AuditStore as an append-only NDJSON file:
// <root>/audit_artifacts/agent_intents/YYYY-MM-DD/intents.ndjson,
// partitioned by a single hyphenated date directory (unlike the nested
// YYYY/MM/DD layout of the other file stores), per spec.md §6. This is
// the durable sibling of internal/intent.Emitter's one-line stdout
// summary: the Emitter calls through an AuditStore to get here.
type AuditStore struct {
	root  string
	locks *pathLocks
}

// NewAuditStore creates an AuditStore rooted at cfg.Root.
func NewAuditStore(cfg AuditStoreConfig) *AuditStore {
	root := cfg.Root
	if root == "" {
		root = "data"
	}
	return &AuditStore{root: root, locks: newPathLocks()}
}

func (s *AuditStore) path(i model.AgentIntent) string {
	d := i.CreatedAtUTC.UTC()
	dir := fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
	return filepath.Join(s.root, "audit_artifacts", "agent_intents", dir, "intents.ndjson")
}

// WriteIntent appends i to its day-partitioned audit file. Callers are
// expected to have already applied internal/intent.Redact to i's
// rationale before calling this — AuditStore persists whatever it is
// given verbatim.
func (s *AuditStore) WriteIntent(ctx context.Context, i model.AgentIntent) error {
	path := s.path(i)
	lock := s.locks.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	line, err := marshalLine(i)
	if err != nil {
		return err
	}
	return appendLine(path, line)
}

// Close is a no-op: the store holds no persistent connection.
func (s *AuditStore) Close() error { return nil }

var _ model.AuditStore = (*AuditStore)(nil)
