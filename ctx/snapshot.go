package ctx

import (
	"context"
	"time"

	boltdb "github.com/x2ee/c3/db/bolt"
)

const (
	lastRunBucket = "cron_last_run"
	configBucket  = "config_snapshot"
	configDocKey  = "dnodes"
)

// Snapshot is the durable bookkeeping store (spec.md §6 "Durable files"):
// cron tasks' last-run instants, and the loaded configuration document,
// persisted across restarts in one bbolt file. It implements
// cron.LastRunStore directly.
type Snapshot struct {
	db *boltdb.DB
}

// OpenSnapshot opens (or creates) the bbolt database at path and ensures
// its buckets exist.
func OpenSnapshot(path string) (*Snapshot, error) {
	db, err := boltdb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateBucket(lastRunBucket); err != nil {
		return nil, err
	}
	if err := db.CreateBucket(configBucket); err != nil {
		return nil, err
	}
	return &Snapshot{db: db}, nil
}

// Close closes the underlying database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// LastRun implements cron.LastRunStore.
func (s *Snapshot) LastRun(ctx context.Context, hashID string) (time.Time, bool, error) {
	var t time.Time
	if err := s.db.GetJSON(lastRunBucket, hashID, &t); err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// SetLastRun implements cron.LastRunStore.
func (s *Snapshot) SetLastRun(ctx context.Context, hashID string, t time.Time) error {
	return s.db.PutJSON(lastRunBucket, hashID, t)
}

// SaveConfigDocument persists the raw "dnodes" configuration document so
// a restart can detect whether it changed (spec.md §6).
func (s *Snapshot) SaveConfigDocument(doc map[string]any) error {
	return s.db.PutJSON(configBucket, configDocKey, doc)
}

// LoadConfigDocument reads back the last persisted configuration
// document, if any.
func (s *Snapshot) LoadConfigDocument() (map[string]any, bool, error) {
	var doc map[string]any
	if err := s.db.GetJSON(configBucket, configDocKey, &doc); err != nil {
		return nil, false, nil
	}
	return doc, true, nil
}
