package telemetry

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fernhill/rookery/pkg/types"
)

var bucketRuns = []byte("runs")

// maxRunsPerContainer bounds the retained history per container.
const maxRunsPerContainer = 100

// RunRecord is one finished computation as seen by telemetry.
type RunRecord struct {
	Timestamp  int64        `json:"timestamp"` // milliseconds since epoch
	DurationMS int64        `json:"duration_ms"`
	Result     types.Result `json:"result"`
}

// Store persists per-container run history in BoltDB. It survives
// restarts so estimated durations and health reports do not start cold.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the telemetry database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "rookery.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends a finished run for the container and prunes
// history beyond the retention bound.
func (s *Store) RecordRun(fullName string, rec RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bucketRuns)
		b, err := parent.CreateBucketIfNotExists([]byte(fullName))
		if err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(fmt.Sprintf("%020d", rec.Timestamp)), data); err != nil {
			return err
		}

		// Trim the oldest entries past the cap.
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for len(keys) > maxRunsPerContainer {
			if err := b.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// History returns up to limit of the container's most recent runs,
// newest first. A zero limit returns everything retained.
func (s *Store) History(fullName string, limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns).Bucket([]byte(fullName))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// LastRun returns the most recent run of the container.
func (s *Store) LastRun(fullName string) (RunRecord, bool, error) {
	runs, err := s.History(fullName, 1)
	if err != nil || len(runs) == 0 {
		return RunRecord{}, false, err
	}
	return runs[0], true, nil
}

// Forget drops the container's history, e.g. after a cascade delete.
func (s *Store) Forget(fullName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bucketRuns)
		if parent.Bucket([]byte(fullName)) == nil {
			return nil
		}
		return parent.DeleteBucket([]byte(fullName))
	})
}

// StartOf converts a record timestamp back to wall time.
func (r RunRecord) StartOf() time.Time {
	return time.UnixMilli(r.Timestamp)
}
