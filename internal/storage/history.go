package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"pixload/internal/report"
)

const bucketRuns = "runs"

// RunRecord is the compact per-run entry kept in the history store.
type RunRecord struct {
	ID            string    `json:"id"`
	Scenario      string    `json:"scenario"`
	Timestamp     time.Time `json:"timestamp"`
	Passed        bool      `json:"passed"`
	TotalRequests uint64    `json:"total_requests"`
	ErrorRate     float64   `json:"error_rate"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P95Ms         float64   `json:"p95_ms"`
}

// RecordFromReport projects a full report down to its history entry.
func RecordFromReport(r report.Report) RunRecord {
	return RunRecord{
		ID:            r.RunID,
		Scenario:      r.Scenario,
		Timestamp:     r.Timestamp,
		Passed:        r.Passed,
		TotalRequests: r.Summary.TotalRequests,
		ErrorRate:     r.Summary.ErrorRate,
		ThroughputRPS: r.Summary.Throughput,
		P95Ms:         r.Summary.Latency.P95Ms,
	}
}

// Store keeps run summaries in a bbolt database under ~/.pixload.
type Store struct {
	db *bbolt.DB
}

func Open() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".pixload")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return OpenPath(filepath.Join(dir, "history.db"))
}

func OpenPath(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends one run record. Keys sort by timestamp so List can walk the
// bucket newest-first with a reverse cursor.
func (s *Store) Save(rec RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))

		// Fixed-width timestamp so keys sort chronologically.
		key := []byte(rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000") + "/" + rec.ID)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]RunRecord, error) {
	var records []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get looks a run up by its ID.
func (s *Store) Get(id string) (*RunRecord, error) {
	var found *RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.ID == id {
				found = &rec
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return found, nil
}
