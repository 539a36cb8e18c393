// Package journal keeps an append-only record of bulk deletion outcomes in
// BadgerDB, so that an operator can see afterwards what a cleanup run removed
// and what it could not.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrRunNotFound is returned when a run id has no entries.
var ErrRunNotFound = errors.New("run not found in journal")

// Outcome is the result of processing one deletion candidate.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeFailed  Outcome = "failed"
	// OutcomeSkipped marks a candidate that was never sent to the store,
	// e.g. because it had no identifier. It counts as a failure.
	OutcomeSkipped Outcome = "skipped"
)

// Entry is one journaled outcome.
type Entry struct {
	RunID   string    `json:"run_id"`
	GraphID string    `json:"graph_id"`
	Kind    string    `json:"kind"`
	UUID    string    `json:"uuid,omitempty"`
	Name    string    `json:"name,omitempty"`
	Outcome Outcome   `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// RunSummary aggregates the entries of one run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	GraphID    string    `json:"graph_id"`
	Kind       string    `json:"kind"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Journal stores entries under run/<run id>/<sequence>.
type Journal struct {
	db  *badger.DB
	ttl time.Duration
	seq atomic.Uint64
}

const runPrefix = "run/"

// Open opens or creates a journal at path. Entries older than ttl expire;
// a zero ttl keeps them forever.
func Open(path string, ttl time.Duration) (*Journal, error) {
	return open(badger.DefaultOptions(path), ttl)
}

// OpenInMemory creates a journal that lives only as long as the process.
func OpenInMemory(ttl time.Duration) (*Journal, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), ttl)
}

func open(opts badger.Options, ttl time.Duration) (*Journal, error) {
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	j := &Journal{db: db, ttl: ttl}
	j.seq.Store(uint64(time.Now().UnixNano()))
	return j, nil
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.RunID == "" {
		return errors.New("journal entry requires a run id")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	key := fmt.Sprintf("%s%s/%020d", runPrefix, entry.RunID, j.seq.Add(1))
	return j.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if j.ttl > 0 {
			e = e.WithTTL(j.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Entries returns the entries of one run in the order they were recorded.
func (j *Journal) Entries(runID string) ([]Entry, error) {
	entries, err := j.scan(runPrefix + runID + "/")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return entries, nil
}

// Runs summarizes every run in the journal, most recent first.
func (j *Journal) Runs() ([]RunSummary, error) {
	entries, err := j.scan(runPrefix)
	if err != nil {
		return nil, err
	}

	byRun := map[string]*RunSummary{}
	for _, e := range entries {
		s, ok := byRun[e.RunID]
		if !ok {
			s = &RunSummary{RunID: e.RunID, GraphID: e.GraphID, Kind: e.Kind, StartedAt: e.At}
			byRun[e.RunID] = s
		}
		if e.Outcome == OutcomeDeleted {
			s.Deleted++
		} else {
			s.Failed++
		}
		if e.At.Before(s.StartedAt) {
			s.StartedAt = e.At
		}
		if e.At.After(s.FinishedAt) {
			s.FinishedAt = e.At
		}
	}

	runs := make([]RunSummary, 0, len(byRun))
	for _, s := range byRun {
		runs = append(runs, *s)
	}
	sort.Slice(runs, func(a, b int) bool {
		return runs[a].StartedAt.After(runs[b].StartedAt)
	})
	return runs, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) scan(prefix string) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("failed to decode journal entry %s: %w", strings.TrimPrefix(string(item.Key()), runPrefix), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
