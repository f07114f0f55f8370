// Package storage persists engine options and completed analysis results in
// a local BadgerDB database.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyOptions = "options"

// analysisKey builds the record key for a position hash.
func analysisKey(hash uint64) []byte {
	return []byte(fmt.Sprintf("analysis/%016x", hash))
}

// Options are the persisted engine settings.
type Options struct {
	Threads  int       `json:"threads"`
	HashMB   int       `json:"hash_mb"`
	EvalFile string    `json:"eval_file"`
	LastUsed time.Time `json:"last_used"`
}

// DefaultOptions returns the settings used before anything is persisted.
func DefaultOptions() *Options {
	return &Options{
		Threads: 1,
		HashMB:  64,
	}
}

// AnalysisRecord stores the outcome of a completed search for one position.
type AnalysisRecord struct {
	BestMove string    `json:"best_move"`
	Score    int       `json:"score"`
	Depth    int       `json:"depth"`
	Nodes    uint64    `json:"nodes"`
	When     time.Time `json:"when"`
}

// Storage wraps BadgerDB.
type Storage struct {
	db *badger.DB
}

// Open opens the database in the default data directory.
func Open() (*Storage, error) {
	dbDir, err := DatabaseDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dbDir)
}

// OpenAt opens the database at an explicit path.
func OpenAt(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dir, err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveOptions persists the engine settings.
func (s *Storage) SaveOptions(opts *Options) error {
	opts.LastUsed = time.Now()

	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyOptions), data)
	})
}

// LoadOptions returns the persisted settings, or defaults when none exist.
func (s *Storage) LoadOptions() (*Options, error) {
	opts := DefaultOptions()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyOptions))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, opts)
		})
	})

	return opts, err
}

// SaveAnalysis records a completed search for the position hash.
func (s *Storage) SaveAnalysis(hash uint64, rec *AnalysisRecord) error {
	rec.When = time.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(analysisKey(hash), data)
	})
}

// LoadAnalysis returns the record for a position hash, if any.
func (s *Storage) LoadAnalysis(hash uint64) (*AnalysisRecord, bool, error) {
	rec := &AnalysisRecord{}
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(analysisKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})

	if err != nil {
		return nil, false, err
	}
	return rec, found, nil
}
