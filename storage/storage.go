// Package storage persists the ledger state in a prefixed key-value store.
// Every record is a cbor artifact. The following prefixes are used:
//   - 'm/' for metadata (owner and counters)
//   - 'r/' for reviewers by address, 'ri/' for the reviewer insertion index
//   - 'w/' for works by id
//   - 's/' for scores by work and reviewer, 'sl/' for the per-work
//     submission order
//   - 'a/' for aggregated scores by work
//   - 't/' for the threshold
//   - 'g/' for disclosure grants by work and principal
//   - 'pr/' for published work markers, 'po/' for the ordered results
//   - 'e/' for the event log
//
// Mutations run inside Update, which gives the callback a Tx that sees its
// own pending writes and commits them atomically, or not at all.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/confidential-jury/log"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	metadataPrefix     = []byte("m/")
	reviewerPrefix     = []byte("r/")
	reviewerIdxPrefix  = []byte("ri/")
	workPrefix         = []byte("w/")
	scorePrefix        = []byte("s/")
	scoreOrderPrefix   = []byte("sl/")
	aggregatePrefix    = []byte("a/")
	thresholdPrefix    = []byte("t/")
	grantPrefix        = []byte("g/")
	publishedPrefix    = []byte("pr/")
	resultPrefix       = []byte("po/")
	eventPrefix        = []byte("e/")
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound   = errors.New("not found")
	errReadOnlyTx = errors.New("read only transaction")
)

// Storage wraps the database holding the ledger state.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err)
	}
}

// Update runs fn inside a write transaction. The pending writes are
// committed if fn returns nil and discarded otherwise. Updates are
// serialized.
func (s *Storage) Update(fn func(tx *Tx) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	tx := &Tx{reader: s.db, pending: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.pending) == 0 {
		return nil
	}
	wTx := s.db.WriteTx()
	for k, v := range tx.pending {
		var err error
		if v == nil {
			err = wTx.Delete([]byte(k))
		} else {
			err = wTx.Set([]byte(k), v)
		}
		if err != nil {
			wTx.Discard()
			return fmt.Errorf("apply pending write: %w", err)
		}
	}
	return wTx.Commit()
}

// View runs fn over the committed state. Any write returns an error.
func (s *Storage) View(fn func(tx *Tx) error) error {
	return fn(&Tx{reader: s.db})
}

// Tx reads the committed state overlaid with its own pending writes.
type Tx struct {
	reader  db.Reader
	pending map[string][]byte
}

func key(prefix, k []byte) []byte {
	return append(append([]byte{}, prefix...), k...)
}

func (tx *Tx) get(prefix, k []byte) ([]byte, error) {
	full := key(prefix, k)
	if v, ok := tx.pending[string(full)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return v, nil
	}
	v, err := tx.reader.Get(full)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (tx *Tx) set(prefix, k, v []byte) error {
	if tx.pending == nil {
		return errReadOnlyTx
	}
	tx.pending[string(key(prefix, k))] = v
	return nil
}

func (tx *Tx) delete(prefix, k []byte) error {
	if tx.pending == nil {
		return errReadOnlyTx
	}
	tx.pending[string(key(prefix, k))] = nil
	return nil
}

func (tx *Tx) getArtifact(prefix, k []byte, out any) error {
	data, err := tx.get(prefix, k)
	if err != nil {
		return err
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

func (tx *Tx) setArtifact(prefix, k []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	return tx.set(prefix, k, data)
}

func (tx *Tx) has(prefix, k []byte) (bool, error) {
	_, err := tx.get(prefix, k)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// iterate walks the committed keys under prefix. Pending writes are not
// visited.
func (tx *Tx) iterate(prefix []byte, fn func(k, v []byte) bool) error {
	return prefixeddb.NewPrefixedReader(tx.reader, prefix).Iterate(nil, fn)
}
