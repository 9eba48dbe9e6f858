// Package store keeps session snapshots so a graph and the rest of its
// operation queue can be restored later.
package store

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/TFMV/echocolor/models"
)

// ErrNotFound is returned for unknown snapshot ids
var ErrNotFound = errors.New("store: snapshot not found")

// ErrEmptyID is returned when saving a snapshot without an id
var ErrEmptyID = errors.New("store: empty snapshot id")

// Snapshot is the persisted state of one session
type Snapshot struct {
	ID         string              `json:"id"`
	Graph      models.GraphPayload `json:"graph"`
	Operations []OperationRecord   `json:"operations"`
	Locked     bool                `json:"locked"`
	State      string              `json:"state"`
	Cursor     int                 `json:"cursor"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// OperationRecord is the stored form of a pending operation
type OperationRecord struct {
	Vertex string `json:"vertex"`
	ColorA int    `json:"a"`
	ColorB int    `json:"b"`
}

// Records converts operations to their stored form
func Records(ops []models.Operation) []OperationRecord {
	out := make([]OperationRecord, 0, len(ops))
	for _, op := range ops {
		out = append(out, OperationRecord{Vertex: op.Vertex, ColorA: op.ColorA, ColorB: op.ColorB})
	}
	return out
}

// PendingOperations returns the stored operations as a playback queue
func (s *Snapshot) PendingOperations() []models.Operation {
	out := make([]models.Operation, 0, len(s.Operations))
	for _, r := range s.Operations {
		out = append(out, models.Operation{Vertex: r.Vertex, ColorA: r.ColorA, ColorB: r.ColorB})
	}
	return out
}

// Store persists snapshots by id
type Store interface {
	Save(snap *Snapshot) error
	Load(id string) (*Snapshot, error)
	Delete(id string) error
	List() ([]string, error)
	Close() error
}

// MemoryStore keeps snapshots in a map
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]byte)}
}

// Save stores a copy of snap
func (m *MemoryStore) Save(snap *Snapshot) error {
	if snap.ID == "" {
		return ErrEmptyID
	}
	buf, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "store: encoding snapshot")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = buf
	return nil
}

// Load returns a copy of the snapshot saved under id
func (m *MemoryStore) Load(id string) (*Snapshot, error) {
	m.mu.RLock()
	buf, ok := m.snaps[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	return decode(buf)
}

// Delete removes the snapshot saved under id
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[id]; !ok {
		return errors.Wrapf(ErrNotFound, "id %q", id)
	}
	delete(m.snaps, id)
	return nil
}

// List returns the saved ids in order
func (m *MemoryStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.snaps))
	for id := range m.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close does nothing
func (m *MemoryStore) Close() error {
	return nil
}

var snapshotPrefix = []byte("session/")

func snapshotKey(id string) []byte {
	return append(append([]byte(nil), snapshotPrefix...), id...)
}

// BadgerStore keeps snapshots in a badger database as JSON values
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the database in dir. An empty dir keeps everything in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.MetricsEnabled = false
	if dir == "" {
		opts.InMemory = true
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening badger at %q", dir)
	}
	return &BadgerStore{db: db}, nil
}

// Save writes snap under its id
func (b *BadgerStore) Save(snap *Snapshot) error {
	if snap.ID == "" {
		return ErrEmptyID
	}
	buf, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "store: encoding snapshot")
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.ID), buf)
	})
}

// Load reads the snapshot saved under id
func (b *BadgerStore) Load(id string) (*Snapshot, error) {
	var buf []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(id))
		if err != nil {
			return err
		}
		buf, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: reading snapshot")
	}
	return decode(buf)
}

// Delete removes the snapshot saved under id
func (b *BadgerStore) Delete(id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := snapshotKey(id)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return errors.Wrapf(ErrNotFound, "id %q", id)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// List returns the saved ids in key order
func (b *BadgerStore) List() ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: false,
			Prefix:         snapshotPrefix,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(snapshotPrefix)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "store: listing snapshots")
	}
	return ids, nil
}

// Close closes the database
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func decode(buf []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := json.Unmarshal(buf, snap); err != nil {
		return nil, errors.Wrap(err, "store: decoding snapshot")
	}
	return snap, nil
}

// Open returns a badger store in dir, or a memory store when dir is empty
func Open(dir string) (Store, error) {
	if dir == "" {
		return NewMemoryStore(), nil
	}
	return OpenBadger(dir)
}
