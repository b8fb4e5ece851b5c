package graph

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	badgerSnapshotKey = []byte("graph/snapshot")
	badgerVersionKey  = []byte("graph/version")
)

// ErrSnapshotConflict is returned when a concurrent writer saved a newer
// snapshot between this store's Load and Save.
var ErrSnapshotConflict = errors.New("graph snapshot modified by concurrent writer")

// BadgerStore persists graph snapshots in an embedded Badger database.
// Each snapshot carries a monotonically increasing version, recorded on
// the Graph at Load; Save performs a compare-and-swap against that
// version, so concurrent writers fail loudly instead of losing updates.
// The version rides on the snapshot, not the store, so interleaved
// Load/Save pairs through one store instance still conflict correctly.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger graph store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

// Load reads the current snapshot, stamping it with the version the CAS
// check in Save compares against. A missing snapshot yields an empty
// graph at version 0.
func (s *BadgerStore) Load(ctx context.Context) (*Graph, error) {
	var g *Graph
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSnapshotKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			g = New()
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			parsed, err := Unmarshal(val)
			if err != nil {
				return err
			}
			g = parsed
			return nil
		}); err != nil {
			return err
		}
		g.loadedVersion = readVersion(txn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load graph snapshot: %w", err)
	}
	return g, nil
}

// Save writes the snapshot if no other writer has bumped the version
// since this graph was loaded, and increments the version.
func (s *BadgerStore) Save(ctx context.Context, g *Graph) error {
	data, err := g.Marshal()
	if err != nil {
		return fmt.Errorf("encode graph snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		current := readVersion(txn)
		if current != g.loadedVersion {
			return ErrSnapshotConflict
		}
		if err := txn.Set(badgerSnapshotKey, data); err != nil {
			return err
		}
		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, current+1)
		return txn.Set(badgerVersionKey, next)
	})
	if err != nil {
		if errors.Is(err, ErrSnapshotConflict) {
			return err
		}
		return fmt.Errorf("save graph snapshot: %w", err)
	}
	g.loadedVersion++
	return nil
}

func readVersion(txn *badger.Txn) uint64 {
	item, err := txn.Get(badgerVersionKey)
	if err != nil {
		return 0
	}
	var version uint64
	_ = item.Value(func(val []byte) error {
		if len(val) == 8 {
			version = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return version
}
