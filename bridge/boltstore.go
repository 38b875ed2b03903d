package bridge

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// BoltStore persists custody state in a bbolt database, one bucket per
// record type.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("bridge: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bridge: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// View implements Store.
func (s *BoltStore) View(fn func(*Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{kv: boltTx{btx}})
	})
}

// Update implements Store. bbolt rolls the transaction back when fn fails.
func (s *BoltStore) Update(fn func(*Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{kv: boltTx{btx}})
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

type boltTx struct {
	tx *bbolt.Tx
}

func (b boltTx) get(bucket, key []byte) []byte {
	v := b.tx.Bucket(bucket).Get(key)
	if v == nil {
		return nil
	}
	// Values are only valid for the life of the transaction.
	return append([]byte(nil), v...)
}

func (b boltTx) put(bucket, key, value []byte) error {
	if !b.tx.Writable() {
		return errReadOnly
	}
	bkt := b.tx.Bucket(bucket)
	if value == nil {
		return bkt.Delete(key)
	}
	return bkt.Put(key, value)
}

func (b boltTx) forEach(bucket []byte, fn func(k, v []byte) error) error {
	return b.tx.Bucket(bucket).ForEach(fn)
}
