// Package bolt implements database.Database on top of bbolt. All keys live
// in a single top level bbolt bucket; database buckets are key prefixes, as
// they are in the leveldb implementation.
package bolt

import (
	"os"
	"time"

	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("kv")

const openTimeout = 5 * time.Second

// BoltDB is a thin wrapper around a bbolt database
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens, creating if needed, the bbolt database file at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, os.FileMode(0600), &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt database at %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return &BoltDB{db: db}, nil
}

// Close closes the database file
func (db *BoltDB) Close() error {
	return errors.WithStack(db.db.Close())
}

// Put sets the value for the given key. It overwrites
// any previous value for that key.
func (db *BoltDB) Put(key *database.Key, value []byte) error {
	return errors.WithStack(db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key.Bytes(), value)
	}))
}

// Get gets the value for the given key. It returns
// ErrNotFound if the given key does not exist.
func (db *BoltDB) Get(key *database.Key) ([]byte, error) {
	var data []byte
	err := db.db.View(func(tx *bolt.Tx) error {
		var err error
		data, err = get(tx, key)
		return err
	})
	return data, err
}

// Has returns true if the database does contains the
// given key.
func (db *BoltDB) Has(key *database.Key) (bool, error) {
	var exists bool
	err := db.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(rootBucket).Get(key.Bytes()) != nil
		return nil
	})
	return exists, errors.WithStack(err)
}

// Delete deletes the value for the given key. Will not
// return an error if the key doesn't exist.
func (db *BoltDB) Delete(key *database.Key) error {
	return errors.WithStack(db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key.Bytes())
	}))
}

// Cursor begins a new cursor over the given bucket. The cursor holds a read
// transaction open until it is closed.
func (db *BoltDB) Cursor(bucket *database.Bucket) (database.Cursor, error) {
	tx, err := db.db.Begin(false)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newCursor(tx, true, bucket), nil
}

// Begin begins a new read-write transaction. Only one read-write transaction
// may be open at a time; Begin blocks until the previous one is closed.
func (db *BoltDB) Begin() (database.Transaction, error) {
	tx, err := db.db.Begin(true)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &BoltTransaction{tx: tx}, nil
}

func get(tx *bolt.Tx, key *database.Key) ([]byte, error) {
	value := tx.Bucket(rootBucket).Get(key.Bytes())
	if value == nil {
		return nil, errors.Wrapf(database.ErrNotFound, "key %s not found", key)
	}
	// bbolt values are only valid for the life of the transaction
	data := make([]byte, len(value))
	copy(data, value)
	return data, nil
}
