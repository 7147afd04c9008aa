package bolt

import (
	"bytes"

	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltCursor iterates over the keys of a single database bucket
type BoltCursor struct {
	tx       *bolt.Tx
	ownsTx   bool
	cursor   *bolt.Cursor
	bucket   *database.Bucket
	prefix   []byte
	started  bool
	key      []byte
	value    []byte
	isClosed bool
}

func newCursor(tx *bolt.Tx, ownsTx bool, bucket *database.Bucket) *BoltCursor {
	return &BoltCursor{
		tx:     tx,
		ownsTx: ownsTx,
		cursor: tx.Bucket(rootBucket).Cursor(),
		bucket: bucket,
		prefix: bucket.Path(),
	}
}

func (c *BoltCursor) setCurrent(key, value []byte) bool {
	c.started = true
	if key == nil || !bytes.HasPrefix(key, c.prefix) {
		c.key, c.value = nil, nil
		return false
	}
	c.key, c.value = key, value
	return true
}

// Next moves the iterator to the next key/value pair. It returns whether the
// iterator is exhausted. Panics if the cursor is closed.
func (c *BoltCursor) Next() bool {
	if c.isClosed {
		panic("cannot call next on a closed cursor")
	}
	if !c.started {
		return c.setCurrent(c.cursor.Seek(c.prefix))
	}
	if c.key == nil {
		return false
	}
	return c.setCurrent(c.cursor.Next())
}

// First moves the iterator to the first key/value pair. It returns false if
// such a pair does not exist. Panics if the cursor is closed.
func (c *BoltCursor) First() bool {
	if c.isClosed {
		panic("cannot call first on a closed cursor")
	}
	return c.setCurrent(c.cursor.Seek(c.prefix))
}

// Seek moves the iterator to the first key/value pair whose key is greater
// than or equal to the given key. It returns ErrNotFound if such pair does not
// exist.
func (c *BoltCursor) Seek(key *database.Key) error {
	if c.isClosed {
		return errors.New("cannot seek a closed cursor")
	}
	found := c.setCurrent(c.cursor.Seek(key.Bytes()))
	if !found || !bytes.Equal(c.key, key.Bytes()) {
		return errors.Wrapf(database.ErrNotFound, "key %s not found", key)
	}
	return nil
}

// Key returns the key of the current key/value pair, or ErrNotFound if done.
func (c *BoltCursor) Key() (*database.Key, error) {
	if c.isClosed {
		return nil, errors.New("cannot get the key of a closed cursor")
	}
	if c.key == nil {
		return nil, errors.Wrapf(database.ErrNotFound, "cannot get the "+
			"key of an exhausted cursor")
	}
	suffix := make([]byte, len(c.key)-len(c.prefix))
	copy(suffix, c.key[len(c.prefix):])
	return c.bucket.Key(suffix), nil
}

// Value returns the value of the current key/value pair, or ErrNotFound if done.
func (c *BoltCursor) Value() ([]byte, error) {
	if c.isClosed {
		return nil, errors.New("cannot get the value of a closed cursor")
	}
	if c.key == nil {
		return nil, errors.Wrapf(database.ErrNotFound, "cannot get the "+
			"value of an exhausted cursor")
	}
	value := make([]byte, len(c.value))
	copy(value, c.value)
	return value, nil
}

// Close releases associated resources, rolling back the read transaction the
// cursor was opened with if it owns one.
func (c *BoltCursor) Close() error {
	if c.isClosed {
		return errors.New("cannot close an already closed cursor")
	}
	c.isClosed = true
	c.cursor = nil
	if c.ownsTx {
		return errors.WithStack(c.tx.Rollback())
	}
	return nil
}
