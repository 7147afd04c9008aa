package trackeditem

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
	"github.com/pkg/errors"
)

var bucketName = []byte("tracked-items")

type databaseStore struct {
	db     database.Database
	bucket *database.Bucket
}

// NewDatabaseStore returns a Store persisted in db. Items of several stores
// can share one database when each uses a distinct name.
func NewDatabaseStore(db database.Database, name string) Store {
	return &databaseStore{
		db:     db,
		bucket: database.MakeBucket(bucketName).Bucket([]byte(name)),
	}
}

func (ds *databaseStore) key(id ItemID) *database.Key {
	return ds.bucket.Key(id)
}

func (ds *databaseStore) FetchAll() ([]*TrackedItem, error) {
	cursor, err := ds.db.Cursor(ds.bucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var items []*TrackedItem
	for ok := cursor.First(); ok; ok = cursor.Next() {
		value, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		item, err := DeserializeTrackedItem(value)
		if err != nil {
			key, _ := cursor.Key()
			return nil, errors.Wrapf(err, "failed to deserialize tracked item at %s", key)
		}
		items = append(items, item)
	}
	return items, nil
}

func (ds *databaseStore) Get(id ItemID) (*TrackedItem, error) {
	data, err := ds.db.Get(ds.key(id))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, errors.Wrapf(ErrItemNotFound, "item %s", id)
		}
		return nil, err
	}
	return DeserializeTrackedItem(data)
}

func (ds *databaseStore) Add(item *TrackedItem) error {
	key := ds.key(item.ID)
	exists, err := ds.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ErrItemExists, "item %s", item.ID)
	}
	data, err := SerializeTrackedItem(item)
	if err != nil {
		return err
	}
	return ds.db.Put(key, data)
}

func (ds *databaseStore) Commit(stagingArea *StagingArea) error {
	dbTx, err := ds.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	staged := stagingArea.Items()
	for _, item := range staged {
		key := ds.key(item.ID)
		exists, err := dbTx.Has(key)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(ErrItemNotFound, "cannot commit item %s", item.ID)
		}
		data, err := SerializeTrackedItem(item)
		if err != nil {
			return err
		}
		err = dbTx.Put(key, data)
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}
	log.Tracef("Committed %d items to the database store", len(staged))
	return nil
}
