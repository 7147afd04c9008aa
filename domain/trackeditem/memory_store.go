package trackeditem

import (
	"sync"

	"github.com/pkg/errors"
)

type memoryStore struct {
	mtx   sync.RWMutex
	items map[string]*TrackedItem
	order []string
}

// NewMemoryStore returns a Store that keeps items in memory
func NewMemoryStore() Store {
	return &memoryStore{items: make(map[string]*TrackedItem)}
}

func (ms *memoryStore) FetchAll() ([]*TrackedItem, error) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	items := make([]*TrackedItem, len(ms.order))
	for i, key := range ms.order {
		items[i] = ms.items[key].Clone()
	}
	return items, nil
}

func (ms *memoryStore) Get(id ItemID) (*TrackedItem, error) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	item, ok := ms.items[id.Key()]
	if !ok {
		return nil, errors.Wrapf(ErrItemNotFound, "item %s", id)
	}
	return item.Clone(), nil
}

func (ms *memoryStore) Add(item *TrackedItem) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()

	key := item.ID.Key()
	if _, ok := ms.items[key]; ok {
		return errors.Wrapf(ErrItemExists, "item %s", item.ID)
	}
	ms.items[key] = item.Clone()
	ms.order = append(ms.order, key)
	return nil
}

func (ms *memoryStore) Commit(stagingArea *StagingArea) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()

	staged := stagingArea.Items()
	for _, item := range staged {
		if _, ok := ms.items[item.ID.Key()]; !ok {
			return errors.Wrapf(ErrItemNotFound, "cannot commit item %s", item.ID)
		}
	}
	for _, item := range staged {
		ms.items[item.ID.Key()] = item.Clone()
	}
	log.Tracef("Committed %d items to the memory store", len(staged))
	return nil
}
