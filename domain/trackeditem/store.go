package trackeditem

import (
	"github.com/pkg/errors"
)

// ErrItemNotFound is returned when an item is not in the store
var ErrItemNotFound = errors.New("tracked item not found")

// ErrItemExists is returned when adding an item whose id is already stored
var ErrItemExists = errors.New("tracked item already exists")

// Store holds tracked items durably. Commit applies a StagingArea
// atomically: either every staged item is written or none is.
type Store interface {
	FetchAll() ([]*TrackedItem, error)
	Get(id ItemID) (*TrackedItem, error)
	Add(item *TrackedItem) error
	Commit(stagingArea *StagingArea) error
}

// StagingArea collects item updates to be committed together. Staging an
// item twice keeps the latest version.
type StagingArea struct {
	toUpdate map[string]*TrackedItem
	order    []string
}

// NewStagingArea returns an empty StagingArea
func NewStagingArea() *StagingArea {
	return &StagingArea{toUpdate: make(map[string]*TrackedItem)}
}

// Stage records item to be written on commit
func (sa *StagingArea) Stage(item *TrackedItem) {
	key := item.ID.Key()
	if _, ok := sa.toUpdate[key]; !ok {
		sa.order = append(sa.order, key)
	}
	sa.toUpdate[key] = item.Clone()
}

// Len returns the number of staged items
func (sa *StagingArea) Len() int {
	return len(sa.order)
}

// IsEmpty returns whether nothing is staged
func (sa *StagingArea) IsEmpty() bool {
	return sa.Len() == 0
}

// Items returns the staged items in staging order
func (sa *StagingArea) Items() []*TrackedItem {
	items := make([]*TrackedItem, len(sa.order))
	for i, key := range sa.order {
		items[i] = sa.toUpdate[key]
	}
	return items
}
