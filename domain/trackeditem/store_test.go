package trackeditem

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/reorgkeeper/domain/testutils"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database/bolt"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

type storePrepareFunc func(t *testing.T) (store Store, name string, teardownFunc func())

var storePrepareFuncs = []storePrepareFunc{
	func(t *testing.T) (Store, string, func()) {
		return NewMemoryStore(), "memory", func() {}
	},
	func(t *testing.T) (Store, string, func()) {
		db, err := ldb.NewLevelDB(t.TempDir(), 8)
		if err != nil {
			t.Fatalf("NewLevelDB: %s", err)
		}
		return NewDatabaseStore(db, "wallet"), "ldb", func() { _ = db.Close() }
	},
	func(t *testing.T) (Store, string, func()) {
		db, err := bolt.NewBoltDB(filepath.Join(t.TempDir(), "items.db"))
		if err != nil {
			t.Fatalf("NewBoltDB: %s", err)
		}
		return NewDatabaseStore(db, "wallet"), "bolt", func() { _ = db.Close() }
	},
}

func testForAllStoreTypes(t *testing.T, testFunc func(t *testing.T, store Store, testName string)) {
	for _, prepare := range storePrepareFuncs {
		func() {
			store, name, teardownFunc := prepare(t)
			defer teardownFunc()
			testFunc(t, store, fmt.Sprintf("%s: %s", name, t.Name()))
		}()
	}
}

func newMinedOutput(t *testing.T, position uint64) *TrackedItem {
	return &TrackedItem{
		ID:          NewOutputItemID(testutils.RandomHash(t)),
		Kind:        KindOutput,
		Status:      Mined(10, testutils.RandomHash(t), 2, 3),
		MMRPosition: &position,
	}
}

func TestStoreAddAndGet(t *testing.T) {
	testForAllStoreTypes(t, func(t *testing.T, store Store, testName string) {
		coinbaseHeight := uint64(7)
		items := []*TrackedItem{
			newMinedOutput(t, 1),
			{
				ID:             NewTransactionItemID(testutils.NewExcessSignature(t)),
				Kind:           KindTransaction,
				Status:         PendingUnmined(),
				CoinbaseHeight: &coinbaseHeight,
			},
		}
		for _, item := range items {
			err := store.Add(item)
			if err != nil {
				t.Fatalf("%s: Add: %+v", testName, err)
			}
		}

		err := store.Add(items[0])
		if !errors.Is(err, ErrItemExists) {
			t.Fatalf("%s: expected ErrItemExists, got %v", testName, err)
		}

		for _, item := range items {
			stored, err := store.Get(item.ID)
			if err != nil {
				t.Fatalf("%s: Get: %+v", testName, err)
			}
			if !stored.Equal(item) {
				t.Fatalf("%s: stored item differs.\nwant: %s\ngot: %s", testName, spew.Sdump(item), spew.Sdump(stored))
			}
		}

		all, err := store.FetchAll()
		if err != nil {
			t.Fatalf("%s: FetchAll: %+v", testName, err)
		}
		if len(all) != len(items) {
			t.Fatalf("%s: FetchAll returned %d items, want %d", testName, len(all), len(items))
		}

		_, err = store.Get(NewOutputItemID(testutils.RandomHash(t)))
		if !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("%s: expected ErrItemNotFound, got %v", testName, err)
		}
	})
}

func TestStoreCommitIsAtomic(t *testing.T) {
	testForAllStoreTypes(t, func(t *testing.T, store Store, testName string) {
		item := newMinedOutput(t, 5)
		err := store.Add(item)
		if err != nil {
			t.Fatalf("%s: Add: %+v", testName, err)
		}

		updated := item.Clone()
		updated.Status = updated.Status.Spend(12, testutils.RandomHash(t), false)
		unknown := newMinedOutput(t, 6)

		stagingArea := NewStagingArea()
		stagingArea.Stage(updated)
		stagingArea.Stage(unknown)
		err = store.Commit(stagingArea)
		if !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("%s: expected ErrItemNotFound, got %v", testName, err)
		}
		stored, err := store.Get(item.ID)
		if err != nil {
			t.Fatalf("%s: Get: %+v", testName, err)
		}
		if !stored.Equal(item) {
			t.Fatalf("%s: failed commit modified the store: %s", testName, stored.Status)
		}

		stagingArea = NewStagingArea()
		stagingArea.Stage(updated)
		err = store.Commit(stagingArea)
		if err != nil {
			t.Fatalf("%s: Commit: %+v", testName, err)
		}
		stored, err = store.Get(item.ID)
		if err != nil {
			t.Fatalf("%s: Get: %+v", testName, err)
		}
		if !stored.Equal(updated) {
			t.Fatalf("%s: commit was not applied: %s", testName, stored.Status)
		}
	})
}

func TestStagingAreaKeepsLatestVersion(t *testing.T) {
	item := newMinedOutput(t, 1)
	stagingArea := NewStagingArea()
	stagingArea.Stage(item)

	spent := item.Clone()
	spent.Status = spent.Status.Spend(11, testutils.RandomHash(t), true)
	stagingArea.Stage(spent)

	if stagingArea.Len() != 1 {
		t.Fatalf("expected one staged item, got %d", stagingArea.Len())
	}
	if stagingArea.Items()[0].Status.State != StateSpent {
		t.Fatalf("staging area kept a stale version")
	}
}

func TestDeserializeTrackedItemErrors(t *testing.T) {
	data, err := SerializeTrackedItem(newMinedOutput(t, 3))
	if err != nil {
		t.Fatalf("SerializeTrackedItem: %+v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "truncated", data: data[:len(data)-1]},
		{name: "trailing bytes", data: append(append([]byte{}, data...), 0)},
		{name: "unknown version", data: append([]byte{serializationVersion + 1}, data[1:]...)},
	}
	for _, test := range tests {
		_, err := DeserializeTrackedItem(test.data)
		if err == nil {
			t.Fatalf("%s: DeserializeTrackedItem unexpectedly succeeded", test.name)
		}
	}
}

func TestStatusUnspendRestoresMinedState(t *testing.T) {
	block := testutils.RandomHash(t)
	mined := Mined(100, block, 5, 3)
	spent := mined.Spend(104, testutils.RandomHash(t), false)
	if !spent.IsMined() {
		t.Fatalf("spent status is not mined")
	}
	restored := spent.Unspend(3)
	if !restored.Equal(&mined) {
		t.Fatalf("expected %s, got %s", mined, restored)
	}
}
