package database_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
)

func TestDatabasePutGetDelete(t *testing.T) {
	testForAllDatabaseTypes(t, "TestDatabasePutGetDelete", testDatabasePutGetDelete)
}

func testDatabasePutGetDelete(t *testing.T, db database.Database, testName string) {
	key := database.MakeBucket([]byte("bucket")).Key([]byte("key"))
	value := []byte("value")

	_, err := db.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("%s: Get of a missing key returned %v, want ErrNotFound", testName, err)
	}

	err = db.Put(key, value)
	if err != nil {
		t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
	}
	exists, err := db.Has(key)
	if err != nil {
		t.Fatalf("%s: Has unexpectedly failed: %s", testName, err)
	}
	if !exists {
		t.Fatalf("%s: Has unexpectedly returned false", testName)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("%s: Get unexpectedly failed: %s", testName, err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("%s: Get returned %q, want %q", testName, got, value)
	}

	err = db.Delete(key)
	if err != nil {
		t.Fatalf("%s: Delete unexpectedly failed: %s", testName, err)
	}
	exists, err = db.Has(key)
	if err != nil {
		t.Fatalf("%s: Has unexpectedly failed: %s", testName, err)
	}
	if exists {
		t.Fatalf("%s: key still exists after Delete", testName)
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	testForAllDatabaseTypes(t, "TestTransactionCommitAndRollback", testTransactionCommitAndRollback)
}

func testTransactionCommitAndRollback(t *testing.T, db database.Database, testName string) {
	bucket := database.MakeBucket([]byte("tx"))
	committedKey := bucket.Key([]byte("committed"))
	rolledBackKey := bucket.Key([]byte("rolledback"))

	dbTx, err := db.Begin()
	if err != nil {
		t.Fatalf("%s: Begin unexpectedly failed: %s", testName, err)
	}
	err = dbTx.Put(committedKey, []byte("1"))
	if err != nil {
		t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
	}
	err = dbTx.Commit()
	if err != nil {
		t.Fatalf("%s: Commit unexpectedly failed: %s", testName, err)
	}
	err = dbTx.RollbackUnlessClosed()
	if err != nil {
		t.Fatalf("%s: RollbackUnlessClosed of a committed transaction failed: %s", testName, err)
	}

	dbTx, err = db.Begin()
	if err != nil {
		t.Fatalf("%s: Begin unexpectedly failed: %s", testName, err)
	}
	err = dbTx.Put(rolledBackKey, []byte("2"))
	if err != nil {
		t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
	}
	err = dbTx.Rollback()
	if err != nil {
		t.Fatalf("%s: Rollback unexpectedly failed: %s", testName, err)
	}
	err = dbTx.Put(rolledBackKey, []byte("2"))
	if err == nil {
		t.Fatalf("%s: Put into a closed transaction unexpectedly succeeded", testName)
	}

	exists, err := db.Has(committedKey)
	if err != nil || !exists {
		t.Fatalf("%s: committed key is missing (err: %v)", testName, err)
	}
	exists, err = db.Has(rolledBackKey)
	if err != nil || exists {
		t.Fatalf("%s: rolled back key exists (err: %v)", testName, err)
	}
}

func TestCursorIteratesBucketOnly(t *testing.T) {
	testForAllDatabaseTypes(t, "TestCursorIteratesBucketOnly", testCursorIteratesBucketOnly)
}

func testCursorIteratesBucketOnly(t *testing.T, db database.Database, testName string) {
	bucket := database.MakeBucket([]byte("bucket"))
	other := database.MakeBucket([]byte("bucket2"))
	for i := 0; i < 10; i++ {
		err := db.Put(bucket.Key([]byte(fmt.Sprintf("key%d", i))), []byte(fmt.Sprintf("value%d", i)))
		if err != nil {
			t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
		}
		err = db.Put(other.Key([]byte(fmt.Sprintf("key%d", i))), []byte("other"))
		if err != nil {
			t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
		}
	}

	cursor, err := db.Cursor(bucket)
	if err != nil {
		t.Fatalf("%s: Cursor unexpectedly failed: %s", testName, err)
	}
	defer func() {
		err := cursor.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
	}()

	count := 0
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			t.Fatalf("%s: Key unexpectedly failed: %s", testName, err)
		}
		value, err := cursor.Value()
		if err != nil {
			t.Fatalf("%s: Value unexpectedly failed: %s", testName, err)
		}
		expectedSuffix := fmt.Sprintf("key%d", count)
		if string(key.Suffix()) != expectedSuffix {
			t.Fatalf("%s: got key %s, want %s", testName, key.Suffix(), expectedSuffix)
		}
		if string(value) != fmt.Sprintf("value%d", count) {
			t.Fatalf("%s: got value %s for key %s", testName, value, key.Suffix())
		}
		count++
	}
	if count != 10 {
		t.Fatalf("%s: cursor returned %d entries, want 10", testName, count)
	}

	err = cursor.Seek(bucket.Key([]byte("key5")))
	if err != nil {
		t.Fatalf("%s: Seek unexpectedly failed: %s", testName, err)
	}
	err = cursor.Seek(bucket.Key([]byte("missing")))
	if !database.IsNotFoundError(err) {
		t.Fatalf("%s: Seek to a missing key returned %v, want ErrNotFound", testName, err)
	}
}
