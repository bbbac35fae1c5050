package boltdb

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/keyvaluedb"
)

type testRecord struct {
	Name  string
	Count uint64
}

func initBoltDB(t *testing.T, opts ...Option) *BoltDB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func isEmpty(t *testing.T, db *BoltDB) bool {
	t.Helper()
	it := db.First()
	defer func() { require.NoError(t, it.Close()) }()
	return !it.Valid()
}

func TestBoltDB_InvalidPath(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "missing", "test.db"))
	require.ErrorContains(t, err, "opening bolt db")
	require.Nil(t, db)
}

func TestBoltDB_ReadWriteDelete(t *testing.T) {
	db := initBoltDB(t)
	require.True(t, isEmpty(t, db))
	require.NotEmpty(t, db.Path())

	var got testRecord
	found, err := db.Read([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, found)

	rec := testRecord{Name: "a", Count: 42}
	require.NoError(t, db.Write([]byte("a"), rec))
	require.False(t, isEmpty(t, db))

	found, err = db.Read([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)

	require.NoError(t, db.Delete([]byte("a")))
	found, err = db.Read([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, isEmpty(t, db))
}

func TestBoltDB_InvalidInput(t *testing.T) {
	db := initBoltDB(t)
	var nilPtr *testRecord
	_, err := db.Read(nil, &testRecord{})
	require.ErrorContains(t, err, "invalid key")
	_, err = db.Read([]byte("a"), nilPtr)
	require.ErrorContains(t, err, "value is nil")
	require.ErrorContains(t, db.Write([]byte{}, testRecord{}), "invalid key")
	require.ErrorContains(t, db.Write([]byte("a"), nil), "value is nil")
	require.ErrorContains(t, db.Delete(nil), "invalid key")
}

func TestBoltDB_DecodeError(t *testing.T) {
	db := initBoltDB(t)
	require.NoError(t, db.Write([]byte("a"), "string value"))
	var got testRecord
	found, err := db.Read([]byte("a"), &got)
	require.True(t, found)
	require.ErrorContains(t, err, "bolt db read failed")
}

func TestBoltDB_WithOptions(t *testing.T) {
	db := initBoltDB(t, WithBucket("chains"), WithCodec(json.Marshal, json.Unmarshal))
	require.Equal(t, []byte("chains"), db.bucket)
	require.NoError(t, db.Write([]byte("k"), testRecord{Name: "n"}))

	it := db.First()
	defer func() { require.NoError(t, it.Close()) }()
	require.True(t, it.Valid())
	var raw json.RawMessage
	require.NoError(t, it.Value(&raw))
	require.JSONEq(t, `{"Name":"n","Count":0}`, string(raw))
}

func TestBoltDB_Iterators(t *testing.T) {
	db := initBoltDB(t)
	for _, k := range []string{"c", "a", "e"} {
		require.NoError(t, db.Write([]byte(k), k))
	}

	collect := func(it keyvaluedb.Iterator) []string {
		t.Helper()
		defer func() { require.NoError(t, it.Close()) }()
		var keys []string
		for ; it.Valid(); it.Next() {
			var v string
			require.NoError(t, it.Value(&v))
			require.Equal(t, string(it.Key()), v)
			keys = append(keys, v)
		}
		return keys
	}

	require.Equal(t, []string{"a", "c", "e"}, collect(db.First()))
	require.Equal(t, []string{"c", "e"}, collect(db.Find([]byte("b"))))
	require.Equal(t, []string{"c", "e"}, collect(db.Find([]byte("c"))))
	require.Empty(t, collect(db.Find([]byte("f"))))
}

func TestBoltDB_IteratorClosed(t *testing.T) {
	db := initBoltDB(t)
	require.NoError(t, db.Write([]byte("a"), "a"))
	it := db.First()
	require.True(t, it.Valid())
	require.NoError(t, it.Close())
	require.False(t, it.Valid())
	require.Nil(t, it.Key())
	require.ErrorContains(t, it.Value(new(string)), "iterator invalid")
	// closing twice is fine
	require.NoError(t, it.Close())
	// write does not block after the iterator has been released
	require.NoError(t, db.Write([]byte("b"), "b"))
}
