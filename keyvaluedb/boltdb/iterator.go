package boltdb

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/alphabill-org/partdist/keyvaluedb"
)

// Itr holds a read-only bolt transaction open until Close is called.
type Itr struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	key     []byte
	value   []byte
	decoder keyvaluedb.DecodeFn
}

func NewIterator(db *bolt.DB, bucket []byte, d keyvaluedb.DecodeFn) *Itr {
	if db == nil {
		return &Itr{}
	}
	tx, err := db.Begin(false)
	if err != nil {
		return &Itr{}
	}
	b := tx.Bucket(bucket)
	if b == nil {
		_ = tx.Rollback()
		return &Itr{}
	}
	return &Itr{tx: tx, cursor: b.Cursor(), decoder: d}
}

func (it *Itr) first() {
	if it.cursor != nil {
		it.key, it.value = it.cursor.First()
	}
}

func (it *Itr) seek(key []byte) {
	if it.cursor != nil {
		it.key, it.value = it.cursor.Seek(key)
	}
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	it.key, it.value = it.cursor.Next()
}

func (it *Itr) Valid() bool {
	return it.tx != nil && it.key != nil
}

func (it *Itr) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.key
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return errors.New("iterator invalid")
	}
	return it.decoder(it.value, v)
}

func (it *Itr) Close() error {
	if it.tx == nil {
		return nil
	}
	err := it.tx.Rollback()
	it.tx, it.cursor = nil, nil
	it.key, it.value = nil, nil
	return err
}
