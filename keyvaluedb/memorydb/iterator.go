package memorydb

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/alphabill-org/partdist/keyvaluedb"
)

// Itr iterates over a snapshot of the db taken when the iterator was created.
type Itr struct {
	keys    [][]byte
	values  [][]byte
	decoder keyvaluedb.DecodeFn
	index   int
}

func NewIterator(db map[string][]byte, d keyvaluedb.DecodeFn) *Itr {
	it := &Itr{
		index:   -1,
		decoder: d,
		keys:    make([][]byte, 0, len(db)),
		values:  make([][]byte, 0, len(db)),
	}
	for key := range db {
		it.keys = append(it.keys, []byte(key))
	}
	slices.SortFunc(it.keys, bytes.Compare)
	for _, key := range it.keys {
		it.values = append(it.values, db[string(key)])
	}
	return it
}

func (it *Itr) Close() error {
	return nil
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	it.index++
	if it.index >= len(it.keys) {
		it.index = -1
	}
}

func (it *Itr) Valid() bool {
	return it.index >= 0
}

func (it *Itr) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.values[it.index], v)
}

func (it *Itr) first() {
	if len(it.keys) > 0 {
		it.index = 0
	}
}

func (it *Itr) seek(key []byte) {
	idx, _ := slices.BinarySearchFunc(it.keys, key, bytes.Compare)
	if idx < len(it.keys) {
		it.index = idx
	}
}
