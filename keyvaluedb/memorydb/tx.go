package memorydb

import (
	"errors"
	"fmt"
	"maps"

	"github.com/alphabill-org/partdist/keyvaluedb"
)

var (
	errTxClosed   = errors.New("tx closed")
	errTxConflict = errors.New("db was modified after the tx was started")
)

// Tx works on a private copy of the db, Commit fails when the db has been
// changed by someone else in the meantime.
type Tx struct {
	mem        *MemoryDB
	db         map[string][]byte
	generation uint64
}

func NewMapTx(m *MemoryDB) (*Tx, error) {
	if m == nil {
		return nil, fmt.Errorf("memory db is nil")
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Tx{
		mem:        m,
		db:         maps.Clone(m.db),
		generation: m.generation,
	}, nil
}

func (t *Tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if t.db == nil {
		return false, fmt.Errorf("memdb tx read failed, %w", errTxClosed)
	}
	if data, ok := t.db[string(key)]; ok {
		return true, t.mem.decoder(data, v)
	}
	return false, nil
}

func (t *Tx) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.db == nil {
		return fmt.Errorf("memdb tx write failed, %w", errTxClosed)
	}
	b, err := t.mem.encoder(value)
	if err != nil {
		return err
	}
	t.mem.lock.RLock()
	writeErr := t.mem.writeErr
	t.mem.lock.RUnlock()
	if writeErr != nil {
		return writeErr
	}
	t.db[string(key)] = b
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.db == nil {
		return fmt.Errorf("memdb tx delete failed, %w", errTxClosed)
	}
	delete(t.db, string(key))
	return nil
}

func (t *Tx) Rollback() error {
	t.db = nil
	return nil
}

func (t *Tx) Commit() error {
	if t.db == nil {
		return errTxClosed
	}
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	defer func() { t.db = nil }()
	if t.mem.generation != t.generation {
		return errTxConflict
	}
	t.mem.db = t.db
	t.mem.generation++
	return nil
}
