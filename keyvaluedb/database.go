package keyvaluedb

type (
	Reader interface {
		// Read decodes the value stored under "key" into "value", returns
		// false when there is no such key.
		Read(key []byte, value any) (bool, error)
	}

	Writer interface {
		Write(key []byte, value any) error
		Delete(key []byte) error
	}

	/*
	KeyValueDB is the storage backing the partition chain store: single
	keyspace ordered by binary key value.
	*/
	KeyValueDB interface {
		Reader
		Writer
		Iterable
		// StartTx begins read-write transaction, only one may be open at a time.
		// The transaction MUST be completed with either Commit or Rollback.
		StartTx() (DBTransaction, error)
	}

	/*
	Iterable creates forward iterators over the keyspace. When there is nothing
	to iterate the returned iterator is not valid.
	Iterator MUST be released with Close, bolt backend holds a read
	transaction open until then.
	*/
	Iterable interface {
		// First positions the iterator at the smallest key.
		First() Iterator
		// Find positions the iterator at the smallest key which is greater
		// than or equal to "key".
		Find(key []byte) Iterator
	}

	Iterator interface {
		Next()
		Valid() bool
		// Key of the current item, nil when the iterator is not valid.
		Key() []byte
		// Value decodes value of the current item.
		Value(value any) error
		// Close may be called multiple times.
		Close() error
	}

	DBTransaction interface {
		Reader
		Writer
		Commit() error
		Rollback() error
	}
)
