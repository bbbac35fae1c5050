package partitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/partdist/keyvaluedb"
	"github.com/alphabill-org/partdist/logger"
	"github.com/alphabill-org/partdist/observability"
	pd "github.com/alphabill-org/partdist/partitiondistribution"
	"github.com/alphabill-org/partdist/versioned"
)

var (
	ErrPartitionNotFound = errors.New("partition not found")
	ErrStaleAssignments  = errors.New("assignments are older than the last snapshot of the chain")
	ErrNotCausal         = errors.New("snapshots of the chain are not in timestamp order")
)

type (
	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	/*
	ChainStore persists reconfiguration history (AssignmentsChain) of partitions.
	Chain of a partition is always read and written as a whole, every write
	increments the revision of the partition record.
	*/
	ChainStore struct {
		db  keyvaluedb.KeyValueDB
		log *slog.Logger

		opCnt metric.Int64Counter

		// serializes read-modify-write operations
		mu sync.Mutex
	}

	// ChainRecord is the stored form of partition's chain.
	ChainRecord struct {
		_         struct{} `cbor:",toarray"`
		Zone      uint32
		Partition uint32
		Revision  uint64
		// Chain is versioned encoding of the AssignmentsChain (current serializer version)
		Chain []byte
	}
)

func NewChainStore(db keyvaluedb.KeyValueDB, observe Observability) (*ChainStore, error) {
	if db == nil {
		return nil, errors.New("key-value db is nil")
	}
	s := &ChainStore{
		db:  db,
		log: observe.Logger().With(logger.Module("partitions")),
	}
	var err error
	s.opCnt, err = observe.Meter("partitions").Int64Counter("chain.ops", metric.WithDescription("Number of chain store operations"))
	if err != nil {
		return nil, fmt.Errorf("creating chain operations counter: %w", err)
	}
	return s, nil
}

func (r *ChainRecord) ID() pd.PartitionID {
	return pd.PartitionID{Zone: r.Zone, Partition: r.Partition}
}

// AssignmentsChain decodes the chain stored in the record.
func (r *ChainRecord) AssignmentsChain() (pd.AssignmentsChain, error) {
	chain, err := versioned.FromBytes(r.Chain, pd.AssignmentsChainSerializer{})
	if err != nil {
		return pd.AssignmentsChain{}, fmt.Errorf("decoding chain of partition %s: %w", r.ID(), err)
	}
	return chain, nil
}

/*
Record returns stored record of the partition, ErrPartitionNotFound when
there is no chain for the partition.
*/
func (s *ChainStore) Record(ctx context.Context, id pd.PartitionID) (_ *ChainRecord, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("read", err)) }()
	return readRecord(s.db, id)
}

// Chain returns the chain of the partition and current revision of it.
func (s *ChainStore) Chain(ctx context.Context, id pd.PartitionID) (_ pd.AssignmentsChain, _ uint64, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("read", err)) }()
	rec, err := readRecord(s.db, id)
	if err != nil {
		return pd.AssignmentsChain{}, 0, err
	}
	chain, err := rec.AssignmentsChain()
	if err != nil {
		return pd.AssignmentsChain{}, 0, err
	}
	return chain, rec.Revision, nil
}

/*
SetChain replaces the whole chain of the partition, the partition is
created when it doesn't exist yet. Returns the new revision.
*/
func (s *ChainStore) SetChain(ctx context.Context, id pd.PartitionID, chain pd.AssignmentsChain) (rev uint64, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("set", err)) }()
	data, err := versioned.ToBytes(chain, pd.AssignmentsChainSerializer{})
	if err != nil {
		return 0, fmt.Errorf("encoding chain: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.update(id, func(*ChainRecord) ([]byte, error) { return data, nil })
	if err != nil {
		return 0, fmt.Errorf("storing chain of partition %s: %w", id, err)
	}
	s.log.DebugContext(ctx, fmt.Sprintf("chain set, %d snapshots", chain.Len()), logger.Partition(id), slog.Uint64("revision", rec.Revision))
	return rec.Revision, nil
}

/*
Append adds snapshot "a" to the end of the partition's chain (creating the
partition if it doesn't exist). Snapshot which is older than the current last
snapshot of the chain is rejected with ErrStaleAssignments.
*/
func (s *ChainStore) Append(ctx context.Context, id pd.PartitionID, a pd.Assignments) (_ pd.AssignmentsChain, _ uint64, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("append", err)) }()
	if a.Len() == 0 {
		return pd.AssignmentsChain{}, 0, fmt.Errorf("%w: assignments must not be empty", pd.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var chain pd.AssignmentsChain
	rec, err := s.update(id, func(cur *ChainRecord) (_ []byte, err error) {
		if cur != nil {
			if chain, err = cur.AssignmentsChain(); err != nil {
				return nil, err
			}
		}
		if last, ok := chain.Last(); ok && a.Timestamp().Before(last.Timestamp()) {
			return nil, fmt.Errorf("%w: %s is before %s", ErrStaleAssignments, a.Timestamp(), last.Timestamp())
		}
		chain = chain.Append(a)
		return versioned.ToBytes(chain, pd.AssignmentsChainSerializer{})
	})
	if err != nil {
		return pd.AssignmentsChain{}, 0, fmt.Errorf("appending to the chain of partition %s: %w", id, err)
	}
	s.log.DebugContext(ctx, "assignments appended", logger.Partition(id), slog.Uint64("revision", rec.Revision), logger.Data(a))
	return chain, rec.Revision, nil
}

// Drop deletes the chain of the partition.
func (s *ChainStore) Drop(ctx context.Context, id pd.PartitionID) (err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("drop", err)) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.StartTx()
	if err != nil {
		return err
	}
	if _, err := readRecord(tx, id); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Delete(id.Bytes()); err != nil {
		return errors.Join(fmt.Errorf("deleting partition %s: %w", id, err), tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}
	s.log.DebugContext(ctx, "chain dropped", logger.Partition(id))
	return nil
}

// Partitions returns ids of all the partitions which have a chain, ordered by zone and partition.
func (s *ChainStore) Partitions(ctx context.Context) (ids []pd.PartitionID, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("list", err)) }()
	return scanPartitions(s.db.First(), func(pd.PartitionID) bool { return true })
}

// ZonePartitions returns ids of the partitions of the zone which have a chain, ordered by partition.
func (s *ChainStore) ZonePartitions(ctx context.Context, zone uint32) (ids []pd.PartitionID, err error) {
	defer func() { s.opCnt.Add(ctx, 1, observability.Op("list", err)) }()
	first := pd.PartitionID{Zone: zone}
	return scanPartitions(s.db.Find(first.Bytes()), func(id pd.PartitionID) bool { return id.Zone == zone })
}

// scanPartitions collects ids from the iterator until "in" returns false.
func scanPartitions(it keyvaluedb.Iterator, in func(pd.PartitionID) bool) (ids []pd.PartitionID, err error) {
	defer func() { err = errors.Join(err, it.Close()) }()

	for ; it.Valid(); it.Next() {
		id, err := pd.PartitionIDFromBytes(it.Key())
		if err != nil {
			return nil, fmt.Errorf("invalid key %X in the db: %w", it.Key(), err)
		}
		if !in(id) {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

/*
Verify decodes the chain of every partition in the store and checks that
snapshots are in timestamp order. All the problems found are returned as
a joined error.
*/
func (s *ChainStore) Verify(ctx context.Context) error {
	ids, err := s.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		chain, _, err := s.Chain(ctx, id)
		switch {
		case errors.Is(err, ErrPartitionNotFound):
			// dropped after listing
		case err != nil:
			errs = append(errs, err)
		case !chain.IsCausal():
			errs = append(errs, fmt.Errorf("partition %s: %w", id, ErrNotCausal))
		}
	}
	if len(errs) > 0 {
		s.log.WarnContext(ctx, fmt.Sprintf("%d of %d chains failed verification", len(errs), len(ids)))
		return errors.Join(errs...)
	}
	s.log.DebugContext(ctx, fmt.Sprintf("verified %d chains", len(ids)))
	return nil
}

/*
update runs read-modify-write transaction on the partition record. The "chain"
callback is called with the current record (nil when the partition doesn't
exist yet) and returns the new encoded chain.
*/
func (s *ChainStore) update(id pd.PartitionID, chain func(cur *ChainRecord) ([]byte, error)) (*ChainRecord, error) {
	tx, err := s.db.StartTx()
	if err != nil {
		return nil, err
	}
	cur, err := readRecord(tx, id)
	switch {
	case errors.Is(err, ErrPartitionNotFound):
		cur = nil
	case err != nil:
		return nil, errors.Join(err, tx.Rollback())
	}

	rec := &ChainRecord{Zone: id.Zone, Partition: id.Partition}
	if cur != nil {
		rec.Revision = cur.Revision
	}
	if rec.Chain, err = chain(cur); err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}
	rec.Revision++
	if err := tx.Write(id.Bytes(), rec); err != nil {
		return nil, errors.Join(fmt.Errorf("writing record: %w", err), tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tx: %w", err)
	}
	return rec, nil
}

func readRecord(db keyvaluedb.Reader, id pd.PartitionID) (*ChainRecord, error) {
	rec := &ChainRecord{}
	found, err := db.Read(id.Bytes(), rec)
	if err != nil {
		if found {
			// the record exists but can't be decoded
			err = errors.Join(versioned.ErrCorruptedData, err)
		}
		return nil, fmt.Errorf("reading record of partition %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	return rec, nil
}
