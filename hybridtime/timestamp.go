package hybridtime

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// LogicalBits is the number of low bits of the long representation
	// occupied by the logical counter.
	LogicalBits = 16
	// PhysicalBits is the number of bits available for the physical
	// (wall clock, milliseconds since Unix epoch) component. The sign bit
	// of the long representation is not used so it is never negative.
	PhysicalBits = 63 - LogicalBits

	maxPhysical = 1<<PhysicalBits - 1
	maxLogical  = 1<<LogicalBits - 1
)

var errPhysicalOverflow = errors.New("physical time does not fit into 47 bits")

/*
Timestamp is a hybrid logical clock value: wall clock milliseconds plus a
logical counter which orders events within the same millisecond.

Timestamps are totally ordered by (physical, logical) which is also the
order of their LongValue representation.
*/
type Timestamp struct {
	physical uint64
	logical  uint16
}

var (
	// Min is the smallest possible timestamp.
	Min = Timestamp{}
	// Max is the largest timestamp with non-negative LongValue.
	Max = Timestamp{physical: maxPhysical, logical: maxLogical}
)

/*
New returns timestamp with given physical (milliseconds since Unix epoch)
and logical components.
*/
func New(physical uint64, logical uint16) (Timestamp, error) {
	if physical > maxPhysical {
		return Timestamp{}, fmt.Errorf("%w: %d", errPhysicalOverflow, physical)
	}
	return Timestamp{physical: physical, logical: logical}, nil
}

/*
FromTime returns timestamp for the wall clock time "t" with logical counter zero.
Times before the Unix epoch map to Min, times past the physical range to
the largest physical value.
*/
func FromTime(t time.Time) Timestamp {
	ms := t.UnixMilli()
	if ms < 0 {
		return Min
	}
	return Timestamp{physical: min(uint64(ms), maxPhysical)}
}

// FromLong restores timestamp from its LongValue representation.
func FromLong(v int64) Timestamp {
	u := uint64(v)
	return Timestamp{physical: u >> LogicalBits, logical: uint16(u & maxLogical)}
}

// LongValue packs the timestamp into single signed 64 bit integer.
func (ts Timestamp) LongValue() int64 {
	return int64(ts.physical<<LogicalBits | uint64(ts.logical))
}

func (ts Timestamp) Physical() uint64 { return ts.physical }

func (ts Timestamp) Logical() uint16 { return ts.logical }

func (ts Timestamp) IsZero() bool { return ts == Min }

// Time returns the physical component as wall clock time (logical counter is dropped).
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts.physical)).UTC()
}

/*
Compare returns -1 if ts is before other, 0 if they are equal and +1 if ts
is after other.
*/
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.physical < other.physical:
		return -1
	case ts.physical > other.physical:
		return 1
	case ts.logical < other.logical:
		return -1
	case ts.logical > other.logical:
		return 1
	}
	return 0
}

func (ts Timestamp) Before(other Timestamp) bool { return ts.Compare(other) < 0 }

func (ts Timestamp) After(other Timestamp) bool { return ts.Compare(other) > 0 }

/*
Next returns the smallest timestamp which is after ts. When the logical
counter overflows the physical component is advanced. Next of Max (or of
anything after it) is Max.
*/
func (ts Timestamp) Next() Timestamp {
	if !ts.Before(Max) {
		return Max
	}
	if ts.logical == maxLogical {
		return Timestamp{physical: ts.physical + 1}
	}
	return Timestamp{physical: ts.physical, logical: ts.logical + 1}
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%s+%d", ts.Time().Format("2006-01-02T15:04:05.000Z07:00"), ts.logical)
}

// MarshalText encodes the timestamp as its decimal LongValue.
func (ts Timestamp) MarshalText() ([]byte, error) {
	return strconv.AppendInt(nil, ts.LongValue(), 10), nil
}

func (ts *Timestamp) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hybrid timestamp %q: %w", text, err)
	}
	*ts = FromLong(v)
	return nil
}
