package logger

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/partitiondistribution"
)

func Test_attrConstructors(t *testing.T) {
	err := errors.New("boom")
	a := Error(err)
	require.Equal(t, ErrorKey, a.Key)
	require.Equal(t, err, a.Value.Any())

	a = Data(42)
	require.Equal(t, DataKey, a.Key)
	require.EqualValues(t, 42, a.Value.Int64())

	a = Partition(partitiondistribution.PartitionID{Zone: 3, Partition: 7})
	require.Equal(t, PartitionKey, a.Key)
	require.Equal(t, "3_7", a.Value.String())

	a = Module("rest")
	require.Equal(t, ModuleKey, a.Key)
	require.Equal(t, "rest", a.Value.String())
}

func Test_formatTimeAttr(t *testing.T) {
	t.Run("empty format string", func(t *testing.T) {
		require.Nil(t, formatTimeAttr(""))
	})

	t.Run("format: none", func(t *testing.T) {
		f := formatTimeAttr("none")
		require.NotNil(t, f)
		now := time.Now()

		a := f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, slog.Attr{}, a)

		// when not time key value is preserved
		a = f(nil, slog.Time("foo", now))
		require.True(t, a.Equal(slog.Time("foo", now)))

		// time key inside group is not the record time
		a = f([]string{"grp"}, slog.Time(slog.TimeKey, now))
		require.True(t, a.Equal(slog.Time(slog.TimeKey, now)))
	})

	t.Run("format: format string", func(t *testing.T) {
		f := formatTimeAttr("15:04:05.0000")
		require.NotNil(t, f)

		// zero time is not changed
		a := f(nil, slog.Time(slog.TimeKey, time.Time{}))
		require.Equal(t, slog.Time(slog.TimeKey, time.Time{}), a)

		now := time.Now()
		a = f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, now.Format("15:04:05.0000"), a.Value.String())

		// value is of wrong type for time key
		require.Panics(t, func() { f(nil, slog.Int(slog.TimeKey, 42)) })
	})
}

func Test_composeAttrFmt(t *testing.T) {
	b0 := func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()+1) }
	b1 := func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()+2) }
	b2 := func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()+4) }
	b3 := func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()+8) }

	require.Nil(t, composeAttrFmt())
	require.Nil(t, composeAttrFmt(nil))
	require.Nil(t, composeAttrFmt(nil, nil, nil))

	var testCases = []struct {
		f    []func(groups []string, a slog.Attr) slog.Attr
		want int64
	}{
		{f: []func([]string, slog.Attr) slog.Attr{b0}, want: 1},
		{f: []func([]string, slog.Attr) slog.Attr{nil, b1, nil}, want: 2},
		{f: []func([]string, slog.Attr) slog.Attr{b0, nil, b1}, want: 3},
		{f: []func([]string, slog.Attr) slog.Attr{b0, b1, b2, nil}, want: 7},
		{f: []func([]string, slog.Attr) slog.Attr{b0, b1, b2, b3}, want: 15},
		// same func passed multiple times is called multiple times
		{f: []func([]string, slog.Attr) slog.Attr{b3, b3}, want: 16},
	}
	for n, tc := range testCases {
		f := composeAttrFmt(tc.f...)
		require.NotNil(t, f, "case %d", n)
		require.EqualValues(t, tc.want, f(nil, slog.Int64("test", 0)).Value.Int64(), "case %d", n)
	}
}

func Test_dataName(t *testing.T) {
	type myData struct {
		v int
	}
	var clv customLogValuer = 4

	var testCases = []struct {
		value slog.Value
		name  string
	}{
		{value: slog.BoolValue(true), name: "Bool"},
		{value: slog.IntValue(32), name: "Int64"},
		{value: slog.Uint64Value(90), name: "Uint64"},
		{value: slog.StringValue("foobar"), name: "String"},
		{value: slog.DurationValue(time.Second), name: "Duration"},
		{value: slog.AnyValue("hi"), name: "String"},
		{value: slog.AnyValue(myData{42}), name: "logger_myData"},
		{value: slog.AnyValue(&myData{42}), name: "logger_myData"},
		{value: slog.AnyValue(customLogValuer(2)), name: "logger_customLogValuer"},
		{value: slog.AnyValue(&clv), name: "logger_customLogValuer"},
		{value: slog.AnyValue(partitiondistribution.PartitionID{}), name: "partitiondistribution_PartitionID"},
	}

	for n, tc := range testCases {
		if name := dataName(tc.value); tc.name != name {
			t.Errorf("[%d] expected %q got %q for %#v", n, tc.name, name, tc.value.Any())
		}
	}
}

func Test_formatDataAttrAsJSON(t *testing.T) {
	type SampleData struct {
		Name  string
		Value string
	}

	a := formatDataAttrAsJSON(nil, slog.Any(DataKey, &SampleData{Name: "Test", Value: "JSON"}))
	require.Equal(t, DataKey, a.Key)
	require.Equal(t, `{"Name":"Test","Value":"JSON"}`, a.Value.String())

	// other keys are not touched
	a = formatDataAttrAsJSON(nil, slog.Any("other", &SampleData{Name: "Test"}))
	require.IsType(t, &SampleData{}, a.Value.Any())
}

func Test_formatAttrMinimal(t *testing.T) {
	sample := "sample data"
	for _, key := range []string{slog.LevelKey, slog.MessageKey, ErrorKey} {
		a := formatAttrMinimal(nil, slog.Any(key, sample))
		require.Equal(t, key, a.Key)
		require.Equal(t, sample, a.Value.String())
	}
	require.Equal(t, slog.Attr{}, formatAttrMinimal(nil, slog.Any(slog.TimeKey, sample)))
	require.Equal(t, slog.Attr{}, formatAttrMinimal(nil, slog.Any(PartitionKey, sample)))
}

func Test_formatAttrECS(t *testing.T) {
	sample := "sample data"
	a := formatAttrECS(nil, slog.Any(slog.MessageKey, sample))
	require.Equal(t, "message", a.Key)
	require.Equal(t, sample, a.Value.String())

	source := &slog.Source{
		Function: "github.com/alphabill-org/partdist/partitions.(*ChainStore).Append",
		File:     "store.go",
		Line:     10,
	}
	a = formatAttrECS(nil, slog.Any(slog.SourceKey, source))
	require.Equal(t, "log", a.Key)
	origin := a.Value.Group()[0]
	require.Equal(t, "origin", origin.Key)
	require.Equal(t, "function", origin.Value.Group()[0].Key)
	require.Equal(t, "(*ChainStore).Append", origin.Value.Group()[0].Value.String())
	file := origin.Value.Group()[1]
	require.Equal(t, "file", file.Key)
	require.Equal(t, source.File, file.Value.Group()[0].Value.String())
	require.EqualValues(t, source.Line, file.Value.Group()[1].Value.Int64())

	a = formatAttrECS(nil, slog.Any(ModuleKey, sample))
	require.Equal(t, "service", a.Key)
	require.Equal(t, "type", a.Value.Group()[0].Key)
	require.Equal(t, sample, a.Value.Group()[0].Value.String())

	a = formatAttrECS(nil, slog.Any(PartitionKey, "1_2"))
	require.Equal(t, "labels", a.Key)
	require.Equal(t, PartitionKey, a.Value.Group()[0].Key)
	require.Equal(t, "1_2", a.Value.Group()[0].Value.String())

	a = formatAttrECS(nil, slog.Any(ErrorKey, sample))
	require.Equal(t, "error", a.Key)
	require.Equal(t, "message", a.Value.Group()[0].Key)
	require.Equal(t, sample, a.Value.Group()[0].Value.String())

	a = formatAttrECS(nil, slog.Any(DataKey, sample))
	require.Equal(t, DataKey, a.Key)
	require.Equal(t, "String", a.Value.Group()[0].Key)
	require.Equal(t, sample, a.Value.Group()[0].Value.String())

	a = formatAttrECS(nil, slog.Any("foo", sample))
	require.Equal(t, "foo", a.Key)
}

type customLogValuer int

func (clv customLogValuer) LogValue() slog.Value {
	return slog.IntValue(int(clv))
}
