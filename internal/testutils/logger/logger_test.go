package logger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/logger"
	"github.com/alphabill-org/partdist/partitiondistribution"
)

func Test_logger_for_tests(t *testing.T) {
	t.Skip("this test is only for visually checking the output")

	l := New(t).With(logger.Partition(partitiondistribution.PartitionID{Zone: 1, Partition: 2}))
	l.Error("now thats really bad", logger.Error(fmt.Errorf("what now")))
	l.Info("so you know", logger.Data([]string{"a", "b"}))
	l.Debug("lets investigate")
	t.Fail()
}

func Test_level(t *testing.T) {
	t.Setenv("PD_TEST_LOG_LEVEL", "warn")
	require.Equal(t, slog.LevelWarn, level())

	t.Setenv("PD_TEST_LOG_LEVEL", "nonsense")
	require.Equal(t, slog.LevelDebug, level())

	t.Setenv("PD_TEST_LOG_LEVEL", "")
	require.Equal(t, slog.LevelDebug, level())
}

func Test_builders(t *testing.T) {
	t.Setenv("PD_TEST_LOG_LEVEL", "")
	ctx := context.Background()
	require.False(t, NOP().Enabled(ctx, slog.LevelError))

	log, err := LoggerBuilder(t)(&logger.LogConfiguration{Format: "ignored"})
	require.NoError(t, err)
	require.True(t, log.Enabled(ctx, slog.LevelDebug))

	require.False(t, NewLvl(t, slog.LevelInfo).Enabled(ctx, slog.LevelDebug))
}
