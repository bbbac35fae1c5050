package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/partdist/logger"
)

/*
New returns logger for test t, log records are written using t.Log so they
show up only when the test fails (or -v flag is used).

Level can be set using PD_TEST_LOG_LEVEL environment variable.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, level())
}

// NewLvl returns logger for test t with given minimum level.
func NewLvl(t testing.TB, lvl slog.Level) *slog.Logger {
	cfg := &logger.LogConfiguration{Level: lvl.String(), Format: logger.FormatConsole}
	h, err := cfg.Handler(testWriter{t})
	if err != nil {
		t.Fatalf("creating test log handler: %v", err)
	}
	return slog.New(h)
}

/*
LoggerBuilder returns logger factory suitable for components which build
their logger from configuration, configuration is ignored.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) {
		return New(t), nil
	}
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func level() slog.Level {
	lvl := slog.LevelDebug
	if s := os.Getenv("PD_TEST_LOG_LEVEL"); s != "" {
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelDebug
		}
	}
	return lvl
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
