package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatECS     = "ecs"
	FormatMinimal = "minimal"

	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	OutputDiscard = "discard"
)

/*
LogConfiguration is the logger configuration, loaded from yaml file
and possibly overridden by command line flags.
*/
type LogConfiguration struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case insensitive), INFO when empty.
	Level string `yaml:"defaultLevel"`
	// Format is one of text, json, console, ecs or minimal, text when empty.
	Format string `yaml:"format"`
	// OutputPath is log file name or one of stdout, stderr, discard.
	OutputPath string `yaml:"outputPath"`
	// TimeFormat is Go time layout or "none" to drop the time attribute.
	TimeFormat string `yaml:"timeFormat"`
	// ShowSource adds the source code position of the logging call to records.
	ShowSource bool `yaml:"showSource"`
}

// New creates logger based on the configuration, default configuration is used when cfg is nil.
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	out, err := cfg.Writer()
	if err != nil {
		return nil, fmt.Errorf("creating log output: %w", err)
	}
	h, err := cfg.Handler(out)
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

// Writer returns the destination the configuration refers to.
func (cfg *LogConfiguration) Writer() (io.Writer, error) {
	switch strings.ToLower(cfg.OutputPath) {
	case "", OutputStdout:
		return os.Stdout, nil
	case OutputStderr:
		return os.Stderr, nil
	case OutputDiscard:
		return io.Discard, nil
	}
	if dir := filepath.Dir(cfg.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating directory for log file: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// Handler creates slog handler which writes into "out".
func (cfg *LogConfiguration) Handler(out io.Writer) (slog.Handler, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.ShowSource}

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		opts.ReplaceAttr = formatTimeAttr(cfg.TimeFormat)
		return slog.NewTextHandler(out, opts), nil
	case FormatJSON:
		opts.ReplaceAttr = formatTimeAttr(cfg.TimeFormat)
		return slog.NewJSONHandler(out, opts), nil
	case FormatConsole:
		timeFmt := cfg.TimeFormat
		if timeFmt == "" {
			timeFmt = "15:04:05.0000"
		}
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(timeFmt), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opts), nil
	case FormatECS:
		// ECS expects the time in the default (RFC3339) format so TimeFormat is ignored
		opts.ReplaceAttr = formatAttrECS
		return slog.NewJSONHandler(out, opts), nil
	case FormatMinimal:
		opts.ReplaceAttr = formatAttrMinimal
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
