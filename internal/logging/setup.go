package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the sink and format of the process logger.
type Options struct {
	// File is the path of a rotating log file. Empty means stderr.
	File string
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// JSON switches the handler from text to JSON output.
	JSON bool
}

// New builds the process logger. When opts.File is set the output goes to a
// lumberjack rotating writer, which is returned as the io.Closer.
func New(opts Options) (*SlogLogger, io.Closer) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = lj
		closer = lj
	}

	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}

	return NewSlogLogger(slog.New(h)), closer
}

// NewNop returns a logger that discards everything.
func NewNop() *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ParseLevel maps a textual level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
