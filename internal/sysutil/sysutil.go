// Package sysutil holds process-level helpers: global log level, the log
// sink (console, JSON or a rotating file), and small string utilities.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tbourn/go-call-agent/internal/config"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// LogWriter builds the process log sink. Console output is JSON unless pretty
// is set; a non-empty file path adds a size-rotated file that always receives
// JSON. The returned close func releases the file handle.
func LogWriter(console io.Writer, pretty bool, file config.LogFileConfig) (io.Writer, func() error) {
	if console == nil {
		console = os.Stderr
	}
	out := console
	if pretty {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	if strings.TrimSpace(file.Path) == "" {
		return out, func() error { return nil }
	}

	lj := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
	}
	return zerolog.MultiLevelWriter(out, lj), lj.Close
}

// NewLogger returns a timestamped logger over w tagged with the service name.
func NewLogger(w io.Writer, service string) zerolog.Logger {
	l := zerolog.New(w).With().Timestamp()
	if s := strings.TrimSpace(service); s != "" {
		l = l.Str("service", s)
	}
	return l.Logger()
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
