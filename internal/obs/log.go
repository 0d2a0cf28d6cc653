// Package obs owns the process-wide observability plumbing: the zerolog
// root logger and the Prometheus metrics every HTTP surface shares.
package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// LogConfig controls the root logger.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error. Default info.
	Level string
	// Format is json or console. JSON is the production default.
	Format string
	// Output overrides the destination. Default os.Stderr.
	Output io.Writer
}

// InitLogger configures the root logger. Call once at startup, before any
// request handling; later calls replace the logger atomically.
func InitLogger(cfg LogConfig) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Logger returns the shared root logger.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
