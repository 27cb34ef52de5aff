package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend fans log lines out to stdout and an optional rotating log file and
// hands out one logger per subsystem.
type Backend struct {
	stdOut          io.Writer
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	mtx     sync.Mutex
	loggers map[string]slog.Logger
}

// NewBackend creates a log backend. debugLevel is either a single level
// ("debug") or a comma separated list of subsys=level pairs, optionally
// mixed with a default level ("info,SHIP=debug").
func NewBackend(logFile, debugLevel string, stdOut io.Writer) (*Backend, error) {
	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0o700); err != nil {
				return nil, fmt.Errorf("logging: create log directory: %w", err)
			}
		}
		var err error
		logRotator, err = rotator.New(logFile, 1024, false, 10)
		if err != nil {
			return nil, fmt.Errorf("logging: create file rotator: %w", err)
		}
	}

	b := &Backend{
		stdOut:          stdOut,
		logRotator:      logRotator,
		defaultLogLevel: slog.LevelInfo,
		logLevels:       make(map[string]slog.Level),
		loggers:         make(map[string]slog.Logger),
	}
	b.bknd = slog.NewBackend(b)

	if err := b.parseLevels(debugLevel); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Backend) parseLevels(debugLevel string) error {
	debugLevel = strings.TrimSpace(debugLevel)
	if debugLevel == "" {
		return nil
	}
	for _, v := range strings.Split(debugLevel, ",") {
		fields := strings.Split(strings.TrimSpace(v), "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return fmt.Errorf("logging: unknown level %q", fields[0])
			}
			b.defaultLogLevel = level
		case 2:
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return fmt.Errorf("logging: unknown level %q for %s", fields[1], fields[0])
			}
			b.logLevels[strings.ToUpper(fields[0])] = level
		default:
			return fmt.Errorf("logging: unable to parse %q as subsys=level", v)
		}
	}
	return nil
}

// Write implements io.Writer for the slog backend.
func (b *Backend) Write(p []byte) (int, error) {
	if b.stdOut != nil {
		b.stdOut.Write(p)
	}
	if b.logRotator != nil {
		b.logRotator.Write(p)
	}
	return len(p), nil
}

// Logger returns the logger for subsys, creating it on first use.
func (b *Backend) Logger(subsys string) slog.Logger {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if l, ok := b.loggers[subsys]; ok {
		return l
	}

	l := b.bknd.Logger(subsys)
	if level, ok := b.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(b.defaultLogLevel)
	}
	b.loggers[subsys] = l
	return l
}

// Close flushes and closes the rotating log file, if any.
func (b *Backend) Close() error {
	if b.logRotator == nil {
		return nil
	}
	return b.logRotator.Close()
}
