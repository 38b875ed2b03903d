package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter writes to standard error and, once initialized, the log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stderr.Write(p)
	if logRotator == nil {
		return len(p), nil
	}
	return logRotator.Write(p)
}

var (
	// logRotator is one of the logging outputs. Use initLogRotator to set it.
	logRotator *rotator.Rotator

	backendLog = slog.NewBackend(logWriter{})

	log     = backendLog.Logger("CTL")
	brdgLog = backendLog.Logger("BRDG")
	rlayLog = backendLog.Logger("RLAY")

	subsystemLoggers = map[string]slog.Logger{
		"CTL":  log,
		"BRDG": brdgLog,
		"RLAY": rlayLog,
	}
)

// initLogRotator makes the loggers also write to logFile, rolling it at
// 10 MiB and keeping three old files.
func initLogRotator(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("create file rotator: %w", err)
	}
	logRotator = r
	return nil
}

// closeLogRotator flushes and closes the log file, if any.
func closeLogRotator() {
	if logRotator != nil {
		_ = logRotator.Close()
		logRotator = nil
	}
}

// setLogLevels sets every subsystem to level.
func setLogLevels(level string) error {
	lvl, ok := slog.LevelFromString(strings.ToLower(level))
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	for _, l := range subsystemLoggers {
		l.SetLevel(lvl)
	}
	return nil
}
