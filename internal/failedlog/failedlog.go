// Copyright 2025 James Ross
// Package failedlog implements the dedicated, non-propagating sink for
// permanent query failures: one line per failure, written to a rotating
// file so a long-running crawl's failure history doesn't grow without
// bound. It is not read by the core; it exists for a human to grep.
package failedlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger appends one line per permanent failure to a rotating file.
type Logger struct {
	mu     sync.Mutex
	output *lumberjack.Logger
}

// New builds a Logger writing to path, rotating at maxSizeMB with up to
// maxBackups old files kept for maxAgeDays.
func New(path string, maxSizeMB, maxBackups, maxAgeDays int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create failed-request log directory: %w", err)
	}
	return &Logger{
		output: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}, nil
}

// Record writes one line describing a permanent failure: the parameter
// key, the stage it occurred at, and the underlying error.
func (l *Logger) Record(parametersKey, stage string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s\tstage=%s\tkey=%s\terror=%v\n",
		time.Now().UTC().Format(time.RFC3339Nano), stage, parametersKey, err)
	_, _ = l.output.Write([]byte(line))
}

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.output.Close()
}
