// Package scheduler runs the alert engine: scanning new jobs against alerts,
// holding matches until their release window and fanning releases out to channels.
package scheduler

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/amirphl/jobboard-alerts/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewSchedulerLogger returns a logger writing to stdout and a rotated file.
// The returned close func flushes the file; it is a no-op on fallback.
func NewSchedulerLogger(cfg config.LoggingConfig) (*log.Logger, func()) {
	logger, closer, err := newFileLogger(cfg)
	if err != nil {
		logger = log.Default()
		logger.Printf("scheduler: failed to initialize file logger: %v", err)
		return logger, func() {}
	}
	return logger, func() { _ = closer.Close() }
}

func newFileLogger(cfg config.LoggingConfig) (*log.Logger, io.Closer, error) {
	if cfg.FilePath == "" {
		return nil, nil, fmt.Errorf("LOG_FILE_PATH is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	_ = f.Close()

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotating)
	// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
	return log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC), rotating, nil
}
