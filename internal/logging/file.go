package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileRotationConfig configures optional log-file rotation, wired to the
// LOG_FILE environment variable (§6/§10). When Path is empty, NewOutput
// returns os.Stderr and no rotation occurs.
type FileRotationConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileRotationConfig returns conservative rotation bounds.
func DefaultFileRotationConfig(path string) FileRotationConfig {
	return FileRotationConfig{Path: path, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28, Compress: true}
}

// NewOutput returns the io.Writer structured logging should write to: a
// rotating file via lumberjack if cfg.Path is set, otherwise stderr.
func NewOutput(cfg FileRotationConfig) io.Writer {
	if cfg.Path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}
