// Package logging points the standard logger at stderr and, when a file is
// configured, a size-rotated log file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures the standard logger and returns the closer for the log
// file. An empty File logs to stderr only.
func Setup(opts Options) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  false,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj, nil
}
