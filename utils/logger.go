package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingLogOptions configures a file sink rotated by lumberjack
type RotatingLogOptions struct {
	Dir        string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotatingLogger returns a logger writing to stdout and a rotated file.
// When the directory cannot be created it falls back to stdout only.
func NewRotatingLogger(prefix string, opts RotatingLogOptions) (*log.Logger, io.Closer) {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC
	if opts.Dir == "" || opts.File == "" {
		return log.New(os.Stdout, prefix, flags), nopCloser{}
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		l := log.New(os.Stdout, prefix, flags)
		l.Printf("logger: cannot create log dir %s, using stdout only: %v", opts.Dir, err)
		return l, nopCloser{}
	}

	sink := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.File),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	mw := io.MultiWriter(os.Stdout, sink)
	// log.Logger is goroutine-safe
	return log.New(mw, prefix, flags), sink
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
