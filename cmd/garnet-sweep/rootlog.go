package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// SweepLogName is the log file placed in the output root while the
// full-screen view owns the terminal.
const SweepLogName = "sweep.log"

// rootLog buffers records until the output root exists, then appends
// them to <root>/sweep.log. The root is created by the sweep itself,
// after the logger is already in use.
type rootLog struct {
	mu   sync.Mutex
	path string
	buf  bytes.Buffer
	f    *os.File
}

func newRootLog(root string) *rootLog {
	return &rootLog{path: filepath.Join(root, SweepLogName)}
}

func (l *rootLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if errors.Is(err, os.ErrNotExist) {
			return l.buf.Write(p)
		}
		if err != nil {
			return 0, err
		}
		l.f = f
		if l.buf.Len() > 0 {
			if _, err := l.buf.WriteTo(f); err != nil {
				return 0, err
			}
		}
	}
	return l.f.Write(p)
}

// Close flushes anything still buffered to stderr when the root never
// appeared.
func (l *rootLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		_, err := l.buf.WriteTo(os.Stderr)
		return err
	}
	return l.f.Close()
}
