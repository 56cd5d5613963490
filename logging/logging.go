package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 4 * 1024 * 1024 // 4MB

// RotatingWriter appends to a log file and swaps it out for a fresh
// one once it grows past maxSize, keeping a single .old backup. Scan
// runs are long and chatty, so the daemon log cannot grow unbounded.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens (or creates) the daemon log at path and points the
// standard logger at both stdout and the rotating file.
func Setup(path string) (*RotatingWriter, error) {
	w, err := NewRotatingWriter(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, w))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	return w, nil
}

func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	w := &RotatingWriter{file: f, path: path, size: size, maxSize: maxSize}
	if w.size > w.maxSize {
		w.rotate()
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".old")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
