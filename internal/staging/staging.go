// Package staging provides local files for a harvest run: the key file the
// search writes, and the batch of envelopes uploaded to the file store.
package staging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nucleus/harvest-core/pkg/addi"
)

// Handle describes a closed batch file.
type Handle struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// CreateFile creates an empty staging file named prefix-<uuid>.ext in dir.
func CreateFile(dir, prefix, ext string) (*os.File, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, uuid.New().String(), ext))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return f, nil
}

// BatchWriter appends envelopes to a staging file. It is safe for concurrent
// use; each envelope is written as one unit so concurrent writers never
// interleave within an envelope.
type BatchWriter struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	count  int
	size   int64
	closed bool
}

// NewBatchWriter creates a batch file in dir.
func NewBatchWriter(dir, prefix string) (*BatchWriter, error) {
	f, err := CreateFile(dir, prefix, "addi")
	if err != nil {
		return nil, err
	}
	return &BatchWriter{file: f, buf: bufio.NewWriterSize(f, 256*1024)}, nil
}

// Path returns the batch file location.
func (w *BatchWriter) Path() string { return w.file.Name() }

// Write appends env.
func (w *BatchWriter) Write(env *addi.Envelope) error {
	if env == nil {
		return nil
	}
	data := env.Bytes()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("staging: write to closed batch %s", w.file.Name())
	}
	n, err := w.buf.Write(data)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("staging: write envelope: %w", err)
	}
	w.count++
	return nil
}

// Close flushes and closes the batch file.
func (w *BatchWriter) Close() (*Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return &Handle{Path: w.file.Name(), Records: w.count, Bytes: w.size}, nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return nil, fmt.Errorf("staging: flush batch: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("staging: close batch: %w", err)
	}
	return &Handle{Path: w.file.Name(), Records: w.count, Bytes: w.size}, nil
}

// Cleanup removes a staging file.
func Cleanup(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
