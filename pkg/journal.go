// Package pkg provides utilities shared by failpass commands.
package pkg

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Journal is an append-only, gob-encoded log of items of type T stored in a
// single file. Items are never rewritten; readers decode from the start.
type Journal[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Get(index uint64) (T, error)
	Range(f func(index uint64, item T) error) error
	Close() error
}

type gobJournal[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// CreateJournal creates (or truncates) a journal at path.
func CreateJournal[T any](path string) (Journal[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		slog.Error("failed to create journal directory", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// #nosec G304 - path is built by the artifact store
	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create journal", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	slog.Debug("created journal", "path", path)

	return &gobJournal[T]{
		path:    path,
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// OpenJournal opens an existing journal read-only and counts its items.
// Append on the returned journal fails.
func OpenJournal[T any](path string) (Journal[T], error) {
	j := &gobJournal[T]{path: path}

	n, err := j.count()
	if err != nil {
		return nil, err
	}

	j.length = n

	return j, nil
}

// Append implements Journal.
func (j *gobJournal[T]) Append(item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.encoder == nil {
		return fmt.Errorf("journal %s is read-only", j.path)
	}

	if err := j.encoder.Encode(item); err != nil {
		slog.Error("failed to encode item", "path", j.path, "index", j.length, "error", err)
		return fmt.Errorf("failed to encode item: %w", err)
	}

	j.length++

	return nil
}

// Path implements Journal.
func (j *gobJournal[T]) Path() string {
	return j.path
}

// AppendBatch implements Journal.
func (j *gobJournal[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := j.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Close implements Journal.
func (j *gobJournal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil
	j.encoder = nil

	if err != nil {
		slog.Error("failed to close journal", "path", j.path, "error", err)
		return err
	}

	return nil
}

// Get implements Journal.
func (j *gobJournal[T]) Get(index uint64) (T, error) {
	var found T

	if index >= j.Len() {
		return found, fmt.Errorf("index %d out of bounds (length %d)", index, j.Len())
	}

	err := j.Range(func(i uint64, item T) error {
		if i == index {
			found = item
			return errStopRange
		}

		return nil
	})
	if err != nil && !errors.Is(err, errStopRange) {
		var zero T
		return zero, err
	}

	return found, nil
}

// Len implements Journal.
func (j *gobJournal[T]) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.length
}

var errStopRange = errors.New("stop range")

// Range implements Journal.
func (j *gobJournal[T]) Range(fn func(index uint64, item T) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// #nosec G304 - path is built by the artifact store
	file, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close journal reader", "path", j.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := range j.length {
		// Decode into a fresh value so pointer fields do not leak between items.
		var item T
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("failed to decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

func (j *gobJournal[T]) count() (uint64, error) {
	// #nosec G304 - path is built by the artifact store
	file, err := os.Open(j.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open journal: %w", err)
	}

	defer func() { _ = file.Close() }()

	decoder := gob.NewDecoder(file)

	var n uint64

	for {
		var item T

		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		if err != nil {
			return n, fmt.Errorf("failed to decode item at index %d: %w", n, err)
		}

		n++
	}
}
