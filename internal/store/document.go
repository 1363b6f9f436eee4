package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// errUnchanged lets an update function skip the write without failing.
var errUnchanged = errors.New("document unchanged")

// Document is one JSON file holding a whole collection. Every read-modify-write
// runs under the document mutex and lands on disk through a rename, so
// concurrent updates never lose each other's changes and readers never see a
// partial file.
type Document[T any] struct {
	path  string
	empty func() T
	mu    sync.RWMutex
}

// NewDocument returns a document stored at path. empty supplies the value
// used while the file does not exist yet.
func NewDocument[T any](path string, empty func() T) *Document[T] {
	return &Document[T]{path: path, empty: empty}
}

// Path returns the file backing the document.
func (d *Document[T]) Path() string { return d.path }

// Read returns the current content.
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.load()
}

// Update loads the document, applies fn and writes the result back. Nothing
// is written when fn returns an error; the error is passed through.
func (d *Document[T]) Update(ctx context.Context, fn func(*T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.load()
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	return d.persist(v)
}

func (d *Document[T]) load() (T, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return d.empty(), nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("read %s: %w", filepath.Base(d.path), err)
	}
	if len(data) == 0 {
		return d.empty(), nil
	}
	v := d.empty()
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(d.path), err)
	}
	return v, nil
}

func (d *Document[T]) persist(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(d.path), err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return err
	}
	tmpPath := d.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmpPath), err)
	}
	return os.Rename(tmpPath, d.path)
}
