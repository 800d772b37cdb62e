package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultDataDir is where FileBackend keeps its documents unless configured otherwise.
const DefaultDataDir = "data"

// FileBackend keeps each document as a file in one directory.
// Writes go to a temporary file that is renamed over the document, so a
// failed write leaves the previous contents in place.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = DefaultDataDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file backend: create %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

// Name returns "file".
func (b *FileBackend) Name() string {
	return "file"
}

// Dir returns the data directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Read returns the document file contents.
func (b *FileBackend) Read(ctx context.Context, document string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path(document))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("file backend: read %s: %w", document, err)
	}
	return data, nil
}

// Write atomically replaces the document file.
func (b *FileBackend) Write(ctx context.Context, document string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, document+".tmp-*")
	if err != nil {
		return fmt.Errorf("file backend: write %s: %w", document, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file backend: write %s: %w", document, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file backend: write %s: %w", document, err)
	}
	if err := os.Rename(tmpName, b.path(document)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file backend: write %s: %w", document, err)
	}
	return nil
}

// Close does nothing.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) path(document string) string {
	return filepath.Join(b.dir, document)
}
