package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem stores blobs as files below a root directory.
type FileSystem struct {
	root string
}

// NewFileSystem creates root if needed.
func NewFileSystem(root string) (*FileSystem, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FileSystem{root: root}, nil
}

func (f *FileSystem) path(key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(f.root, filepath.FromSlash(cleaned)), nil
}

// Put writes to a temporary file and renames it into place so readers never
// observe a partial object.
func (f *FileSystem) Put(ctx context.Context, key string, r io.Reader) (Object, error) {
	cleaned, dst, err := f.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return Object{}, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum := newChecksumWriter()
	if _, err := io.Copy(io.MultiWriter(tmp, sum), r); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Object{}, fmt.Errorf("commit blob: %w", err)
	}
	return sum.object(cleaned), nil
}

func (f *FileSystem) Open(_ context.Context, key string) (io.ReadCloser, error) {
	_, p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Delete removes the blob; a missing blob is not an error.
func (f *FileSystem) Delete(_ context.Context, key string) error {
	_, p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
