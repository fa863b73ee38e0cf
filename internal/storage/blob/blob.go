// Package blob stores uploaded files by key.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob: object not found")

// Object describes a stored blob.
type Object struct {
	Key      string
	Size     int64
	Checksum string
}

// Store persists blobs. Put overwrites any existing object under key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey rejects absolute keys and keys escaping the store root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "." || strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return cleaned, nil
}

// checksumWriter hashes and counts everything written through it.
type checksumWriter struct {
	h    hash.Hash
	size int64
}

func newChecksumWriter() *checksumWriter {
	return &checksumWriter{h: sha256.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, _ := c.h.Write(p)
	c.size += int64(n)
	return n, nil
}

func (c *checksumWriter) object(key string) Object {
	return Object{Key: key, Size: c.size, Checksum: hex.EncodeToString(c.h.Sum(nil))}
}
