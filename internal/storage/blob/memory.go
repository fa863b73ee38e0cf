package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Memory keeps blobs in a map.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	// FailPut makes every Put fail; used to exercise cleanup paths.
	FailPut error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, r io.Reader) (Object, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	if m.FailPut != nil {
		return Object{}, m.FailPut
	}
	sum := newChecksumWriter()
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, sum), r); err != nil {
		return Object{}, fmt.Errorf("read blob: %w", err)
	}
	m.mu.Lock()
	m.objects[cleaned] = buf.Bytes()
	m.mu.Unlock()
	return sum.object(cleaned), nil
}

func (m *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
