package localstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/noteloom/internal/errs"
)

// Legacy is the flat string storage used by earlier releases, read once for migration.
type Legacy interface {
	// Get returns the raw string stored at key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// LegacyFile is a Legacy source kept as one JSON object of strings on disk.
// A missing file behaves as an empty source.
type LegacyFile struct {
	path string
	mu   sync.Mutex
}

var _ Legacy = (*LegacyFile)(nil)

// NewLegacyFile returns a legacy source backed by path.
func NewLegacyFile(path string) *LegacyFile { return &LegacyFile{path: path} }

// Get implements Legacy.
func (f *LegacyFile) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

// Set stores a raw string at key.
func (f *LegacyFile) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	m[key] = value
	return f.write(m)
}

// Remove implements Legacy.
func (f *LegacyFile) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing legacy file: %w", err)
		}
		return nil
	}
	return f.write(m)
}

func (f *LegacyFile) read() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy file: %w", err)
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parsing legacy file: %w", err)
	}
	return m, nil
}

// write replaces the file atomically: temp file, fsync, rename.
func (f *LegacyFile) write(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating legacy dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".legacy-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing legacy file: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// MemoryLegacy is an in-memory Legacy source.
type MemoryLegacy struct {
	mu   sync.Mutex
	data map[string]string
}

var _ Legacy = (*MemoryLegacy)(nil)

// NewMemoryLegacy returns a legacy source seeded with data.
func NewMemoryLegacy(data map[string]string) *MemoryLegacy {
	m := &MemoryLegacy{data: map[string]string{}}
	for k, v := range data {
		m.data[k] = v
	}
	return m
}

// Get implements Legacy.
func (m *MemoryLegacy) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

// Remove implements Legacy.
func (m *MemoryLegacy) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Has reports whether key is still present.
func (m *MemoryLegacy) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
