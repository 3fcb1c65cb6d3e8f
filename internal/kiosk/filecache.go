package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dormhub/api/internal/reconcile"
)

const cacheFileName = "state.json"

// FileCache is durable key-value storage in a single JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn state.
type FileCache struct {
	path string

	mu sync.Mutex
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{path: filepath.Join(dir, cacheFileName)}, nil
}

func (f *FileCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return "", err
	}
	value, ok := state[key]
	if !ok {
		return "", reconcile.ErrCacheMiss
	}
	return value, nil
}

func (f *FileCache) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}
	state[key] = value
	return f.store(state)
}

func (f *FileCache) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (f *FileCache) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	state := map[string]string{}
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt cache is a miss, not a failure.
		return map[string]string{}, nil
	}
	return state, nil
}

func (f *FileCache) store(state map[string]string) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit cache: %w", err)
	}
	return nil
}
