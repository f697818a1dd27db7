package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileCache implements Service with one file per key inside a directory.
// Key "admin:config" is stored as "<dir>/admin_config.json". Expiration is
// ignored: state files live until deleted.
type FileCache struct {
	dir  string
	mode os.FileMode
	mu   sync.Mutex
}

// NewFileCache creates the directory if needed.
func NewFileCache(dir string, opts ...FileOption) (*FileCache, error) {
	cfg := &FileConfig{Dir: dir, FileMode: 0o644}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	return &FileCache{dir: cfg.Dir, mode: os.FileMode(cfg.FileMode)}, nil
}

// Path returns the file used for key.
func (fc *FileCache) Path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(fc.dir, name+".json")
}

func (fc *FileCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	path := fc.Path(key)
	tmp, err := os.CreateTemp(fc.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, fc.mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (fc *FileCache) Get(_ context.Context, key string, dest interface{}) error {
	fc.mu.Lock()
	data, err := os.ReadFile(fc.Path(key))
	fc.mu.Unlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCacheMiss
		}
		return err
	}
	return decode(data, dest)
}

func (fc *FileCache) Delete(_ context.Context, keys ...string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, key := range keys {
		if err := os.Remove(fc.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (fc *FileCache) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		_, err := os.Stat(fc.Path(key))
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	return false, nil
}

func (fc *FileCache) Close() error {
	return nil
}
