package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// File stores each key as one file in a directory.
type File struct {
	dir   string
	quota int64
	mu    sync.Mutex
}

// NewFile creates a File store under dir, creating the directory if needed.
func NewFile(dir string, quota int64) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", dir, err)
	}
	return &File{dir: dir, quota: quota}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", key, err)
	}
	return value, nil
}

// Set implements Store. The value is written to a temporary file first so
// that a failed write never truncates the previous value.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	used, err := f.usage(key)
	if err != nil {
		return err
	}
	if err := checkQuota(f.quota, used, entrySize(key, value)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("os.CreateTemp() > %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("tmp.Write(%s) > %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tmp.Close(%s) > %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("os.Rename(%s) > %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (f *File) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("os.Remove(%s) > %w", key, err)
	}
	return nil
}

// usage sums the entries of every key except the given one.
func (f *File) usage(except string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("os.ReadDir(%s) > %w", f.dir, err)
	}
	var used int64
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		key, err := url.PathUnescape(entry.Name())
		if err != nil || key == except {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, fmt.Errorf("entry.Info(%s) > %w", entry.Name(), err)
		}
		used += int64(len(key)) + info.Size()
	}
	return used, nil
}
