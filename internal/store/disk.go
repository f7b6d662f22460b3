package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/ayush/livefeed/backend/internal/assets"
)

// DiskStore keeps post images as files in one directory.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes r to a new file. The name must not exist yet.
func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := assets.Key(name)
	if err != nil {
		return "", fmt.Errorf("disk save %q: %w", name, err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("disk create: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("disk write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("disk close: %w", err)
	}
	return assets.Prefix + key, nil
}

// Open returns the file at path with a content type guessed from its
// extension.
func (s *DiskStore) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	key, err := assets.Key(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", assets.ErrNotExist
	}
	if err != nil {
		return nil, "", fmt.Errorf("disk open: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, ct, nil
}

func (s *DiskStore) Stat(ctx context.Context, path string) error {
	key, err := assets.Key(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return assets.ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("disk stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return assets.ErrNotExist
	}
	return nil
}

func (s *DiskStore) Remove(ctx context.Context, path string) error {
	key, err := assets.Key(path)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return assets.ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("disk remove: %w", err)
	}
	return nil
}
