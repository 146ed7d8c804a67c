package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore keeps uploads under a root directory, one subdirectory per owner.
type DiskStore struct {
	root string
	now  func() time.Time
}

// NewDiskStore creates root if needed and returns a store rooted there.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("uploads directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &DiskStore{root: abs, now: time.Now}, nil
}

// Root returns the absolute uploads directory.
func (s *DiskStore) Root() string { return s.root }

// Save writes r to <root>/<owner>/<unixMillis>_<name> and returns the absolute path.
func (s *DiskStore) Save(ctx context.Context, ownerID, fileName string, r io.Reader) (string, error) {
	key, err := objectKey(ownerID, fileName, s.now())
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Read returns the content of the file at handle.
func (s *DiskStore) Read(ctx context.Context, handle string) ([]byte, error) {
	if err := s.check(handle); err != nil {
		return nil, err
	}
	return os.ReadFile(handle)
}

// Exists reports whether the file at handle exists.
func (s *DiskStore) Exists(ctx context.Context, handle string) (bool, error) {
	if err := s.check(handle); err != nil {
		return false, err
	}
	_, err := os.Stat(handle)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Remove deletes the file at handle.
func (s *DiskStore) Remove(ctx context.Context, handle string) error {
	if err := s.check(handle); err != nil {
		return err
	}
	err := os.Remove(handle)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// check rejects handles outside the uploads root.
func (s *DiskStore) check(handle string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(handle))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %q is outside the uploads directory", handle)
	}
	return nil
}
