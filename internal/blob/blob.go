// Package blob stores raw uploaded files on local disk or in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"go.uber.org/zap"
)

// Store saves and retrieves raw uploads. Handles returned by Save are opaque
// strings recorded as the document's file path.
type Store interface {
	Save(ctx context.Context, ownerID, fileName string, r io.Reader) (string, error)
	Read(ctx context.Context, handle string) ([]byte, error)
	Exists(ctx context.Context, handle string) (bool, error)
	// Remove deletes the file behind handle. Removing a missing file is not an error.
	Remove(ctx context.Context, handle string) error
}

// New returns the store selected by cfg.Blob.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Blob {
	case "disk", "":
		s, err := NewDiskStore(cfg.UploadsDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		s, err := NewMinioStore(ctx, &cfg.Minio, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob store: %s (supported: disk, minio)", cfg.Blob)
	}
}

// objectKey builds "<owner>/<unixMillis>_<name>" for an upload.
func objectKey(ownerID, fileName string, now time.Time) (string, error) {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	owner := strings.TrimSpace(ownerID)
	if owner == "" || strings.ContainsAny(owner, `/\`) || owner == ".." || owner == "." {
		return "", fmt.Errorf("invalid owner id %q", ownerID)
	}
	return owner + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + name, nil
}
