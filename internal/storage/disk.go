package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// UsageReport is the on-disk footprint of the local data paths, keyed by label.
type UsageReport struct {
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"totalBytes"`
}

// DiskUsage sums the size of each labeled path. Directories are walked
// recursively. A missing path counts as zero.
func DiskUsage(paths map[string]string) (UsageReport, error) {
	report := UsageReport{Paths: make(map[string]int64, len(paths))}
	labels := make([]string, 0, len(paths))
	for label := range paths {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		n, err := pathSize(paths[label])
		if err != nil {
			return UsageReport{}, err
		}
		report.Paths[label] = n
		report.Total += n
	}
	return report, nil
}

// SQLiteFiles returns the database file and its WAL companions.
func SQLiteFiles(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

func pathSize(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// DatabaseUsage returns the size of the SQLite database including its WAL files.
func DatabaseUsage(dbPath string) (int64, error) {
	return pathSize(SQLiteFiles(dbPath)...)
}
