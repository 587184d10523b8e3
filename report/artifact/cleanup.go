package artifact

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/logger"
)

// MaxReportedPaths caps CleanupResult.DeletedPaths
const MaxReportedPaths = 100

// CleanupOptions configures a cleanup pass
type CleanupOptions struct {
	Roots  []string
	MaxAge time.Duration
	DryRun bool
	Now    func() time.Time // nil = time.Now
	Log    *zap.SugaredLogger
}

// CleanupResult summarizes a cleanup pass
type CleanupResult struct {
	MaxAgeHours  float64  `json:"max_age_hours"`
	DryRun       bool     `json:"dry_run"`
	Scanned      int      `json:"scanned"`
	Deleted      int      `json:"deleted"`
	FreedBytes   int64    `json:"freed_bytes"`
	DeletedPaths []string `json:"deleted_paths"`
}

// Cleanup removes direct children of each root whose modification time is
// older than MaxAge. Missing roots are skipped and unreadable entries are
// ignored. With DryRun nothing is removed but the counts are the same.
func Cleanup(opts CleanupOptions) *CleanupResult {
	log := logger.OrNop(opts.Log)
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cutoff := now().Add(-opts.MaxAge)

	res := &CleanupResult{
		MaxAgeHours:  opts.MaxAge.Hours(),
		DryRun:       opts.DryRun,
		DeletedPaths: []string{},
	}
	for _, root := range opts.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warnw("Cannot scan cleanup root", logger.FieldPath, root, logger.FieldError, err)
			}
			continue
		}
		for _, entry := range entries {
			res.Scanned++
			path := filepath.Join(root, entry.Name())
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			size := pathSize(path, info)
			if !opts.DryRun {
				if err := os.RemoveAll(path); err != nil {
					log.Warnw("Failed to remove artifact", logger.FieldPath, path, logger.FieldError, err)
					continue
				}
			}
			res.Deleted++
			res.FreedBytes += size
			if len(res.DeletedPaths) < MaxReportedPaths {
				res.DeletedPaths = append(res.DeletedPaths, path)
			}
		}
	}

	log.Infow("Artifact cleanup finished",
		"dry_run", opts.DryRun,
		"scanned", res.Scanned,
		"deleted", res.Deleted,
		logger.FieldSize, res.FreedBytes,
	)
	return res
}

// pathSize returns the size of a file or the total size of files under a directory
func pathSize(path string, info fs.FileInfo) int64 {
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}
