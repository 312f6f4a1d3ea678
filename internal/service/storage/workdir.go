package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// NewWorkDir returns a unique per-cycle directory path under root. It is not created here;
// the batch sampler creates it when it has frames to write.
func NewWorkDir(root string, now time.Time) string {
	return filepath.Join(root, fmt.Sprintf("batch_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8]))
}

// RemoveWorkDir deletes dir and everything in it. A missing directory is not an error,
// so calling it twice is safe.
func RemoveWorkDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove work dir %s: %w", dir, err)
	}
	return nil
}
