package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository"

	"gocv.io/x/gocv"
)

const artifactTimeLayout = "20060102_150405"

var artifactName = regexp.MustCompile(`^analyzed_(\d{8}_\d{6})(?:_(\d+))?\.jpg$`)

// ParseArtifactName extracts the timestamp from analyzed_YYYYmmdd_HHMMSS[_n].jpg names.
func ParseArtifactName(name string) (time.Time, bool) {
	m := artifactName.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(artifactTimeLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ArtifactStore writes annotated results to the output directory and records them in the catalog.
type ArtifactStore struct {
	outputDir string
	repo      repository.ArtifactRepository
	logger    *logger.Logger
	now       func() time.Time
	write     func(path string, mat gocv.Mat) bool
}

// NewArtifactStore creates the store. repo may be nil, in which case nothing is catalogued.
func NewArtifactStore(config *config.Config, repo repository.ArtifactRepository, logger *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		outputDir: config.OutputDirectory,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		write:     gocv.IMWrite,
	}
}

// OutputDir returns the directory artifacts are written to.
func (s *ArtifactStore) OutputDir() string {
	return s.outputDir
}

// Save encodes mat as analyzed_<YYYYmmdd_HHMMSS>.jpg. A second save within the same second
// gets a numeric suffix instead of overwriting.
func (s *ArtifactStore) Save(mat gocv.Mat, camera int) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ts := s.now()
	stamp := ts.Format(artifactTimeLayout)
	filename := fmt.Sprintf("analyzed_%s.jpg", stamp)
	path := filepath.Join(s.outputDir, filename)
	for n := 2; fileExists(path); n++ {
		filename = fmt.Sprintf("analyzed_%s_%d.jpg", stamp, n)
		path = filepath.Join(s.outputDir, filename)
	}

	if !s.write(path, mat) {
		return "", fmt.Errorf("failed to write %s", path)
	}

	if s.repo != nil {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		_, err := s.repo.Insert(&model.Artifact{
			Filename:  filename,
			Camera:    camera,
			Timestamp: ts,
			FilePath:  path,
			FileSize:  size,
		})
		if err != nil {
			s.logger.Error("Error saving artifact %s to database: %v", filename, err)
		}
	}

	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
