package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository"
)

type ReindexStats struct {
	Indexed int
	Skipped []string
}

// Reindex inserts every analyzed_*.jpg under outputDir into the catalog, attributed to camera.
// Files with other names are reported in Skipped. Existing records are updated in place.
func Reindex(outputDir string, camera int, repo repository.ArtifactRepository) (ReindexStats, error) {
	var stats ReindexStats

	files, err := os.ReadDir(outputDir)
	if err != nil {
		return stats, fmt.Errorf("read output directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		ts, ok := ParseArtifactName(file.Name())
		if !ok {
			stats.Skipped = append(stats.Skipped, file.Name())
			continue
		}

		info, err := file.Info()
		if err != nil {
			stats.Skipped = append(stats.Skipped, file.Name())
			continue
		}

		_, err = repo.Insert(&model.Artifact{
			Filename:  file.Name(),
			Camera:    camera,
			Timestamp: ts,
			FilePath:  filepath.Join(outputDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			return stats, fmt.Errorf("insert %s: %w", file.Name(), err)
		}
		stats.Indexed++
	}

	return stats, nil
}
