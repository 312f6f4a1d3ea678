package repository

import (
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
)

// ArtifactRepository defines the catalog of persisted analysis images.
type ArtifactRepository interface {
	// Create operations
	Insert(a *model.Artifact) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Artifact, error)
	GetLatest(camera int) (*model.Artifact, error)
	GetAll(filter *dto.ArtifactFilter) ([]model.Artifact, error)
	GetTotalCount(filter *dto.ArtifactFilter) (int, error)
	GetTotalSize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}
