package model

import "time"

// CycleResult is the outcome of one batch cycle. It is not modified after construction.
type CycleResult struct {
	CycleID         string    `json:"cycle_id"`
	CameraID        int       `json:"camera_id"`
	Timestamp       time.Time `json:"timestamp"`
	AvgVehicleCount float64   `json:"avg_vehicle_count"`
	FrameCounts     []int     `json:"frame_counts"`
	ArtifactPath    string    `json:"artifact,omitempty"`
}

// HasArtifact reports whether a representative image was persisted.
func (r CycleResult) HasArtifact() bool {
	return r.ArtifactPath != ""
}

// ImageResult is the outcome of analysing a single image.
type ImageResult struct {
	VehicleCount int         `json:"vehicle_count"`
	Detections   []Detection `json:"detections"`
	ArtifactPath string      `json:"artifact,omitempty"`
}
