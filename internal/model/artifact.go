package model

import "time"

// Artifact represents a persisted annotated image in the catalog.
type Artifact struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    int       `json:"camera"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}
