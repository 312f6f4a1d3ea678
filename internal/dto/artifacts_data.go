// ArtifactsData is a paginated response payload for the results gallery.
package dto

type ArtifactsData struct {
	Artifacts   []ArtifactInfo `json:"artifacts"`
	OutputDir   string         `json:"outputDir"`
	Size        int64          `json:"size"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// ArtifactFilter narrows catalog queries.
type ArtifactFilter struct {
	Camera int // 0 matches every camera
	Limit  int
	Offset int
}
