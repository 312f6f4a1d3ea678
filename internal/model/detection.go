package model

// Detection is one detector output for a single frame.
// BBox is (x1, y1, x2, y2) in source image pixels.
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// FrameDetections pairs a sampled frame with what the detector found in it.
type FrameDetections struct {
	Path       string
	Detections []Detection
}
