package dto

import "github.com/geongi-im/yolo-traffic-monitor/internal/model"

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	State       string             `json:"state"`
	Iteration   int                `json:"iteration"`
	CameraID    int                `json:"camera_id"`
	LiveStreams int64              `json:"live_streams"`
	LastResult  *model.CycleResult `json:"last_result,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
}
