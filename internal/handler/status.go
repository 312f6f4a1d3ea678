package handler

import (
	"net/http"

	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/scheduler"
)

// CycleStatus is the read side of the cycle scheduler.
type CycleStatus interface {
	Status() scheduler.Status
	LastResult() *model.CycleResult
}

// StatusHandler reports scheduler state and live session count. status may be nil
// when the process runs without a scheduler.
func StatusHandler(status CycleStatus, camera int, m *metrics.Metrics, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := dto.StatusResponse{
			State:       "DISABLED",
			CameraID:    camera,
			LiveStreams: m.ActiveLive(),
		}
		if status != nil {
			st := status.Status()
			resp.State = string(st.State)
			resp.Iteration = st.Iteration
			resp.LastError = st.LastError
			resp.LastResult = status.LastResult()
		}
		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
