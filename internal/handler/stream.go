package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/locator"

	"github.com/gorilla/websocket"
)

// StreamResolver turns a camera id into a playable stream URL.
type StreamResolver interface {
	Resolve(ctx context.Context, cameraID int) (string, error)
}

// LiveStreamer yields encoded JPEG frames until ctx ends.
type LiveStreamer interface {
	Stream(ctx context.Context, url string) <-chan []byte
}

// locatorStatus maps resolver failures onto HTTP status codes.
func locatorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, locator.ErrAuth):
		return http.StatusServiceUnavailable, "cannot reach the camera provider's authentication server"
	case errors.Is(err, locator.ErrNotFound):
		return http.StatusNotFound, "stream not found for this camera"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("server error: %v", err)
	}
}

func cameraFromQuery(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("cctv_id")
	if raw == "" {
		if def > 0 {
			return def, nil
		}
		return 0, errors.New("cctv_id is required")
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid cctv_id %q", raw)
	}
	return id, nil
}

// HLSURLHandler resolves ?cctv_id= to its HLS URL.
func HLSURLHandler(resolver StreamResolver, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID, err := cameraFromQuery(r, 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		logger.Info("HLS URL requested for camera %d", cameraID)
		url, err := resolver.Resolve(r.Context(), cameraID)
		if err != nil {
			status, detail := locatorStatus(err)
			logger.Error("Resolving camera %d failed: %v", cameraID, err)
			writeError(w, status, detail)
			return
		}

		if err := writeJSON(w, http.StatusOK, dto.HLSURLResponse{Success: true, HLSURL: url, CCTVID: cameraID}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// VideoFeedHandler streams annotated frames as multipart/x-mixed-replace until the client leaves.
func VideoFeedHandler(resolver StreamResolver, streamer LiveStreamer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID, err := cameraFromQuery(r, cfg.CCTVID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		url, err := resolver.Resolve(r.Context(), cameraID)
		if err != nil {
			status, detail := locatorStatus(err)
			logger.Error("Live feed for camera %d unavailable: %v", cameraID, err)
			writeError(w, status, detail)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		frames := streamer.Stream(ctx, url)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for data := range frames {
			if err := writeMJPEGPart(w, data); err != nil {
				logger.Debug("Live viewer for camera %d disconnected: %v", cameraID, err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeMJPEGPart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// VideoFeedWebsocketHandler sends the same live frames as binary websocket messages.
func VideoFeedWebsocketHandler(resolver StreamResolver, streamer LiveStreamer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID, err := cameraFromQuery(r, cfg.CCTVID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		url, err := resolver.Resolve(r.Context(), cameraID)
		if err != nil {
			status, detail := locatorStatus(err)
			logger.Error("Live feed for camera %d unavailable: %v", cameraID, err)
			writeError(w, status, detail)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The read side only exists to notice the viewer going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := connection.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for data := range streamer.Stream(ctx, url) {
			connection.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := connection.WriteMessage(websocket.BinaryMessage, data); err != nil {
				logger.Debug("Live websocket viewer for camera %d disconnected: %v", cameraID, err)
				return
			}
		}
	}
}
