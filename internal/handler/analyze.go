package handler

import (
	"io"
	"net/http"
	"os"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
)

const maxUploadSize = 20 << 20

// ImageAnalyzer annotates and persists a single image.
type ImageAnalyzer interface {
	AnalyzeOne(path string) (model.ImageResult, error)
}

// AnalyzeUploadHandler runs detection on a JPEG/PNG request body and returns the vehicle count.
func AnalyzeUploadHandler(analyzer ImageAnalyzer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "use POST")
			return
		}
		if r.ContentLength == 0 {
			writeError(w, http.StatusBadRequest, "empty body")
			return
		}

		if err := os.MkdirAll(cfg.TempDirectory, 0755); err != nil {
			logger.Error("Error creating temp directory: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		tmp, err := os.CreateTemp(cfg.TempDirectory, "upload_*.jpg")
		if err != nil {
			logger.Error("Error creating upload file: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		defer os.Remove(tmp.Name())

		n, err := io.Copy(tmp, http.MaxBytesReader(w, r.Body, maxUploadSize))
		tmp.Close()
		if err != nil {
			logger.Warning("Error reading upload: %v", err)
			writeError(w, http.StatusBadRequest, "could not read body")
			return
		}
		logger.Info("Received %d byte image for analysis", n)

		result, err := analyzer.AnalyzeOne(tmp.Name())
		if err != nil {
			logger.Error("Single image analysis failed: %v", err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := writeJSON(w, http.StatusOK, result); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
