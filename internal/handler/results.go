package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository"
)

// GetResultsHandler returns one page of catalogued artifacts, newest first.
func GetResultsHandler(repo repository.ArtifactRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.ArtifactFilter{
			Camera: atoiDefault(q.Get("camera"), 0),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		artifacts, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying artifacts from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting artifacts: %v", err)
			totalCount = len(artifacts)
		}

		totalSize, err := repo.GetTotalSize()
		if err != nil {
			logger.Error("Error summing artifact sizes: %v", err)
			totalSize = 0
		}

		infos := make([]dto.ArtifactInfo, 0, len(artifacts))
		for _, a := range artifacts {
			infos = append(infos, dto.ArtifactInfo{
				Name:      a.Filename,
				Date:      a.Timestamp,
				TimeOfDay: a.Timestamp,
				Camera:    a.Camera,
				Size:      a.FileSize,
			})
		}

		data := dto.ArtifactsData{
			Artifacts:   infos,
			OutputDir:   cfg.OutputDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		if err := writeJSON(w, http.StatusOK, data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewResultHandler serves a single artifact named by the "name" query parameter.
func ViewResultHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Query().Get("name"))
		if name == "" || name == "." || name == string(filepath.Separator) {
			writeError(w, http.StatusBadRequest, "name parameter is required")
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, filepath.Join(cfg.OutputDirectory, name))
	}
}

// LatestResultHandler serves the newest artifact for ?cctv_id= (any camera when omitted).
func LatestResultHandler(repo repository.ArtifactRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := atoiDefault(r.URL.Query().Get("cctv_id"), 0)
		a, err := repo.GetLatest(camera)
		if err != nil {
			logger.Error("Error querying latest artifact: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if a == nil {
			writeError(w, http.StatusNotFound, "no analysis results yet")
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, a.FilePath)
	}
}

// DeleteResultHandler removes an artifact from disk and the catalog.
func DeleteResultHandler(repo repository.ArtifactRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "use POST or DELETE")
			return
		}
		name := filepath.Base(r.URL.Query().Get("name"))
		if name == "" || name == "." || name == string(filepath.Separator) {
			writeError(w, http.StatusBadRequest, "name parameter is required")
			return
		}

		filePath := filepath.Join(cfg.OutputDirectory, name)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}
		if err := repo.DeleteByFilename(name); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Deleted result: %s", name)
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
	}
}
