package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/handler"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/geongi-im/yolo-traffic-monitor/internal/middleware"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository"
)

// Dependencies are the services the HTTP surface reads from. Status may be nil.
type Dependencies struct {
	Resolver  handler.StreamResolver
	Streamer  handler.LiveStreamer
	Analyzer  handler.ImageAnalyzer
	Artifacts repository.ArtifactRepository
	Hub       handler.ResultHub
	Status    handler.CycleStatus
	Metrics   *metrics.Metrics
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the API, log and static endpoints and wraps the mux with CORS.
// Endpoints that call the camera provider are rate limited per client IP.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	limit := func(h http.Handler) http.Handler {
		return middleware.RateLimitByIP(cfg.RateLimitPerIP, h)
	}

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Stream endpoints
	mux.Handle("/api/hls-url", limit(handler.HLSURLHandler(deps.Resolver, logger)))
	mux.Handle("/api/video_feed", limit(handler.VideoFeedHandler(deps.Resolver, deps.Streamer, cfg, logger)))
	mux.Handle("/api/ws/video_feed", limit(handler.VideoFeedWebsocketHandler(deps.Resolver, deps.Streamer, cfg, logger)))

	// Results
	mux.HandleFunc("/api/results", handler.GetResultsHandler(deps.Artifacts, cfg, logger))
	mux.HandleFunc("/api/results/view", handler.ViewResultHandler(cfg))
	mux.HandleFunc("/api/results/latest", handler.LatestResultHandler(deps.Artifacts, logger))
	mux.HandleFunc("/api/results/delete", handler.DeleteResultHandler(deps.Artifacts, cfg, logger))
	mux.HandleFunc("/api/ws/results", handler.ResultsWebsocketHandler(deps.Hub, logger))
	mux.HandleFunc("/api/analyze", handler.AnalyzeUploadHandler(deps.Analyzer, cfg, logger))

	mux.HandleFunc("/api/status", handler.StatusHandler(deps.Status, cfg.CCTVID, deps.Metrics, logger))
	mux.Handle("/metrics", deps.Metrics.Handler())

	// Log endpoints
	for _, name := range handler.LogFiles {
		base := "/logs/" + name[:len(name)-len(filepath.Ext(name))]
		mux.HandleFunc(base, handler.ShowLogsHandler(cfg.LogDirectory, name))
		mux.HandleFunc(base+"/clear", handler.ClearLogsHandler(logger, name))
	}

	// Automatic HTML handler mapping for example: /results -> <static>/results.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.CORSMiddleware(mux)
}
