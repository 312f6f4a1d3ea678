package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/handler"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository/sqlite"
	"github.com/geongi-im/yolo-traffic-monitor/internal/route"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/ai"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/analyzer"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/capture"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/locator"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/notify"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/publish"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/scheduler"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/storage"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/websocket"
)

// Options select which halves of the process run.
type Options struct {
	Scheduler bool
	HTTP      bool
}

type App struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	db         *sqlite.DB
	artifacts  *sqlite.ArtifactRepository
	detector   *ai.YOLODetector
	aggregator *analyzer.Aggregator
	locator    *locator.Client
	live       *capture.LiveThrottler
	hub        *websocket.HubService
	publisher  publish.Publisher
	retention  *storage.RetentionService
	scheduler  *scheduler.Scheduler
	notifier   notify.Notifier
}

// NewApp builds every service from cfg. The caller owns the returned App and must Close it.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.TempDirectory, cfg.OutputDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Close()
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	m := metrics.New()
	publisher, err := publish.FromConfig(cfg, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	artifacts := sqlite.NewArtifactRepository(db)
	store := storage.NewArtifactStore(cfg, artifacts, log)
	detector := ai.NewYOLODetector(cfg, log, m)
	aggregator := analyzer.NewAggregator(detector, store, cfg.CCTVID, log)
	loc := locator.NewClient(cfg, log)

	grabber := capture.New(capture.VideoOpener{}, log, m)
	sampler := capture.NewBatchSampler(grabber, cfg, log, m)
	live := capture.NewLiveThrottler(grabber, aggregator, cfg, log, m)

	hub := websocket.NewHubService(log)
	notifier := notify.FromConfig(cfg)
	sched := scheduler.New(loc, sampler, aggregator, notifier, cfg, log, m, hub, publisher)

	return &App{
		config:     cfg,
		logger:     log,
		metrics:    m,
		db:         db,
		artifacts:  artifacts,
		detector:   detector,
		aggregator: aggregator,
		locator:    loc,
		live:       live,
		hub:        hub,
		publisher:  publisher,
		retention:  storage.NewRetentionService(cfg, artifacts, log),
		scheduler:  sched,
		notifier:   notifier,
	}, nil
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Alert forwards text to the alert channel, logging rather than returning a failure.
func (a *App) Alert(ctx context.Context, text string) {
	if err := a.notifier.Notify(ctx, text); err != nil {
		a.logger.Error("Sending alert failed: %v", err)
	}
}

// RunOnce executes a single cycle in the foreground.
func (a *App) RunOnce(ctx context.Context) (model.CycleResult, error) {
	return a.scheduler.RunCycle(ctx)
}

// Handler builds the HTTP surface. status is left nil when the scheduler is not running.
func (a *App) Handler(withScheduler bool) http.Handler {
	deps := route.Dependencies{
		Resolver:  a.locator,
		Streamer:  a.live,
		Analyzer:  a.aggregator,
		Artifacts: a.artifacts,
		Hub:       a.hub,
		Metrics:   a.metrics,
	}
	if withScheduler {
		deps.Status = handler.CycleStatus(a.scheduler)
	}
	return route.SetupRoutes(a.config, a.logger, deps)
}

// Run starts the selected services and blocks until ctx ends, then shuts them down.
// ready is called once the services are up.
func (a *App) Run(ctx context.Context, opts Options, ready func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.retention.Run(ctx)
	}()

	a.logger.Info("============================================================")
	a.logger.Info("YOLO traffic monitor: camera %d, model %s, device %s", a.config.CCTVID, a.config.ModelPath, a.config.Device)
	a.logger.Info("============================================================")

	if opts.Scheduler {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	var server *http.Server
	if opts.HTTP {
		// request contexts derive from ctx so live feeds end before Shutdown waits on them
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.config.Port),
			Handler:           a.Handler(opts.Scheduler),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		go func() {
			a.logger.Info("HTTP server listening on http://localhost:%d", a.config.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if ready != nil {
		ready()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.logger.Error("HTTP server failed: %v", runErr)
	}

	cancel()
	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("HTTP shutdown: %v", err)
		}
		stop()
	}
	if opts.Scheduler {
		a.scheduler.Stop()
	}
	wg.Wait()
	a.logger.Info("Application stopped")
	return runErr
}

// Close releases the detector, publisher, database and log files.
func (a *App) Close() {
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Closing detector: %v", err)
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Warning("Closing publisher: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Closing database: %v", err)
	}
	a.logger.Close()
}
