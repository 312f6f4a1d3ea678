package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/notify"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/storage"

	"github.com/google/uuid"
)

var (
	// ErrNoFrames means the stream could not be resolved or yielded nothing. The cycle is skipped without an alert.
	ErrNoFrames = errors.New("no frames captured")
	ErrPanic    = errors.New("cycle panicked")
)

type Resolver interface {
	Resolve(ctx context.Context, cameraID int) (string, error)
}

type Sampler interface {
	Sample(ctx context.Context, url, targetDir string) []string
}

type Analyzer interface {
	Analyze(paths []string) (model.CycleResult, error)
}

// Publisher receives every successful CycleResult.
type Publisher interface {
	Publish(result model.CycleResult) error
}

// Scheduler runs one sample + aggregate cycle per interval.
type Scheduler struct {
	resolver   Resolver
	sampler    Sampler
	analyzer   Analyzer
	notifier   notify.Notifier
	publishers []Publisher
	logger     *logger.Logger
	metrics    *metrics.Metrics

	camera   int
	interval time.Duration
	tempDir  string
	now      func() time.Time

	cycleMu sync.Mutex // one cycle at a time

	mu         sync.Mutex
	state      State
	iteration  int
	lastResult *model.CycleResult
	lastErr    error
	ctx        context.Context
	cancel     context.CancelFunc
	timer      *time.Timer
	started    bool
	stopped    bool
	wg         sync.WaitGroup
}

func New(resolver Resolver, sampler Sampler, analyzer Analyzer, notifier notify.Notifier,
	config *config.Config, logger *logger.Logger, metrics *metrics.Metrics, publishers ...Publisher) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Scheduler{
		resolver:   resolver,
		sampler:    sampler,
		analyzer:   analyzer,
		notifier:   notifier,
		publishers: publishers,
		logger:     logger,
		metrics:    metrics,
		camera:     config.CCTVID,
		interval:   config.Interval(),
		tempDir:    config.TempDirectory,
		now:        time.Now,
		state:      StateIdle,
	}
}

// Start runs the first cycle immediately and re-arms a one-shot timer after each cycle.
// It returns at once; the cycles run in the background until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("Cycle scheduler started: camera %d every %s", s.camera, s.interval)
	s.trigger()
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = StateIdle
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.RunCycle(ctx)
		s.scheduleNext()
	}()
}

func (s *Scheduler) scheduleNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ctx.Err() != nil {
		s.state = StateIdle
		return
	}
	s.state = StateScheduled
	s.timer = time.AfterFunc(s.interval, s.trigger)
	s.logger.Info("Next cycle in %s", s.interval)
}

// Stop cancels the pending timer and any in-flight cycle, then waits for that cycle's cleanup.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	s.logger.Info("Cycle scheduler stopped")
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Iteration: s.iteration}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// LastResult returns the most recent successful cycle, or nil.
func (s *Scheduler) LastResult() *model.CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return nil
	}
	r := *s.lastResult
	return &r
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// RunCycle performs one cycle synchronously. The working directory is removed on every
// exit path, panics included. A failed cycle sends one alert; ErrNoFrames sends none.
func (s *Scheduler) RunCycle(ctx context.Context) (result model.CycleResult, err error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now()
	cycleID := uuid.NewString()

	s.mu.Lock()
	s.iteration++
	iteration := s.iteration
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("--- Iteration %d (cycle %s) ---", iteration, cycleID)
	s.metrics.CycleStarted()

	workDir := storage.NewWorkDir(s.tempDir, start)
	defer s.cleanup(workDir)

	defer func() {
		if r := recover(); r != nil {
			result = model.CycleResult{}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			s.fail(ctx, err)
			s.metrics.CycleFinished("failed", s.now().Sub(start))
		}
	}()

	result, err = s.execute(ctx, workDir)
	elapsed := s.now().Sub(start)

	switch {
	case errors.Is(err, ErrNoFrames):
		s.logger.Error("Frame capture failed, skipping cycle: %v", err)
		s.record(nil, err)
		s.metrics.CycleFinished("skipped", elapsed)
		return result, err
	case err != nil:
		s.fail(ctx, err)
		s.metrics.CycleFinished("failed", elapsed)
		return result, err
	}

	result.CycleID = cycleID
	s.setState(StateSuccess)
	s.record(&result, nil)
	s.metrics.CycleFinished("success", elapsed)
	s.metrics.SetLastAverage(result.AvgVehicleCount)
	s.logger.Info("Analysis complete: average %.1f vehicles (per frame %v) in %s",
		result.AvgVehicleCount, result.FrameCounts, elapsed.Round(time.Millisecond))

	for _, p := range s.publishers {
		if perr := p.Publish(result); perr != nil {
			s.logger.Warning("Publishing cycle %s failed: %v", cycleID, perr)
		}
	}
	return result, nil
}

func (s *Scheduler) execute(ctx context.Context, workDir string) (model.CycleResult, error) {
	url, err := s.resolver.Resolve(ctx, s.camera)
	if err != nil {
		return model.CycleResult{}, fmt.Errorf("%w: resolve camera %d: %v", ErrNoFrames, s.camera, err)
	}

	s.logger.Info("Capturing frames from HLS stream...")
	paths := s.sampler.Sample(ctx, url, workDir)
	if len(paths) == 0 {
		return model.CycleResult{}, ErrNoFrames
	}
	s.logger.Info("Captured %d frames", len(paths))

	result, err := s.analyzer.Analyze(paths)
	if err != nil {
		return model.CycleResult{}, fmt.Errorf("analyze: %w", err)
	}
	if len(result.FrameCounts) != len(paths) {
		return model.CycleResult{}, fmt.Errorf("analyze: %d counts for %d frames", len(result.FrameCounts), len(paths))
	}
	return result, nil
}

func (s *Scheduler) fail(ctx context.Context, err error) {
	s.setState(StateFailed)
	s.record(nil, err)

	msg := fmt.Sprintf("Error during analysis: %v", err)
	s.logger.Error("%s", msg)

	// ctx may already be canceled on shutdown; the alert still gets a short window.
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if nerr := s.notifier.Notify(alertCtx, "❌ "+msg); nerr != nil {
		s.logger.Error("Sending alert failed: %v", nerr)
	}
}

func (s *Scheduler) record(result *model.CycleResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result != nil {
		r := *result
		s.lastResult = &r
	}
	s.lastErr = err
}

func (s *Scheduler) cleanup(workDir string) {
	s.setState(StateCleanup)
	if err := storage.RemoveWorkDir(workDir); err != nil {
		s.logger.Warning("Failed to remove work directory %s: %v", workDir, err)
		return
	}
	s.logger.Debug("Removed work directory: %s", workDir)
}
