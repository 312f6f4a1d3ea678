package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/ai"

	"gocv.io/x/gocv"
)

var ErrEmptyBatch = errors.New("no frames to analyze")

// ArtifactSaver persists an annotated image and returns its path.
type ArtifactSaver interface {
	Save(mat gocv.Mat, camera int) (string, error)
}

// Aggregator turns per-frame detections into one CycleResult and a representative artifact.
type Aggregator struct {
	detector ai.Detector
	store    ArtifactSaver
	camera   int
	logger   *logger.Logger
	now      func() time.Time
}

func NewAggregator(detector ai.Detector, store ArtifactSaver, camera int, logger *logger.Logger) *Aggregator {
	return &Aggregator{
		detector: detector,
		store:    store,
		camera:   camera,
		logger:   logger,
		now:      time.Now,
	}
}

// Average is the mean of counts, 0 for an empty slice.
func Average(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return float64(total) / float64(len(counts))
}

// RepresentativeIndex is the middle index n/2 of a batch of n, or -1 when the batch is empty.
func RepresentativeIndex(n int) int {
	if n <= 0 {
		return -1
	}
	return n / 2
}

// Aggregate counts detections per frame. The result has no artifact.
func Aggregate(frames []model.FrameDetections) model.CycleResult {
	counts := make([]int, len(frames))
	for i, f := range frames {
		counts[i] = len(f.Detections)
	}
	return model.CycleResult{
		AvgVehicleCount: Average(counts),
		FrameCounts:     counts,
	}
}

// Analyze detects vehicles on every sampled frame, then annotates and persists the middle one.
// Frames the detector cannot read count as zero vehicles. Any other detector error, or a batch
// with no readable frame, fails the analysis.
func (a *Aggregator) Analyze(paths []string) (model.CycleResult, error) {
	if len(paths) == 0 {
		return model.CycleResult{}, ErrEmptyBatch
	}

	a.logger.Info("Running detection on %d frames", len(paths))
	frames := make([]model.FrameDetections, len(paths))
	unreadable := 0
	for i, path := range paths {
		annotated, detections, err := a.detector.DetectFile(path)
		annotated.Close()
		switch {
		case errors.Is(err, ai.ErrUnreadable):
			a.logger.Error("Detection failed on %s: %v", path, err)
			unreadable++
			detections = nil
		case err != nil:
			return model.CycleResult{}, fmt.Errorf("detect %s: %w", path, err)
		}
		frames[i] = model.FrameDetections{Path: path, Detections: detections}
		a.logger.Debug("Frame %d/%d: %d vehicles", i+1, len(paths), len(detections))
	}
	if unreadable == len(paths) {
		return model.CycleResult{}, fmt.Errorf("%w: all %d frames", ai.ErrUnreadable, len(paths))
	}

	result := Aggregate(frames)
	result.CameraID = a.camera
	result.Timestamp = a.now()
	a.logger.Info("Vehicles per frame: %v, average %.1f", result.FrameCounts, result.AvgVehicleCount)

	idx := RepresentativeIndex(len(paths))
	rep, detections, err := a.detector.DetectFile(paths[idx])
	defer rep.Close()
	switch {
	case errors.Is(err, ai.ErrUnreadable):
		a.logger.Error("Detection failed on representative frame %s: %v", paths[idx], err)
		return result, nil
	case err != nil:
		return model.CycleResult{}, fmt.Errorf("detect representative frame %s: %w", paths[idx], err)
	}

	avg := result.AvgVehicleCount
	if err := DrawStats(&rep, detections, &avg); err != nil {
		return result, fmt.Errorf("draw statistics: %w", err)
	}

	path, err := a.store.Save(rep, a.camera)
	if err != nil {
		return result, fmt.Errorf("persist artifact: %w", err)
	}
	a.logger.Info("Saved analysis result: %s", path)

	result.ArtifactPath = path
	return result, nil
}

// AnalyzeOne annotates a single image with a "Vehicles: N" block and persists it.
func (a *Aggregator) AnalyzeOne(path string) (model.ImageResult, error) {
	annotated, detections, err := a.detector.DetectFile(path)
	defer annotated.Close()
	if err != nil {
		return model.ImageResult{Detections: []model.Detection{}}, err
	}

	if err := DrawStats(&annotated, detections, nil); err != nil {
		return model.ImageResult{}, fmt.Errorf("draw statistics: %w", err)
	}

	saved, err := a.store.Save(annotated, a.camera)
	if err != nil {
		return model.ImageResult{}, fmt.Errorf("persist artifact: %w", err)
	}
	a.logger.Info("Saved analysis result: %s", saved)

	return model.ImageResult{
		VehicleCount: len(detections),
		Detections:   detections,
		ArtifactPath: saved,
	}, nil
}

// Annotate detects vehicles on frame and returns a copy with boxes and the statistics block.
// It is used by the live view.
func (a *Aggregator) Annotate(frame gocv.Mat) (gocv.Mat, error) {
	annotated, detections, err := a.detector.Detect(frame)
	if err != nil {
		annotated.Close()
		return gocv.NewMat(), err
	}
	if err := DrawStats(&annotated, detections, nil); err != nil {
		annotated.Close()
		return gocv.NewMat(), err
	}
	return annotated, nil
}
