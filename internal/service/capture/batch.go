package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"

	"gocv.io/x/gocv"
)

// SkipFor returns the frame stride covering strideSeconds of stream time. It is never below 1.
func SkipFor(rate, strideSeconds float64) int {
	skip := math.Round(rate * strideSeconds)
	if !(skip >= 1) || math.IsInf(skip, 1) {
		return 1
	}
	return int(skip)
}

// BatchSampler reads a stream once, to its end or the frame ceiling, and writes one
// frame per stride to disk.
type BatchSampler struct {
	capture       *Capture
	strideSeconds float64
	maxSeconds    float64
	fallbackFPS   float64
	logger        *logger.Logger
	metrics       *metrics.Metrics
	writeFrame    func(path string, mat gocv.Mat) bool
}

func NewBatchSampler(capture *Capture, config *config.Config, logger *logger.Logger, metrics *metrics.Metrics) *BatchSampler {
	return &BatchSampler{
		capture:       capture,
		strideSeconds: config.SampleStrideSeconds,
		maxSeconds:    float64(config.MaxSampleSeconds),
		fallbackFPS:   config.FallbackFPS,
		logger:        logger,
		metrics:       metrics,
		writeFrame:    gocv.IMWrite,
	}
}

// Sample writes frame_<n>.jpg files under targetDir, n being elapsed stride units,
// and returns their paths in order. An empty result means the capture failed.
func (s *BatchSampler) Sample(ctx context.Context, url, targetDir string) []string {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		s.logger.Error("Error creating sample directory %s: %v", targetDir, err)
		return nil
	}

	var paths []string
	skip := 0
	policy := Policy{
		MaxSeconds:  s.maxSeconds,
		FallbackFPS: s.fallbackFPS,
	}

	stats, err := s.capture.Run(ctx, url, policy, func(f Frame) error {
		if skip == 0 {
			skip = SkipFor(f.FPS, s.strideSeconds)
			s.logger.Debug("Sampling every %d frames at %.2f fps", skip, f.FPS)
		}
		if f.Index%skip != 0 {
			return nil
		}
		path := filepath.Join(targetDir, fmt.Sprintf("frame_%d.jpg", f.Index/skip))
		if !s.writeFrame(path, f.Mat) {
			s.logger.Warning("Failed to write frame %s", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warning("Sampling interrupted after %d frames", stats.Frames)
		return nil
	case errors.Is(err, ErrOpenFailed):
		s.logger.Error("Could not open stream: %v", err)
		return nil
	case err != nil:
		s.logger.Error("Frame capture failed: %v", err)
		return nil
	}

	s.metrics.AddSampled(len(paths))
	if stats.FPS > 0 {
		s.logger.Info("Stream length %.1fs, captured %d frames", float64(stats.Frames)/stats.FPS, len(paths))
	}
	return paths
}
