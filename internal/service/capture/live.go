package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Annotator draws detections onto a copy of frame. The caller closes the result.
type Annotator interface {
	Annotate(frame gocv.Mat) (gocv.Mat, error)
}

// LiveThrottler turns a stream into a rate limited, auto reconnecting sequence of JPEG frames.
type LiveThrottler struct {
	capture     *Capture
	annotator   Annotator
	minInterval time.Duration
	backoff     time.Duration
	fallbackFPS float64
	buffer      int
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	encode      func(mat gocv.Mat) ([]byte, error)
}

func NewLiveThrottler(capture *Capture, annotator Annotator, config *config.Config, logger *logger.Logger, metrics *metrics.Metrics) *LiveThrottler {
	fps := config.LiveFPS
	if fps < 1 {
		fps = 1
	}
	return &LiveThrottler{
		capture:     capture,
		annotator:   annotator,
		minInterval: time.Second / time.Duration(fps),
		backoff:     config.ReconnectBackoff,
		fallbackFPS: config.FallbackFPS,
		buffer:      2,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		encode:      encodeJPEG,
	}
}

func encodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Stream starts a producer goroutine and returns its bounded output channel.
// The channel is closed once ctx ends; the decode session is released first.
func (t *LiveThrottler) Stream(ctx context.Context, url string) <-chan []byte {
	out := make(chan []byte, t.buffer)
	id := uuid.NewString()[:8]

	go func() {
		defer close(out)
		done := t.metrics.LiveStarted()
		defer done()
		t.logger.Info("Live session %s started", id)

		var last time.Time
		policy := Policy{
			FallbackFPS: t.fallbackFPS,
			Reconnect:   true,
			Backoff:     t.backoff,
		}
		stats, err := t.capture.Run(ctx, url, policy, func(f Frame) error {
			now := t.now()
			if !last.IsZero() && now.Sub(last) < t.minInterval {
				t.metrics.AddThrottled()
				return nil
			}

			data, err := t.render(f.Mat)
			if err != nil {
				t.metrics.AddEncodeError()
				t.logger.Debug("Live session %s skipped frame %d: %v", id, f.Index, err)
				return nil
			}

			select {
			case out <- data:
				last = now
				t.metrics.AddLiveSent()
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.logger.Error("Live session %s ended: %v", id, err)
		}
		t.logger.Info("Live session %s closed after %d frames, %d reconnects", id, stats.Frames, stats.Reconnects)
	}()

	return out
}

// render annotates the frame when an annotator is configured, then encodes it.
func (t *LiveThrottler) render(frame gocv.Mat) ([]byte, error) {
	if t.annotator == nil {
		return t.encode(frame)
	}
	annotated, err := t.annotator.Annotate(frame)
	if err != nil {
		t.logger.Debug("Annotation failed, sending raw frame: %v", err)
		return t.encode(frame)
	}
	defer annotated.Close()
	return t.encode(annotated)
}
