package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"

	"gocv.io/x/gocv"
)

// Policy controls when Run stops.
type Policy struct {
	// MaxSeconds caps one session at MaxSeconds worth of frames at the session rate. 0 means unbounded.
	MaxSeconds float64
	// FallbackFPS is used when the stream reports a non-positive rate.
	FallbackFPS float64
	// Reconnect reopens the stream after a failed open or read, without limit, until ctx ends.
	// Without it the first read failure is treated as end of stream.
	Reconnect bool
	Backoff   time.Duration
}

// Frame is passed to a FrameFunc. Mat is reused by the next read; Clone it to keep it.
type Frame struct {
	Mat   gocv.Mat
	Index int
	FPS   float64
}

// FrameFunc receives frames in decode order. Returning ErrStop ends Run cleanly,
// any other error ends it with that error.
type FrameFunc func(f Frame) error

type Stats struct {
	Opens      int
	Reconnects int
	Frames     int
	FPS        float64
}

// Capture runs the open, read until failure, reopen loop shared by batch sampling and live view.
type Capture struct {
	opener  Opener
	logger  *logger.Logger
	metrics *metrics.Metrics
	wait    func(ctx context.Context, d time.Duration) error
}

func New(opener Opener, logger *logger.Logger, metrics *metrics.Metrics) *Capture {
	return &Capture{
		opener:  opener,
		logger:  logger,
		metrics: metrics,
		wait:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EffectiveFPS substitutes fallback for a non-positive or NaN reported rate.
func EffectiveFPS(reported, fallback float64) float64 {
	if reported > 0 && !math.IsInf(reported, 0) {
		return reported
	}
	return fallback
}

func frameLimit(fps, seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	n := int(math.Round(fps * seconds))
	if n < 1 {
		n = 1
	}
	return n
}

// Run decodes url and feeds frames to fn until the policy, fn or ctx ends it.
// The session is closed on every return path.
func (c *Capture) Run(ctx context.Context, url string, p Policy, fn FrameFunc) (Stats, error) {
	var stats Stats
	mat := gocv.NewMat()
	defer mat.Close()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if stats.Opens > 0 {
			stats.Reconnects++
			c.metrics.AddReconnect()
		}
		stats.Opens++

		sess, err := c.opener.Open(url)
		if err != nil {
			if !errors.Is(err, ErrOpenFailed) {
				err = fmt.Errorf("%w: %v", ErrOpenFailed, err)
			}
			if !p.Reconnect {
				return stats, err
			}
			c.logger.Warning("Open failed, retrying in %s: %v", p.Backoff, err)
			if werr := c.wait(ctx, p.Backoff); werr != nil {
				return stats, werr
			}
			continue
		}

		done, err := c.drain(ctx, sess, &mat, p, fn, &stats)
		sess.Close()
		if done {
			return stats, err
		}

		c.logger.Warning("Read failed after %d frames, reconnecting in %s", stats.Frames, p.Backoff)
		if werr := c.wait(ctx, p.Backoff); werr != nil {
			return stats, werr
		}
	}
}

// drain reads one session. It returns done=false only when a reconnect should follow.
func (c *Capture) drain(ctx context.Context, sess Session, mat *gocv.Mat, p Policy, fn FrameFunc, stats *Stats) (bool, error) {
	reported := sess.FPS()
	fps := EffectiveFPS(reported, p.FallbackFPS)
	if fps != reported {
		c.logger.Warning("Stream reported fps %.2f, assuming %.2f", reported, fps)
	}
	stats.FPS = fps
	limit := frameLimit(fps, p.MaxSeconds)

	read := 0
	for {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		if limit > 0 && read >= limit {
			c.logger.Warning("Frame ceiling of %.0fs reached, stopping capture", p.MaxSeconds)
			return true, nil
		}
		if !sess.Read(mat) || mat.Empty() {
			if p.Reconnect {
				return false, nil
			}
			if read == 0 {
				return true, ErrReadFailed
			}
			return true, nil
		}

		stats.Frames++
		err := fn(Frame{Mat: *mat, Index: read, FPS: fps})
		read++
		if errors.Is(err, ErrStop) {
			return true, nil
		}
		if err != nil {
			return true, err
		}
	}
}
