package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

type countingAnnotator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (a *countingAnnotator) Annotate(frame gocv.Mat) (gocv.Mat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail {
		return gocv.NewMat(), errors.New("net not loaded")
	}
	return frame.Clone(), nil
}

func (a *countingAnnotator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestThrottler(o Opener, a Annotator, m *metrics.Metrics) (*LiveThrottler, *waitRecorder) {
	cfg := &config.Config{LiveFPS: 5, ReconnectBackoff: 500 * time.Millisecond, FallbackFPS: 15}
	waits := &waitRecorder{}
	lt := NewLiveThrottler(newTestCapture(o, waits), a, cfg, logger.Discard(), m)
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	lt.now = clock.now
	seq := 0
	lt.encode = func(gocv.Mat) ([]byte, error) {
		seq++
		return []byte{byte(seq)}, nil
	}
	return lt, waits
}

func drain(ch <-chan []byte) {
	for range ch {
	}
}

func TestStream_ThrottlesToTargetRate(t *testing.T) {
	session := &fakeSession{fps: 10, frames: -1}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}
	annotator := &countingAnnotator{}
	m := metrics.New()
	lt, _ := newTestThrottler(opener, annotator, m)

	ctx, cancel := context.WithCancel(context.Background())
	ch := lt.Stream(ctx, "hls://cam")

	for i := 0; i < 5; i++ {
		_, ok := <-ch
		require.True(t, ok)
	}
	cancel()
	drain(ch)

	// 200ms minimum interval against a clock stepping 100ms per frame.
	require.True(t, session.isClosed())
	require.GreaterOrEqual(t, m.LiveThrottled.Load(), uint64(4))
	require.InDelta(t, float64(m.LiveFramesSent.Load()), float64(annotator.count()), 1)
	require.EqualValues(t, 0, m.ActiveLive())
}

func TestStream_ReconnectsAfterReadFailure(t *testing.T) {
	opener := &scriptedOpener{next: func(call int) (*fakeSession, error) {
		switch call {
		case 1:
			return &fakeSession{fps: 10, frames: 1}, nil
		case 2:
			return nil, errRefused
		default:
			return &fakeSession{fps: 10, frames: -1}, nil
		}
	}}
	lt, waits := newTestThrottler(opener, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := lt.Stream(ctx, "hls://cam")

	first := <-ch
	second := <-ch
	require.NotEqual(t, first, second)
	cancel()
	drain(ch)

	require.Equal(t, 3, opener.opens())
	require.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, waits.recorded())
	require.True(t, opener.allClosed())
}

func TestStream_EncodeFailureIsSkipped(t *testing.T) {
	session := &fakeSession{fps: 10, frames: -1}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}
	m := metrics.New()
	lt, _ := newTestThrottler(opener, nil, m)

	calls := 0
	lt.encode = func(gocv.Mat) ([]byte, error) {
		calls++
		if calls <= 2 {
			return nil, ErrEncodeFailed
		}
		return []byte("jpeg"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := lt.Stream(ctx, "hls://cam")
	require.Equal(t, []byte("jpeg"), <-ch)
	cancel()
	drain(ch)

	require.EqualValues(t, 2, m.EncodeErrors.Load())
	require.GreaterOrEqual(t, calls, 3)
}

func TestStream_AnnotationFailureSendsRawFrame(t *testing.T) {
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return &fakeSession{fps: 10, frames: -1}, nil }}
	annotator := &countingAnnotator{fail: true}
	lt, _ := newTestThrottler(opener, annotator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := lt.Stream(ctx, "hls://cam")
	_, ok := <-ch
	require.True(t, ok)
	cancel()
	drain(ch)
	require.GreaterOrEqual(t, annotator.count(), 1)
}

func TestStream_ClosesWhenContextEnds(t *testing.T) {
	session := &fakeSession{fps: 10, frames: -1}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}
	lt, _ := newTestThrottler(opener, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	drain(lt.Stream(ctx, "hls://cam"))

	require.True(t, session.isClosed())
}
