package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"

	"gocv.io/x/gocv"
)

// fakeSession yields `frames` synthetic frames, then fails every read.
// frames < 0 never runs dry.
type fakeSession struct {
	fps    float64
	frames int
	reads  int
	closed bool
	mu     sync.Mutex
}

func (s *fakeSession) FPS() float64 { return s.fps }

func (s *fakeSession) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames >= 0 && s.reads >= s.frames {
		return false
	}
	s.reads++
	dst.Close()
	*dst = gocv.NewMatWithSize(16, 24, gocv.MatTypeCV8UC3)
	return true
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// scriptedOpener hands out sessions from next; a nil session means open failure.
type scriptedOpener struct {
	mu       sync.Mutex
	next     func(call int) (*fakeSession, error)
	calls    int
	sessions []*fakeSession
}

func (o *scriptedOpener) Open(url string) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	s, err := o.next(o.calls)
	if err != nil {
		return nil, err
	}
	o.sessions = append(o.sessions, s)
	return s, nil
}

func (o *scriptedOpener) opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func (o *scriptedOpener) allClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		if !s.isClosed() {
			return false
		}
	}
	return true
}

type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

var errRefused = errors.New("connection refused")

func newTestCapture(o Opener, w *waitRecorder) *Capture {
	c := New(o, logger.Discard(), nil)
	if w != nil {
		c.wait = w.wait
	}
	return c
}
