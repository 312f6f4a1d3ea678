package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestSkipFor_NeverBelowOne(t *testing.T) {
	tests := []struct {
		rate, stride float64
		want         int
	}{
		{15, 1, 15},
		{29.97, 1, 30},
		{25, 0.5, 13},
		{0.4, 1, 1},
		{0.0001, 1, 1},
		{1, 1, 1},
		{60, 2, 120},
		{0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v*%v", tt.rate, tt.stride), func(t *testing.T) {
			got := SkipFor(tt.rate, tt.stride)
			require.Equal(t, tt.want, got)
			require.GreaterOrEqual(t, got, 1)
		})
	}
}

func newTestSampler(o Opener) *BatchSampler {
	cfg := &config.Config{SampleStrideSeconds: 1, MaxSampleSeconds: 15, FallbackFPS: 15}
	return NewBatchSampler(newTestCapture(o, nil), cfg, logger.Discard(), nil)
}

func TestSample_TenSecondStream(t *testing.T) {
	session := &fakeSession{fps: 15, frames: 150}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}
	dir := filepath.Join(t.TempDir(), "batch")

	paths := newTestSampler(opener).Sample(context.Background(), "hls://cam", dir)

	require.Len(t, paths, 10)
	for i, p := range paths {
		require.Equal(t, filepath.Join(dir, fmt.Sprintf("frame_%d.jpg", i)), p)
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
	require.True(t, session.isClosed())
	require.Equal(t, 1, opener.opens())
}

func TestSample_StopsAtCeiling(t *testing.T) {
	session := &fakeSession{fps: 15, frames: -1}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}

	paths := newTestSampler(opener).Sample(context.Background(), "hls://cam", t.TempDir())

	require.Len(t, paths, 15)
	require.Equal(t, 15*15, session.reads)
	require.True(t, session.isClosed())
}

func TestSample_FallbackFPS(t *testing.T) {
	session := &fakeSession{fps: 0, frames: 45}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}

	paths := newTestSampler(opener).Sample(context.Background(), "hls://cam", t.TempDir())
	require.Len(t, paths, 3)
}

func TestSample_OpenFailureReturnsEmpty(t *testing.T) {
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return nil, errRefused }}

	paths := newTestSampler(opener).Sample(context.Background(), "hls://cam", t.TempDir())
	require.Empty(t, paths)
}

func TestSample_FailedWritesAreSkipped(t *testing.T) {
	session := &fakeSession{fps: 15, frames: 45}
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return session, nil }}
	s := newTestSampler(opener)
	s.writeFrame = func(path string, _ gocv.Mat) bool {
		return filepath.Base(path) != "frame_1.jpg"
	}

	paths := s.Sample(context.Background(), "hls://cam", t.TempDir())
	require.Len(t, paths, 2)
	require.Equal(t, "frame_0.jpg", filepath.Base(paths[0]))
	require.Equal(t, "frame_2.jpg", filepath.Base(paths[1]))
}

func TestSample_CancelledReturnsEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opener := &scriptedOpener{next: func(int) (*fakeSession, error) { return &fakeSession{fps: 15, frames: 150}, nil }}

	require.Empty(t, newTestSampler(opener).Sample(ctx, "hls://cam", t.TempDir()))
}
