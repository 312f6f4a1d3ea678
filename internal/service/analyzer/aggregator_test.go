package analyzer

import (
	"errors"
	"sync"
	"testing"

	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/ai"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeDetector struct {
	mu      sync.Mutex
	results map[string][]model.Detection
	err     error
	calls   []string
}

func (d *fakeDetector) Detect(frame gocv.Mat) (gocv.Mat, []model.Detection, error) {
	if frame.Empty() {
		return gocv.NewMat(), nil, ai.ErrUnreadable
	}
	return frame.Clone(), []model.Detection{car(), car()}, nil
}

func (d *fakeDetector) DetectFile(path string) (gocv.Mat, []model.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, path)
	if d.err != nil {
		return gocv.NewMat(), nil, d.err
	}
	dets, ok := d.results[path]
	if !ok {
		return gocv.NewMat(), nil, ai.ErrUnreadable
	}
	return gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3), dets, nil
}

type fakeStore struct {
	saved []int
	err   error
}

func (s *fakeStore) Save(mat gocv.Mat, camera int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, camera)
	return "output/analyzed_20250101_120000.jpg", nil
}

func car() model.Detection {
	return model.Detection{ClassID: 2, ClassName: "car", Confidence: 0.8, BBox: [4]float64{1, 1, 20, 20}}
}

func truck() model.Detection {
	return model.Detection{ClassID: 7, ClassName: "truck", Confidence: 0.7, BBox: [4]float64{30, 30, 60, 60}}
}

func n(k int) []model.Detection {
	out := make([]model.Detection, k)
	for i := range out {
		out[i] = car()
	}
	return out
}

func TestAverage(t *testing.T) {
	require.Equal(t, 0.0, Average(nil))
	require.Equal(t, 0.0, Average([]int{}))
	require.Equal(t, 4.0, Average([]int{3, 5, 4}))
	require.Equal(t, 2.5, Average([]int{2, 3}))
}

func TestRepresentativeIndex(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, -1}, {1, 0}, {2, 1}, {3, 1}, {4, 2}, {10, 5}, {15, 7},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, RepresentativeIndex(tt.n), "n=%d", tt.n)
	}
}

func TestAggregate(t *testing.T) {
	result := Aggregate([]model.FrameDetections{
		{Path: "a", Detections: n(3)},
		{Path: "b", Detections: n(5)},
		{Path: "c", Detections: n(4)},
	})
	require.Equal(t, []int{3, 5, 4}, result.FrameCounts)
	require.Equal(t, 4.0, result.AvgVehicleCount)
	require.False(t, result.HasArtifact())

	empty := Aggregate(nil)
	require.Equal(t, 0.0, empty.AvgVehicleCount)
	require.Empty(t, empty.FrameCounts)
}

func TestAnalyze(t *testing.T) {
	det := &fakeDetector{results: map[string][]model.Detection{
		"f0.jpg": n(3),
		"f1.jpg": append(n(4), truck()),
		"f2.jpg": n(4),
	}}
	store := &fakeStore{}
	a := NewAggregator(det, store, 6301, logger.Discard())

	result, err := a.Analyze([]string{"f0.jpg", "f1.jpg", "f2.jpg"})
	require.NoError(t, err)
	require.Equal(t, []int{3, 5, 4}, result.FrameCounts)
	require.Equal(t, 4.0, result.AvgVehicleCount)
	require.Equal(t, 6301, result.CameraID)
	require.Equal(t, "output/analyzed_20250101_120000.jpg", result.ArtifactPath)
	require.Equal(t, []int{6301}, store.saved)
	require.Equal(t, []string{"f0.jpg", "f1.jpg", "f2.jpg", "f1.jpg"}, det.calls)
}

func TestAnalyze_EmptyBatch(t *testing.T) {
	a := NewAggregator(&fakeDetector{}, &fakeStore{}, 6301, logger.Discard())
	_, err := a.Analyze(nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestAnalyze_UnreadableFramesCountAsZero(t *testing.T) {
	det := &fakeDetector{results: map[string][]model.Detection{
		"f0.jpg": n(2),
		"f1.jpg": n(6),
	}}
	a := NewAggregator(det, &fakeStore{}, 6301, logger.Discard())

	result, err := a.Analyze([]string{"f0.jpg", "f1.jpg", "broken.jpg"})
	require.NoError(t, err)
	require.Equal(t, []int{2, 6, 0}, result.FrameCounts)
	require.InDelta(t, 8.0/3.0, result.AvgVehicleCount, 1e-9)
	require.True(t, result.HasArtifact())
}

func TestAnalyze_RepresentativeUnreadable(t *testing.T) {
	det := &fakeDetector{results: map[string][]model.Detection{"f0.jpg": n(1)}}
	store := &fakeStore{}
	a := NewAggregator(det, store, 6301, logger.Discard())

	result, err := a.Analyze([]string{"f0.jpg", "missing.jpg"})
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, result.FrameCounts)
	require.False(t, result.HasArtifact())
	require.Empty(t, store.saved)
}

func TestAnalyze_DetectorNotLoaded(t *testing.T) {
	det := &fakeDetector{err: ai.ErrNotInitialized}
	store := &fakeStore{}
	a := NewAggregator(det, store, 6301, logger.Discard())

	result, err := a.Analyze([]string{"f0.jpg", "f1.jpg", "f2.jpg"})
	require.ErrorIs(t, err, ai.ErrNotInitialized)
	require.Empty(t, result.FrameCounts)
	require.Empty(t, store.saved)
	require.Equal(t, []string{"f0.jpg"}, det.calls)
}

func TestAnalyze_AllFramesUnreadable(t *testing.T) {
	store := &fakeStore{}
	a := NewAggregator(&fakeDetector{}, store, 6301, logger.Discard())

	_, err := a.Analyze([]string{"a.jpg", "b.jpg"})
	require.ErrorIs(t, err, ai.ErrUnreadable)
	require.Empty(t, store.saved)
}

func TestAnalyze_SaveFailure(t *testing.T) {
	det := &fakeDetector{results: map[string][]model.Detection{"f0.jpg": n(1)}}
	a := NewAggregator(det, &fakeStore{err: errors.New("disk full")}, 6301, logger.Discard())

	result, err := a.Analyze([]string{"f0.jpg"})
	require.Error(t, err)
	require.Equal(t, []int{1}, result.FrameCounts)
}

func TestAnalyzeOne(t *testing.T) {
	det := &fakeDetector{results: map[string][]model.Detection{"f0.jpg": {car(), truck()}}}
	a := NewAggregator(det, &fakeStore{}, 6300, logger.Discard())

	res, err := a.AnalyzeOne("f0.jpg")
	require.NoError(t, err)
	require.Equal(t, 2, res.VehicleCount)
	require.NotEmpty(t, res.ArtifactPath)

	res, err = a.AnalyzeOne("nope.jpg")
	require.ErrorIs(t, err, ai.ErrUnreadable)
	require.Zero(t, res.VehicleCount)
	require.Empty(t, res.ArtifactPath)
}

func TestAnnotate(t *testing.T) {
	a := NewAggregator(&fakeDetector{}, &fakeStore{}, 6301, logger.Discard())

	frame := gocv.NewMatWithSize(90, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()
	out, err := a.Annotate(frame)
	require.NoError(t, err)
	defer out.Close()
	require.Equal(t, frame.Rows(), out.Rows())

	empty := gocv.NewMat()
	defer empty.Close()
	bad, err := a.Annotate(empty)
	defer bad.Close()
	require.Error(t, err)
}
