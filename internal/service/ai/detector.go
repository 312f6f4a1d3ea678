package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/metrics"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"

	"gocv.io/x/gocv"
)

var (
	ErrNotInitialized = errors.New("detection network not initialized")
	ErrUnreadable     = errors.New("image unreadable")
)

// Detector finds vehicles in a frame. The returned Mat is an annotated copy owned by the caller,
// and is empty (but still closable) when err != nil.
type Detector interface {
	Detect(frame gocv.Mat) (gocv.Mat, []model.Detection, error)
	DetectFile(path string) (gocv.Mat, []model.Detection, error)
}

// YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
// gocv.Net is not safe for concurrent use, so calls are serialized.
type YOLODetector struct {
	net           gocv.Net
	loaded        bool
	mu            sync.Mutex
	modelPath     string
	confThreshold float32
	nmsThreshold  float32
	inputSize     int
	allowed       map[int]bool
	useGPU        bool
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

// NewYOLODetector creates the detector and tries to load the network. A load failure is
// logged and leaves the detector returning ErrNotInitialized.
func NewYOLODetector(config *config.Config, logger *logger.Logger, metrics *metrics.Metrics) *YOLODetector {
	allowed := make(map[int]bool, len(config.VehicleClasses))
	for _, id := range config.VehicleClasses {
		allowed[id] = true
	}
	d := &YOLODetector{
		modelPath:     config.ModelPath,
		confThreshold: float32(config.ConfidenceThreshold),
		nmsThreshold:  float32(config.NMSThreshold),
		inputSize:     config.InferenceSize,
		allowed:       allowed,
		useGPU:        config.UseGPU(),
		logger:        logger,
		metrics:       metrics,
	}

	if err := d.initializeNet(); err != nil {
		d.logger.Warning("Could not initialize detection network: %v", err)
		return d
	}
	return d
}

func (d *YOLODetector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	d.logger.Info("Loading YOLO model: %s", d.modelPath)
	net := gocv.ReadNet(d.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if d.useGPU {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.loaded = true
	if d.useGPU {
		d.logger.Info("Using GPU for inference")
	} else {
		d.logger.Info("Using CPU for inference")
	}
	return nil
}

// Ready reports whether the network loaded.
func (d *YOLODetector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// DetectFile reads path and runs Detect on it.
func (d *YOLODetector) DetectFile(path string) (gocv.Mat, []model.Detection, error) {
	frame := gocv.IMRead(path, gocv.IMReadColor)
	defer frame.Close()
	if frame.Empty() {
		d.logger.Error("Failed to read image: %s", path)
		return gocv.NewMat(), nil, fmt.Errorf("%w: %s", ErrUnreadable, path)
	}
	return d.Detect(frame)
}

// Detect returns an annotated copy of frame and the vehicles found in it,
// in source pixel coordinates.
func (d *YOLODetector) Detect(frame gocv.Mat) (gocv.Mat, []model.Detection, error) {
	if frame.Empty() {
		return gocv.NewMat(), nil, fmt.Errorf("%w: empty frame", ErrUnreadable)
	}

	start := time.Now()
	detections, err := d.infer(frame)
	if err != nil {
		return gocv.NewMat(), nil, err
	}
	d.metrics.ObserveDetect(len(detections), time.Since(start))

	annotated := frame.Clone()
	if err := DrawDetections(&annotated, detections); err != nil {
		annotated.Close()
		return gocv.NewMat(), nil, err
	}
	return annotated, detections, nil
}

func (d *YOLODetector) infer(frame gocv.Mat) ([]model.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, ErrNotInitialized
	}

	size := d.inputSize
	lb := newLetterbox(frame.Cols(), frame.Rows(), size)
	input := letterboxFrame(frame, lb, size)
	defer input.Close()

	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	attrs, anchors := dims[1], dims[2]

	flat := output.Reshape(1, attrs)
	defer flat.Close()
	data, err := flat.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %v", err)
	}

	cands := decodeYOLO(data, attrs, anchors, d.confThreshold, d.allowed)
	if len(cands) == 0 {
		return []model.Detection{}, nil
	}

	scores := make([]float32, len(cands))
	for i, c := range cands {
		scores[i] = c.confidence
	}
	keep := gocv.NMSBoxes(classAwareBoxes(cands, size*2), scores, d.confThreshold, d.nmsThreshold)

	w, h := float64(frame.Cols()), float64(frame.Rows())

	detections := make([]model.Detection, 0, len(keep))
	for _, idx := range keep {
		c := cands[idx]
		x1, y1 := lb.toSource(c.box.Min.X, c.box.Min.Y)
		x2, y2 := lb.toSource(c.box.Max.X, c.box.Max.Y)
		detections = append(detections, model.Detection{
			ClassID:    c.classID,
			ClassName:  ClassName(c.classID),
			Confidence: float64(c.confidence),
			BBox:       [4]float64{clamp(x1, 0, w), clamp(y1, 0, h), clamp(x2, 0, w), clamp(y2, 0, h)},
		})
	}
	return detections, nil
}

// letterboxFrame scales frame into the center of a size x size canvas padded with gray.
func letterboxFrame(frame gocv.Mat, lb letterbox, size int) gocv.Mat {
	canvas := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC3)
	canvas.SetTo(gocv.NewScalar(114, 114, 114, 0))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(lb.width, lb.height), 0, 0, gocv.InterpolationLinear)

	roi := canvas.Region(image.Rect(lb.padX, lb.padY, lb.padX+lb.width, lb.padY+lb.height))
	defer roi.Close()
	resized.CopyTo(&roi)
	return canvas
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}
