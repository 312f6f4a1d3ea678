package publish

import (
	"fmt"
	"sync"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

// Topic is the first frame of every published message, for SUB filtering.
const Topic = "traffic.cycle"

// Summary is the wire form of a CycleResult.
type Summary struct {
	CycleID         string  `cbor:"cycle_id"`
	CameraID        int     `cbor:"camera_id"`
	Timestamp       int64   `cbor:"timestamp"` // unix milliseconds
	AvgVehicleCount float64 `cbor:"avg_vehicle_count"`
	FrameCounts     []int   `cbor:"frame_counts"`
	Artifact        string  `cbor:"artifact,omitempty"`
}

func EncodeSummary(result model.CycleResult) ([]byte, error) {
	return cbor.Marshal(Summary{
		CycleID:         result.CycleID,
		CameraID:        result.CameraID,
		Timestamp:       result.Timestamp.UnixMilli(),
		AvgVehicleCount: result.AvgVehicleCount,
		FrameCounts:     result.FrameCounts,
		Artifact:        result.ArtifactPath,
	})
}

func DecodeSummary(data []byte) (Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

// ZMQPublisher sends CBOR summaries on a bound PUB socket.
type ZMQPublisher struct {
	socket   *zmq4.Socket
	endpoint string
	logger   *logger.Logger
	mu       sync.Mutex // zmq sockets are not goroutine safe
}

func NewZMQPublisher(endpoint string, logger *logger.Logger) (*ZMQPublisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("create PUB socket: %w", err)
	}
	if err := socket.SetLinger(time.Second); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("set linger: %w", err)
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}
	logger.Info("Publishing cycle summaries on %s", endpoint)
	return &ZMQPublisher{socket: socket, endpoint: endpoint, logger: logger}, nil
}

func (p *ZMQPublisher) Publish(result model.CycleResult) error {
	payload, err := EncodeSummary(result)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.socket == nil {
		return fmt.Errorf("publisher %s is closed", p.endpoint)
	}
	if _, err := p.socket.SendMessageDontwait(Topic, payload); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	p.logger.Debug("Published cycle %s (%d bytes)", result.CycleID, len(payload))
	return nil
}

func (p *ZMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.socket == nil {
		return nil
	}
	err := p.socket.Close()
	p.socket = nil
	return err
}

// Nop discards summaries when no endpoint is configured.
type Nop struct{}

func (Nop) Publish(model.CycleResult) error { return nil }
func (Nop) Close() error { return nil }

// Publisher is what the app wires into the scheduler and closes on shutdown.
type Publisher interface {
	Publish(result model.CycleResult) error
	Close() error
}

// FromConfig binds a ZMQPublisher when SUMMARY_PUB_ENDPOINT is set.
func FromConfig(config *config.Config, logger *logger.Logger) (Publisher, error) {
	if config.SummaryEndpoint == "" {
		return Nop{}, nil
	}
	return NewZMQPublisher(config.SummaryEndpoint, logger)
}
