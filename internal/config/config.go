package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultVehicleClasses are the COCO ids for car, motorcycle, bus and truck.
var DefaultVehicleClasses = []int{2, 3, 5, 7}

type Config struct {
	Port           int
	CCTVID         int
	AuthURL        string
	LookupURL      string
	HTTPTimeout    time.Duration
	RateLimitPerIP int // requests per minute on endpoints that hit the upstream provider

	ModelPath           string
	ConfidenceThreshold float64
	NMSThreshold        float64
	InferenceSize       int
	Device              string
	VehicleClasses      []int

	IntervalSeconds     int
	LiveFPS             int
	MaxSampleSeconds    int
	FallbackFPS         float64
	SampleStrideSeconds float64
	ReconnectBackoff    time.Duration

	TempDirectory     string
	OutputDirectory   string
	LogDirectory      string
	StaticDirectory   string
	DatabasePath      string
	MaxResults        int
	RetentionInterval time.Duration

	TelegramBotToken string
	TelegramChatID   string
	SummaryEndpoint  string // ZeroMQ PUB bind endpoint, empty disables publishing

	LogLevel string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are left untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func Load() *Config {
	return &Config{
		Port:           getEnvAsInt("PORT", 8000),
		CCTVID:         getEnvAsInt("CCTV_ID", 6301),
		AuthURL:        getEnv("NAVER_AUTH_URL", "https://nam.veta.naver.com/nac/1"),
		LookupURL:      getEnv("NAVER_CCTV_API_URL", "https://map.naver.com/p/api/cctv"),
		HTTPTimeout:    time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitPerIP: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),

		ModelPath:           getEnv("YOLO_MODEL", filepath.Join(".", "model", "yolov8n.onnx")),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.45),
		InferenceSize:       getEnvAsInt("INFERENCE_SIZE", 640),
		Device:              strings.ToLower(getEnv("DEVICE", "cpu")),
		VehicleClasses:      getEnvAsIntList("VEHICLE_CLASSES", DefaultVehicleClasses),

		IntervalSeconds:     getEnvAsInt("INTERVAL_SECONDS", 60),
		LiveFPS:             getEnvAsInt("LIVE_FPS", 5),
		MaxSampleSeconds:    getEnvAsInt("MAX_SAMPLE_SECONDS", 15),
		FallbackFPS:         getEnvAsFloat("FALLBACK_FPS", 15),
		SampleStrideSeconds: getEnvAsFloat("SAMPLE_STRIDE_SECONDS", 1.0),
		ReconnectBackoff:    time.Duration(getEnvAsInt("RECONNECT_BACKOFF_MS", 500)) * time.Millisecond,

		TempDirectory:     getEnv("TEMP_DIR", filepath.Join(".", "temp")),
		OutputDirectory:   getEnv("OUTPUT_DIR", filepath.Join(".", "output")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory:   getEnv("STATIC_DIR", filepath.Join(".", "static")),
		DatabasePath:      getEnv("DB_PATH", filepath.Join(".", "data", "results.db")),
		MaxResults:        getEnvAsInt("MAX_RESULTS", 500),
		RetentionInterval: time.Duration(getEnvAsInt("RETENTION_INTERVAL", 300)) * time.Second,

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		SummaryEndpoint:  getEnv("SUMMARY_PUB_ENDPOINT", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports the first option that is out of range.
func (c *Config) Validate() error {
	switch {
	case c.IntervalSeconds < 1:
		return fmt.Errorf("INTERVAL_SECONDS must be >= 1, got %d", c.IntervalSeconds)
	case c.LiveFPS < 1:
		return fmt.Errorf("LIVE_FPS must be >= 1, got %d", c.LiveFPS)
	case c.MaxSampleSeconds < 1:
		return fmt.Errorf("MAX_SAMPLE_SECONDS must be >= 1, got %d", c.MaxSampleSeconds)
	case c.FallbackFPS <= 0:
		return fmt.Errorf("FALLBACK_FPS must be > 0, got %v", c.FallbackFPS)
	case c.SampleStrideSeconds <= 0:
		return fmt.Errorf("SAMPLE_STRIDE_SECONDS must be > 0, got %v", c.SampleStrideSeconds)
	case c.ReconnectBackoff <= 0:
		return fmt.Errorf("RECONNECT_BACKOFF_MS must be > 0, got %d", c.ReconnectBackoff.Milliseconds())
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	case c.InferenceSize < 32:
		return fmt.Errorf("INFERENCE_SIZE too small: %d", c.InferenceSize)
	case len(c.VehicleClasses) == 0:
		return errors.New("VEHICLE_CLASSES must not be empty")
	}
	switch c.Device {
	case "cpu", "gpu", "cuda":
	default:
		return fmt.Errorf("DEVICE must be cpu or gpu, got %q", c.Device)
	}
	return nil
}

// Interval returns the cycle period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// UseGPU reports whether inference should run on CUDA.
func (c *Config) UseGPU() bool {
	return c.Device == "gpu" || c.Device == "cuda"
}

// AlertsEnabled reports whether Telegram credentials are configured.
func (c *Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsIntList parses a comma separated list; any bad entry falls back to the default.
func getEnvAsIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return append([]int(nil), defaultValue...)
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return append([]int(nil), defaultValue...)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return append([]int(nil), defaultValue...)
	}
	return out
}
