package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	EngineDlib     = "dlib"
	EngineOpenFace = "openface"

	MatcherLinear = "linear"
	MatcherHNSW   = "hnsw"
)

type Config struct {
	Port     int
	Host     string
	Password string // empty disables the login gate

	CameraDevice string // numeric id or a stream URL / file path
	FrameWidth   int
	FrameHeight  int

	ReferenceDirectory string
	LabelsFile         string // optional YAML with display names

	Engine         string
	ModelDirectory string
	DlibCNN        bool
	PigoCascade    string
	EncoderModel   string
	EncoderConfig  string
	PigoMinSize    int

	Matcher        string
	MatchTolerance float64 // 0 means the engine default

	Downscale       int           // detection runs on a 1/Downscale frame
	ProcessEveryNth int           // 2 = every other frame
	TickInterval    time.Duration // pause between frames
	JPEGQuality     int
	StartCapturing  bool

	DatabasePath      string
	SnapshotDirectory string
	SnapshotLimit     int
	FlushInterval     time.Duration

	LogDirectory string
}

func Load() *Config {
	modelDir := getEnv("MODEL_DIR", "models")

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Host:     getEnv("HOST", "0.0.0.0"),
		Password: getEnv("PASSWORD", ""),

		CameraDevice: getEnv("CAMERA_DEVICE", "0"),
		FrameWidth:   getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight:  getEnvAsInt("FRAME_HEIGHT", 480),

		ReferenceDirectory: getEnv("REFERENCE_DIR", "pic"),
		LabelsFile:         getEnv("LABELS_FILE", ""),

		Engine:         strings.ToLower(getEnv("ENGINE", EngineDlib)),
		ModelDirectory: modelDir,
		DlibCNN:        getEnvAsBool("DLIB_CNN", false),
		PigoCascade:    getEnv("PIGO_CASCADE", filepath.Join(modelDir, "facefinder")),
		EncoderModel:   getEnv("ENCODER_MODEL", filepath.Join(modelDir, "nn4.small2.v1.t7")),
		EncoderConfig:  getEnv("ENCODER_CONFIG", ""),
		PigoMinSize:    getEnvAsInt("PIGO_MIN_SIZE", 20),

		Matcher:        strings.ToLower(getEnv("MATCHER", MatcherLinear)),
		MatchTolerance: getEnvAsFloat("MATCH_TOLERANCE", 0),

		Downscale:       getEnvAsInt("DOWNSCALE", 4),
		ProcessEveryNth: getEnvAsInt("PROCESS_EVERY_NTH", 2),
		TickInterval:    getEnvAsDuration("TICK_INTERVAL", 100*time.Millisecond),
		JPEGQuality:     getEnvAsInt("JPEG_QUALITY", 80),
		StartCapturing:  getEnvAsBool("START_CAPTURING", true),

		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join("data", "facecam.db")),
		SnapshotDirectory: getEnv("SNAPSHOT_DIR", ""),
		SnapshotLimit:     getEnvAsInt("SNAPSHOT_LIMIT", 5),
		FlushInterval:     getEnvAsDuration("FLUSH_INTERVAL", 30*time.Second),

		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

// AuthEnabled reports whether the web view sits behind the login page.
func (c *Config) AuthEnabled() bool {
	return c.Password != ""
}

// SnapshotsEnabled reports whether recognised frames are persisted.
func (c *Config) SnapshotsEnabled() bool {
	return c.SnapshotDirectory != "" && c.SnapshotLimit > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt only accepts positive values; anything else falls back to the default.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue >= 0 {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
