// Package config loads runtime settings for the stop-sign detector.
// Values come from defaults, then an optional JSON file, then STOPSIGN_*
// environment variables (a .env file is read if present), then flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/stopsign/internal/debounce"
	"github.com/ayusman/stopsign/internal/detector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds runtime configuration.
type Config struct {
	// Camera and detection
	CameraID     int     `json:"camera_id" validate:"gte=0"`
	FPS          int     `json:"fps" validate:"gte=1,lte=120"`
	CascadePath  string  `json:"cascade_path" validate:"required"`
	ScaleFactor  float64 `json:"scale_factor" validate:"gt=1"`
	MinNeighbors int     `json:"min_neighbors" validate:"gte=1"`
	MinSize      int     `json:"min_size" validate:"gte=1"`

	// Debounce
	HitThreshold       int     `json:"hit_threshold" validate:"gte=1"`
	ResumeDelaySeconds float64 `json:"resume_delay_seconds" validate:"gt=0"`

	// Output
	SnapshotDir string `json:"snapshot_dir" validate:"required"`
	DataDir     string `json:"data_dir" validate:"required"`
	ShowWindow  bool   `json:"show_window"`
	Tray        bool   `json:"tray"`
	Addr        string `json:"addr" validate:"omitempty,hostname_port"`
	HooksDir    string `json:"hooks_dir"`

	// Optional snapshot upload
	S3Bucket string `json:"s3_bucket"`
	S3Region string `json:"s3_region" validate:"required_with=S3Bucket"`
	S3Prefix string `json:"s3_prefix"`

	// Logging
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `json:"log_file"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	dataDir := ".stopsign"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".stopsign")
	}

	return &Config{
		CameraID:           0,
		FPS:                15,
		CascadePath:        detector.DefaultCascadePath,
		ScaleFactor:        detector.DefaultScaleFactor,
		MinNeighbors:       detector.DefaultMinNeighbors,
		MinSize:            detector.DefaultMinSize,
		HitThreshold:       debounce.DefaultHitThreshold,
		ResumeDelaySeconds: debounce.DefaultResumeDelay.Seconds(),
		SnapshotDir:        ".",
		DataDir:            dataDir,
		ShowWindow:         true,
		Tray:               false,
		Addr:               "127.0.0.1:8080",
		LogLevel:           "info",
	}
}

// Load reads configuration from the given JSON file path. A missing file is
// not an error and yields DefaultConfig(). An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Environment variable names.
const (
	EnvCameraID     = "STOPSIGN_CAMERA_ID"
	EnvCascadePath  = "STOPSIGN_CASCADE_PATH"
	EnvHitThreshold = "STOPSIGN_HIT_THRESHOLD"
	EnvResumeDelay  = "STOPSIGN_RESUME_DELAY_SECONDS"
	EnvSnapshotDir  = "STOPSIGN_SNAPSHOT_DIR"
	EnvDataDir      = "STOPSIGN_DATA_DIR"
	EnvAddr         = "STOPSIGN_ADDR"
	EnvHooksDir     = "STOPSIGN_HOOKS_DIR"
	EnvLogLevel     = "STOPSIGN_LOG_LEVEL"
	EnvLogFile      = "STOPSIGN_LOG_FILE"
	EnvS3Bucket     = "STOPSIGN_S3_BUCKET"
	EnvS3Region     = "STOPSIGN_S3_REGION"
	EnvS3Prefix     = "STOPSIGN_S3_PREFIX"
)

// LoadDotEnv loads the given .env files (or ./.env when none are given)
// into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

// ApplyEnv overrides fields from STOPSIGN_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvCameraID); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCameraID, err)
		}
		c.CameraID = n
	}
	if v := os.Getenv(EnvHitThreshold); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHitThreshold, err)
		}
		c.HitThreshold = n
	}
	if v := os.Getenv(EnvResumeDelay); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvResumeDelay, err)
		}
		c.ResumeDelaySeconds = f
	}

	vars := map[string]*string{
		EnvCascadePath: &c.CascadePath,
		EnvSnapshotDir: &c.SnapshotDir,
		EnvDataDir:     &c.DataDir,
		EnvAddr:        &c.Addr,
		EnvHooksDir:    &c.HooksDir,
		EnvLogLevel:    &c.LogLevel,
		EnvLogFile:     &c.LogFile,
		EnvS3Bucket:    &c.S3Bucket,
		EnvS3Region:    &c.S3Region,
		EnvS3Prefix:    &c.S3Prefix,
	}
	for name, field := range vars {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}

	return nil
}

var validate = validator.New()

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResumeDelay returns the resume delay as a duration.
func (c *Config) ResumeDelay() time.Duration {
	return time.Duration(c.ResumeDelaySeconds * float64(time.Second))
}

// DBPath is where the episode history database lives.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "stopsign.db")
}

// HookDir is where signal hooks are discovered. It defaults to DataDir/hooks.
func (c *Config) HookDir() string {
	if c.HooksDir != "" {
		return c.HooksDir
	}
	return filepath.Join(c.DataDir, "hooks")
}

// Debounce returns the debounce thresholds.
func (c *Config) Debounce() debounce.Config {
	return debounce.Config{
		HitThreshold: c.HitThreshold,
		ResumeDelay:  c.ResumeDelay(),
	}
}

// Detector returns the cascade parameters.
func (c *Config) Detector() detector.Config {
	return detector.Config{
		CascadePath:  c.CascadePath,
		ScaleFactor:  c.ScaleFactor,
		MinNeighbors: c.MinNeighbors,
		MinSize:      c.MinSize,
	}
}
