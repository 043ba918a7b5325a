// Package config provides configuration loading and management.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/filterbox/pkg/orchestrator"
	"github.com/user/filterbox/pkg/server"
)

// Config represents the full configuration for filterbox.
type Config struct {
	// Server
	Bind        string `yaml:"bind"`
	UploadDir   string `yaml:"upload_dir"`
	TempDir     string `yaml:"temp_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`

	// Cache
	CacheDir        string `yaml:"cache_dir"`
	LeaseTimeoutSec int    `yaml:"lease_timeout_sec"`

	// Segmentation
	SegmenterURL string  `yaml:"segmenter_url"`
	Threshold    float32 `yaml:"threshold"`

	// Processing
	Workers int `yaml:"workers"`
	Quality int `yaml:"quality"`
	Bitrate int `yaml:"bitrate"`

	// Codec
	Codec       string `yaml:"codec"` // "ffmpeg" or "mjpeg"
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Acquisition
	YtDlpPath string `yaml:"yt_dlp_path"` // empty disables the page-URL fallback

	// Playback
	DriftThresholdMs int `yaml:"drift_threshold_ms"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Server
		Bind:        ":5000",
		UploadDir:   "./uploaded-videos",
		TempDir:     os.TempDir(),
		MaxUploadMB: 512,

		// Cache
		CacheDir:        "./processed-videos",
		LeaseTimeoutSec: 1800,

		// Segmentation
		Threshold: 0.5,

		// Processing
		Workers: 4,
		Quality: 85,

		// Codec
		Codec:       "ffmpeg",
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",

		// Playback
		DriftThresholdMs: 200,

		// Debug
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LeaseTimeout returns the cache lease timeout as a duration.
func (c Config) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutSec) * time.Second
}

// DriftThreshold returns the playback drift threshold as a duration.
func (c Config) DriftThreshold() time.Duration {
	return time.Duration(c.DriftThresholdMs) * time.Millisecond
}

// ToPipelineConfig converts Config to orchestrator.Config.
func (c Config) ToPipelineConfig() orchestrator.Config {
	return orchestrator.Config{
		Threshold: c.Threshold,
		Quality:   c.Quality,
		Bitrate:   c.Bitrate,
		Workers:   c.Workers,
	}
}

// ToServerOptions converts Config to server.Options.
func (c Config) ToServerOptions() server.Options {
	return server.Options{
		Bind:        c.Bind,
		UploadDir:   c.UploadDir,
		TempDir:     c.TempDir,
		MaxUploadMB: c.MaxUploadMB,
	}
}
