package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Bind != ":5000" {
		t.Errorf("Bind = %q, want :5000", cfg.Bind)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Threshold)
	}
	if cfg.DriftThreshold() != 200*time.Millisecond {
		t.Errorf("DriftThreshold = %v, want 200ms", cfg.DriftThreshold())
	}
	if cfg.LeaseTimeout() != 30*time.Minute {
		t.Errorf("LeaseTimeout = %v, want 30m", cfg.LeaseTimeout())
	}
	if cfg.Codec != "ffmpeg" {
		t.Errorf("Codec = %q, want ffmpeg", cfg.Codec)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bind: ":9000"
threshold: 0.7
workers: 8
segmenter_url: "http://localhost:7000/segment"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Bind != ":9000" {
		t.Errorf("Bind = %q, want :9000", cfg.Bind)
	}
	if cfg.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", cfg.Threshold)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.SegmenterURL != "http://localhost:7000/segment" {
		t.Errorf("SegmenterURL = %q", cfg.SegmenterURL)
	}
	// Untouched keys keep their defaults.
	if cfg.Quality != 85 {
		t.Errorf("Quality = %d, want default 85", cfg.Quality)
	}
	if cfg.UploadDir != "./uploaded-videos" {
		t.Errorf("UploadDir = %q, want default", cfg.UploadDir)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file did not error")
	}
}

func TestPipelineConfigConversion(t *testing.T) {
	cfg := Defaults()
	cfg.Threshold = 0.6
	cfg.Workers = 2
	pc := cfg.ToPipelineConfig()
	if pc.Threshold != 0.6 || pc.Workers != 2 || pc.Quality != 85 {
		t.Errorf("unexpected pipeline config %+v", pc)
	}
}
