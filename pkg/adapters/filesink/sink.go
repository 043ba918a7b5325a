// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/filterbox/pkg/ports"
)

// Sink saves debug output to files.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveRunJSON saves run metadata as JSON.
func (s *Sink) SaveRunJSON(data []byte) error {
	path := filepath.Join(s.baseDir, "run.json")
	return s.fs.WriteFile(path, data)
}

// SaveSourceFrame saves a decoded source frame.
func (s *Sink) SaveSourceFrame(index int, img image.Image) error {
	return s.savePNG(filepath.Join(s.baseDir, "frames", "source"), index, img)
}

// SaveMask saves a segmentation mask rendered as a grayscale image.
func (s *Sink) SaveMask(index int, img image.Image) error {
	return s.savePNG(filepath.Join(s.baseDir, "frames", "mask"), index, img)
}

// SaveVariantFrame saves one filter variant of a composited frame.
func (s *Sink) SaveVariantFrame(filterID string, index int, img image.Image) error {
	return s.savePNG(filepath.Join(s.baseDir, "frames", filterID), index, img)
}

func (s *Sink) savePNG(dir string, index int, img image.Image) error {
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", index))
	return s.fs.WriteFile(path, data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
