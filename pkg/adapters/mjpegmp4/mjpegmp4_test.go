package mjpegmp4

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/filterbox/pkg/ports"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const w, h = 32, 24
	colors := []color.RGBA{
		{R: 220, G: 30, B: 30, A: 255},
		{R: 30, G: 220, B: 30, A: 255},
		{R: 30, G: 30, B: 220, A: 255},
	}

	enc := NewEncoder()
	if err := enc.Begin(w, h, 10, ports.EncoderOptions{Quality: 90}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i, c := range colors {
		if err := enc.EncodeFrame(solidFrame(w, h, c), i*100); err != nil {
			t.Fatalf("EncodeFrame %d: %v", i, err)
		}
	}
	data, err := enc.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty container")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader, err := NewDecoder().Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	meta := reader.Meta()
	if meta.Width != w || meta.Height != h {
		t.Errorf("dimensions = %dx%d, want %dx%d", meta.Width, meta.Height, w, h)
	}
	if meta.TotalFrames != len(colors) {
		t.Errorf("TotalFrames = %d, want %d", meta.TotalFrames, len(colors))
	}
	if meta.FPS < 9.5 || meta.FPS > 10.5 {
		t.Errorf("FPS = %v, want ~10", meta.FPS)
	}

	for i, want := range colors {
		frame, err := reader.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		got := frame.RGBAAt(w/2, h/2)
		// JPEG is lossy; solid colors survive within a small tolerance.
		if absDiff(got.R, want.R) > 16 || absDiff(got.G, want.G) > 16 || absDiff(got.B, want.B) > 16 {
			t.Errorf("frame %d center = %v, want close to %v", i, got, want)
		}
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("after last frame err = %v, want io.EOF", err)
	}
}

func TestEncoderRequiresBegin(t *testing.T) {
	enc := NewEncoder()
	if err := enc.EncodeFrame(solidFrame(2, 2, color.RGBA{A: 255}), 0); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("EncodeFrame error = %v, want ErrNotInitialized", err)
	}
	if _, err := enc.End(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("End error = %v, want ErrNotInitialized", err)
	}
}

func TestEncoderRejectsBadGeometry(t *testing.T) {
	enc := NewEncoder()
	if err := enc.Begin(0, 10, 30, ports.EncoderOptions{}); err == nil {
		t.Error("zero width accepted")
	}
	if err := enc.Begin(10, 10, 0, ports.EncoderOptions{}); err == nil {
		t.Error("zero fps accepted")
	}
}

func TestEncoderEmptyStream(t *testing.T) {
	enc := NewEncoder()
	if err := enc.Begin(4, 4, 30, ports.EncoderOptions{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := enc.End(); err == nil {
		t.Fatal("End with no frames did not error")
	}
}

func TestDecoderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.mp4")
	if err := os.WriteFile(path, []byte("not an mp4"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewDecoder().Open(context.Background(), path); err == nil {
		t.Fatal("garbage container accepted")
	}
}
