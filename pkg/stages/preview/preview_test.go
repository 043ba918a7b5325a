package preview

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/user/filterbox/pkg/mocks"
	"github.com/user/filterbox/pkg/ports"
)

func framesOf(n, w, h int) []*image.RGBA {
	out := make([]*image.RGBA, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		img.SetRGBA(0, 0, color.RGBA{R: uint8(i), A: 255})
		out[i] = img
	}
	return out
}

func TestStripSamplesEvenly(t *testing.T) {
	const total = 100
	decoder := mocks.NewVideoDecoder(ports.VideoMeta{Width: 16, Height: 9, FPS: 30, TotalFrames: total}, framesOf(total, 16, 9))
	renderer := &mocks.Renderer{}
	g := NewGenerator(decoder, renderer, mocks.NewLogger(), Options{Frames: 5, ThumbHeight: 90})

	data, err := g.Strip(context.Background(), "v.mp4")
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty strip")
	}
	if len(renderer.Canvases) != 1 {
		t.Fatalf("got %d canvases, want 1", len(renderer.Canvases))
	}
	canvas := renderer.Canvases[0]
	if len(canvas.Images) != 5 {
		t.Fatalf("drew %d thumbnails, want 5", len(canvas.Images))
	}
	// Thumbnails are laid out left to right without overlap.
	lastX := -1
	for i, d := range canvas.Images {
		if d.X <= lastX {
			t.Errorf("thumbnail %d at x=%d not right of previous (%d)", i, d.X, lastX)
		}
		lastX = d.X
	}
	if renderer.Encoded != 1 {
		t.Errorf("encoded %d times, want 1", renderer.Encoded)
	}
}

func TestStripKeepsAspectRatio(t *testing.T) {
	decoder := mocks.NewVideoDecoder(ports.VideoMeta{Width: 640, Height: 360, FPS: 30, TotalFrames: 3}, framesOf(3, 640, 360))
	renderer := &mocks.Renderer{}
	g := NewGenerator(decoder, renderer, mocks.NewLogger(), Options{Frames: 3, ThumbHeight: 90})

	if _, err := g.Strip(context.Background(), "v.mp4"); err != nil {
		t.Fatalf("Strip: %v", err)
	}
	for i, d := range renderer.Canvases[0].Images {
		b := d.Image.Bounds()
		if b.Dy() != 90 {
			t.Errorf("thumbnail %d height = %d, want 90", i, b.Dy())
		}
		if b.Dx() != 160 {
			t.Errorf("thumbnail %d width = %d, want 160", i, b.Dx())
		}
	}
}

func TestStripShortVideo(t *testing.T) {
	// Fewer frames than requested thumbnails uses what exists.
	decoder := mocks.NewVideoDecoder(ports.VideoMeta{Width: 8, Height: 8, FPS: 30, TotalFrames: 2}, framesOf(2, 8, 8))
	renderer := &mocks.Renderer{}
	g := NewGenerator(decoder, renderer, mocks.NewLogger(), Options{Frames: 5, ThumbHeight: 32})

	if _, err := g.Strip(context.Background(), "v.mp4"); err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if got := len(renderer.Canvases[0].Images); got != 2 {
		t.Errorf("drew %d thumbnails, want 2", got)
	}
}

func TestStripEmptyVideo(t *testing.T) {
	decoder := mocks.NewVideoDecoder(ports.VideoMeta{Width: 8, Height: 8, FPS: 30}, nil)
	g := NewGenerator(decoder, &mocks.Renderer{}, mocks.NewLogger(), Options{})

	if _, err := g.Strip(context.Background(), "v.mp4"); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("error = %v, want ErrNoFrames", err)
	}
}

func TestStripDecodeFailure(t *testing.T) {
	decoder := mocks.NewVideoDecoder(ports.VideoMeta{Width: 8, Height: 8, FPS: 30, TotalFrames: 4}, framesOf(4, 8, 8))
	decoder.FailAt = 1
	g := NewGenerator(decoder, &mocks.Renderer{}, mocks.NewLogger(), Options{Frames: 4})

	if _, err := g.Strip(context.Background(), "v.mp4"); err == nil {
		t.Fatal("decode failure not surfaced")
	}
}

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		name  string
		total int
		n     int
		want  []int
	}{
		{"even spread", 100, 5, []int{0, 24, 49, 74, 99}},
		{"covers endpoints", 10, 2, []int{0, 9}},
		{"single pick", 9, 1, []int{4}},
		{"short video", 3, 5, []int{0, 1, 2, 3, 4}},
		{"unknown total", 0, 3, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sampleIndices(tt.total, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d indices %v, want %d", len(got), got, len(tt.want))
			}
			for _, idx := range tt.want {
				if !got[idx] {
					t.Errorf("index %d not sampled (got %v)", idx, got)
				}
			}
		})
	}
}
