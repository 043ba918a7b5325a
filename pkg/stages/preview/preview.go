// Package preview renders a horizontal thumbnail strip from a video so
// clients can show what a filter variant looks like without playing it.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/user/filterbox/pkg/ports"
)

// ErrNoFrames is returned when the source yields no decodable frames.
var ErrNoFrames = errors.New("preview: no frames in source")

// Options tunes the strip layout.
type Options struct {
	Frames      int // thumbnails per strip
	ThumbHeight int // thumbnail height in pixels, width follows aspect
	Gap         int // spacing around thumbnails
	Quality     int // JPEG quality
	Background  color.Color
}

// DefaultOptions returns the standard strip layout.
func DefaultOptions() Options {
	return Options{
		Frames:      5,
		ThumbHeight: 90,
		Gap:         4,
		Quality:     80,
		Background:  color.RGBA{R: 26, G: 26, B: 46, A: 255},
	}
}

// Generator samples frames from a video and lays them out as one strip.
type Generator struct {
	decoder  ports.VideoDecoder
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options
}

// NewGenerator creates a Generator.
func NewGenerator(decoder ports.VideoDecoder, renderer ports.Renderer, logger ports.Logger, opts Options) *Generator {
	if opts.Frames <= 0 {
		opts.Frames = DefaultOptions().Frames
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = DefaultOptions().ThumbHeight
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultOptions().Quality
	}
	if opts.Background == nil {
		opts.Background = DefaultOptions().Background
	}
	return &Generator{
		decoder:  decoder,
		renderer: renderer,
		logger:   logger.WithComponent("preview"),
		opts:     opts,
	}
}

// Strip decodes the video once, samples frames evenly across its
// duration and returns the rendered strip as JPEG bytes.
func (g *Generator) Strip(ctx context.Context, videoPath string) ([]byte, error) {
	reader, err := g.decoder.Open(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("preview: open %s: %w", videoPath, err)
	}
	defer reader.Close()

	meta := reader.Meta()
	wanted := sampleIndices(meta.TotalFrames, g.opts.Frames)

	var thumbs []image.Image
	for index := 0; ; index++ {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("preview: decode frame %d: %w", index, err)
		}
		if !wanted[index] {
			continue
		}
		b := frame.Bounds()
		w := b.Dx() * g.opts.ThumbHeight / b.Dy()
		thumbs = append(thumbs, g.renderer.ResizeImage(frame, w, g.opts.ThumbHeight))
		if len(thumbs) == g.opts.Frames {
			break
		}
	}
	if len(thumbs) == 0 {
		return nil, ErrNoFrames
	}

	gap := g.opts.Gap
	width := gap
	for _, t := range thumbs {
		width += t.Bounds().Dx() + gap
	}
	canvas := g.renderer.CreateCanvas(width, g.opts.ThumbHeight+2*gap, g.opts.Background)
	x := gap
	for _, t := range thumbs {
		canvas.DrawImage(t, x, gap)
		x += t.Bounds().Dx() + gap
	}

	data, err := g.renderer.EncodeImage(canvas.ToImage(), ports.FormatJPEG, g.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("preview: encode strip: %w", err)
	}
	g.logger.Debug("Rendered %d-frame strip for %s", len(thumbs), videoPath)
	return data, nil
}

// sampleIndices spreads n picks evenly over total frames. With an
// unknown total the first n frames are used.
func sampleIndices(total, n int) map[int]bool {
	wanted := make(map[int]bool, n)
	if total <= 0 || total <= n {
		for i := 0; i < n; i++ {
			wanted[i] = true
		}
		return wanted
	}
	if n == 1 {
		wanted[(total-1)/2] = true
		return wanted
	}
	for i := 0; i < n; i++ {
		wanted[i*(total-1)/(n-1)] = true
	}
	return wanted
}
