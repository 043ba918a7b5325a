// Package httpseg talks to an external person-segmentation service.
// The model itself is a black box behind an HTTP endpoint: frames go
// out as JPEG, confidence masks come back as 8-bit grayscale PNG at
// whatever resolution the model works in. Masks are resized here to
// match the frame.
package httpseg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/user/filterbox/pkg/ports"
)

// ErrServiceUnavailable is returned on transport failures or non-200
// responses from the mask service.
var ErrServiceUnavailable = errors.New("httpseg: segmentation service unavailable")

const (
	defaultTimeout     = 30 * time.Second
	defaultJPEGQuality = 90
)

// Options tunes the client.
type Options struct {
	Timeout     time.Duration
	JPEGQuality int
	HTTPClient  *http.Client
}

// Segmenter implements ports.Segmenter against an HTTP mask service.
type Segmenter struct {
	url     string
	client  *http.Client
	quality int
	logger  ports.Logger
}

// New creates a Segmenter posting frames to the given endpoint.
func New(url string, logger ports.Logger, opts Options) *Segmenter {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	return &Segmenter{
		url:     url,
		client:  client,
		quality: quality,
		logger:  logger.WithComponent("httpseg"),
	}
}

// Segment posts the frame and converts the returned grayscale mask to
// per-pixel confidences aligned with the frame.
func (s *Segmenter) Segment(ctx context.Context, frame image.Image) (*ports.Mask, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("httpseg: encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return nil, fmt.Errorf("httpseg: build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	maskImg, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpseg: decode mask: %w", err)
	}

	b := frame.Bounds()
	return MaskFromImage(maskImg, b.Dx(), b.Dy()), nil
}

// Close is a no-op; the service holds no per-session state.
func (s *Segmenter) Close() error { return nil }

// MaskFromImage converts a grayscale mask image to confidences at the
// target dimensions, resizing bilinearly when they differ.
func MaskFromImage(img image.Image, width, height int) *ports.Mask {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		scaled := image.NewGray(image.Rect(0, 0, width, height))
		xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)
		img = scaled
		b = scaled.Bounds()
	}

	mask := ports.NewMask(width, height)
	if gray, ok := img.(*image.Gray); ok {
		for i, v := range gray.Pix {
			mask.Data[i] = float32(v) / 255.0
		}
		return mask
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Luma of the mask pixel, scaled from 16-bit channels.
			v := (0.299*float32(r) + 0.587*float32(g) + 0.114*float32(bl)) / 65535.0
			mask.Set(x, y, v)
		}
	}
	return mask
}

var _ ports.Segmenter = (*Segmenter)(nil)
