package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"

	"github.com/user/filterbox/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
// By default, End returns a JSON summary of everything encoded, so tests can
// verify encoded content without a real codec.
type VideoEncoder struct {
	BeginFunc       func(width, height int, fps float64, opts ports.EncoderOptions) error
	EncodeFrameFunc func(img image.Image, timestampMs int) error
	EndFunc         func() ([]byte, error)

	// Recorded calls for verification
	BeginCalled bool
	Width       int
	Height      int
	FPS         float64
	Frames      []EncodedFrame
	EndCalled   bool
}

// EncodedFrame records a call to EncodeFrame.
type EncodedFrame struct {
	TimestampMs int
	Pix         []byte
}

func (m *VideoEncoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	m.BeginCalled = true
	m.Width, m.Height, m.FPS = width, height, fps
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) EncodeFrame(img image.Image, timestampMs int) error {
	frame := EncodedFrame{TimestampMs: timestampMs}
	if rgba, ok := img.(*image.RGBA); ok {
		frame.Pix = append([]byte(nil), rgba.Pix...)
	}
	m.Frames = append(m.Frames, frame)
	if m.EncodeFrameFunc != nil {
		return m.EncodeFrameFunc(img, timestampMs)
	}
	return nil
}

func (m *VideoEncoder) End() ([]byte, error) {
	m.EndCalled = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	summary := struct {
		Width  int
		Height int
		FPS    float64
		Count  int
	}{m.Width, m.Height, m.FPS, len(m.Frames)}
	return json.Marshal(summary)
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)

// VideoDecoder is a mock implementation of ports.VideoDecoder that serves a
// fixed frame sequence.
type VideoDecoder struct {
	MetaValue ports.VideoMeta
	Frames    []*image.RGBA
	OpenFunc  func(ctx context.Context, path string) (ports.FrameReader, error)

	// FailAt makes Next fail at the given frame index (-1 disables).
	FailAt int

	OpenedPaths []string
}

// NewVideoDecoder creates a decoder serving the given frames.
func NewVideoDecoder(meta ports.VideoMeta, frames []*image.RGBA) *VideoDecoder {
	return &VideoDecoder{MetaValue: meta, Frames: frames, FailAt: -1}
}

func (m *VideoDecoder) Open(ctx context.Context, path string) (ports.FrameReader, error) {
	m.OpenedPaths = append(m.OpenedPaths, path)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, path)
	}
	return &frameReader{meta: m.MetaValue, frames: m.Frames, failAt: m.FailAt}, nil
}

var _ ports.VideoDecoder = (*VideoDecoder)(nil)

type frameReader struct {
	meta   ports.VideoMeta
	frames []*image.RGBA
	next   int
	failAt int
}

func (r *frameReader) Meta() ports.VideoMeta { return r.meta }

func (r *frameReader) Next() (*image.RGBA, error) {
	if r.failAt >= 0 && r.next == r.failAt {
		return nil, fmt.Errorf("decode frame %d: corrupt data", r.next)
	}
	if r.next >= len(r.frames) {
		return nil, io.EOF
	}
	f := r.frames[r.next]
	r.next++
	return f, nil
}

func (r *frameReader) Close() error { return nil }
