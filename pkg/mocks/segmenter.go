package mocks

import (
	"context"
	"image"

	"github.com/user/filterbox/pkg/ports"
)

// Segmenter is a mock implementation of ports.Segmenter.
type Segmenter struct {
	SegmentFunc func(ctx context.Context, frame image.Image) (*ports.Mask, error)

	Calls int
}

func (m *Segmenter) Segment(ctx context.Context, frame image.Image) (*ports.Mask, error) {
	m.Calls++
	if m.SegmentFunc != nil {
		return m.SegmentFunc(ctx, frame)
	}
	bounds := frame.Bounds()
	return ports.NewMask(bounds.Dx(), bounds.Dy()), nil
}

func (m *Segmenter) Close() error { return nil }

var _ ports.Segmenter = (*Segmenter)(nil)

// Fetcher is a mock implementation of ports.Fetcher.
type Fetcher struct {
	FetchFunc func(ctx context.Context, locator, destDir string) (string, error)

	Fetched []string
}

func (m *Fetcher) Fetch(ctx context.Context, locator, destDir string) (string, error) {
	m.Fetched = append(m.Fetched, locator)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, locator, destDir)
	}
	return locator, nil
}

var _ ports.Fetcher = (*Fetcher)(nil)
