// Package encode manages the per-filter encode sinks of a batch run.
//
// Each registered filter gets its own encoder; composited variants are
// appended in frame order and every sink is finalized into a playable
// container at the end of the run.
package encode

import (
	"errors"
	"fmt"
	"image"

	"github.com/user/filterbox/pkg/pipeline"
	"github.com/user/filterbox/pkg/ports"
)

// ErrEncodeFailed is returned when any sink fails. The batch is not complete
// and the cache key stays not-ready.
var ErrEncodeFailed = errors.New("encode: encoding failed")

// Sinks drives one encoder per filter id, in a fixed order.
type Sinks struct {
	order    []string
	encoders map[string]ports.VideoEncoder
	logger   ports.Logger
	fps      float64
}

// NewSinks creates one encoder per filter id via the factory.
func NewSinks(filterIDs []string, newEncoder func() ports.VideoEncoder, logger ports.Logger) *Sinks {
	encoders := make(map[string]ports.VideoEncoder, len(filterIDs))
	order := make([]string, len(filterIDs))
	copy(order, filterIDs)
	for _, id := range order {
		encoders[id] = newEncoder()
	}
	return &Sinks{
		order:    order,
		encoders: encoders,
		logger:   logger.WithComponent("encode"),
	}
}

// Begin initializes every sink with the source dimensions and frame rate.
func (s *Sinks) Begin(width, height int, input pipeline.EncodeInput) error {
	s.fps = input.FPS
	opts := ports.EncoderOptions{
		Bitrate: input.Bitrate,
		Quality: input.Quality,
	}
	for _, id := range s.order {
		if err := s.encoders[id].Begin(width, height, input.FPS, opts); err != nil {
			return fmt.Errorf("%w: begin %q: %v", ErrEncodeFailed, id, err)
		}
	}
	s.logger.Debug("Initialized %d encode sinks at %dx%d %.2ffps", len(s.order), width, height, input.FPS)
	return nil
}

// Append feeds one composited variant per filter, in sink order, for the
// frame at the given index.
func (s *Sinks) Append(variants []*image.RGBA, frameIndex int) error {
	if len(variants) != len(s.order) {
		return fmt.Errorf("%w: %d variants for %d sinks", ErrEncodeFailed, len(variants), len(s.order))
	}
	timestampMs := int(float64(frameIndex) * 1000.0 / s.fps)
	for i, id := range s.order {
		if err := s.encoders[id].EncodeFrame(variants[i], timestampMs); err != nil {
			return fmt.Errorf("%w: frame %d filter %q: %v", ErrEncodeFailed, frameIndex, id, err)
		}
	}
	return nil
}

// Finalize ends every sink and returns the finished container per filter id.
// Sinks are independent: a failure on one does not stop the others from
// finalizing, but any failure means the batch is incomplete.
func (s *Sinks) Finalize() (map[string]pipeline.EncodeResult, error) {
	results := make(map[string]pipeline.EncodeResult, len(s.order))
	var firstErr error
	for _, id := range s.order {
		data, err := s.encoders[id].End()
		if err != nil {
			s.logger.Error("Finalize failed for filter %q: %s", id, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: finalize %q: %v", ErrEncodeFailed, id, err)
			}
			continue
		}
		results[id] = pipeline.EncodeResult{
			FilterID: id,
			Data:     data,
			FileSize: int64(len(data)),
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// IDs returns the sink order.
func (s *Sinks) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}
