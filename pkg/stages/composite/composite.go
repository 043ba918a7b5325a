// Package composite implements the mask-gated frame compositor.
//
// For one frame and one mask it produces one output frame per filter:
// subject pixels copy the source unchanged, background pixels take the
// filter's transformed value. The per-pixel classification is computed
// exactly once per frame and shared across all filters.
package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/user/filterbox/pkg/filters"
	"github.com/user/filterbox/pkg/pipeline"
	"github.com/user/filterbox/pkg/ports"
)

// ErrDimensionMismatch is returned when a mask's dimensions differ from its
// frame's. This is a contract violation between segmenter and decoder and
// aborts the run.
var ErrDimensionMismatch = errors.New("composite: frame and mask dimensions differ")

// Stage composes filter variants for one frame at a time.
type Stage struct {
	filters    []filters.Filter
	logger     ports.Logger
	numWorkers int
}

// NewStage creates a compositor for the given filter set.
func NewStage(fs []filters.Filter, logger ports.Logger, numWorkers int) *Stage {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Stage{
		filters:    fs,
		logger:     logger.WithComponent("composite"),
		numWorkers: numWorkers,
	}
}

// Filters returns the filter set this stage composes, in output order.
func (s *Stage) Filters() []filters.Filter {
	return s.filters
}

// Execute produces one output frame per filter, in filter order.
func (s *Stage) Execute(ctx context.Context, input pipeline.CompositeInput) (pipeline.CompositeResult, error) {
	variants, err := Composite(ctx, input.Frame, input.Mask, input.Threshold, s.filters, s.numWorkers)
	if err != nil {
		return pipeline.CompositeResult{}, err
	}
	return pipeline.CompositeResult{Variants: variants}, nil
}

var _ pipeline.Stage[pipeline.CompositeInput, pipeline.CompositeResult] = (*Stage)(nil)

// indexedVariant holds a variant with its filter index for ordering.
type indexedVariant struct {
	index int
	img   *image.RGBA
}

// Composite applies every filter to frame, gated by mask and threshold.
// A pixel is subject iff mask value > threshold; equality is background.
func Composite(ctx context.Context, frame *image.RGBA, mask *ports.Mask, threshold float32, fs []filters.Filter, numWorkers int) ([]*image.RGBA, error) {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if mask.Width != width || mask.Height != height {
		return nil, fmt.Errorf("%w: frame %dx%d, mask %dx%d",
			ErrDimensionMismatch, width, height, mask.Width, mask.Height)
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(fs) {
		numWorkers = len(fs)
	}
	if len(fs) == 0 {
		return []*image.RGBA{}, nil
	}

	// Classify each pixel once; every filter reuses this.
	subject := make([]bool, width*height)
	for i, v := range mask.Data {
		subject[i] = v > threshold
	}

	jobs := make(chan int, len(fs))
	results := make(chan indexedVariant, len(fs))
	errChan := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					select {
					case errChan <- ctx.Err():
					default:
					}
					return
				default:
				}
				transformed := fs[idx].Transform(frame)
				results <- indexedVariant{index: idx, img: gate(frame, transformed, subject)}
			}
		}()
	}

	for i := range fs {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
		close(errChan)
	}()

	variants := make([]*image.RGBA, len(fs))
	for v := range results {
		variants[v.index] = v.img
	}
	if err := <-errChan; err != nil {
		return nil, err
	}
	for i, v := range variants {
		if v == nil {
			return nil, fmt.Errorf("composite: filter %q produced no output", fs[i].ID)
		}
	}
	return variants, nil
}

// gate selects, per pixel, the source value for subject pixels and the
// transformed value for background pixels.
func gate(frame, transformed *image.RGBA, subject []bool) *image.RGBA {
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, transformed.Pix)
	for i, isSubject := range subject {
		if isSubject {
			p := i * 4
			out.Pix[p] = frame.Pix[p]
			out.Pix[p+1] = frame.Pix[p+1]
			out.Pix[p+2] = frame.Pix[p+2]
			out.Pix[p+3] = frame.Pix[p+3]
		}
	}
	return out
}
