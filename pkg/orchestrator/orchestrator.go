// Package orchestrator coordinates the batch filter pipeline.
//
// One run decodes the source video a single time and produces every
// requested filter variant from that pass: each frame is segmented once,
// composited once per filter, and appended to a per-filter encode sink.
// Finished variants are stored through the cache manager so later
// requests for any filter of the same source are served without work.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/user/filterbox/pkg/cache"
	"github.com/user/filterbox/pkg/filters"
	"github.com/user/filterbox/pkg/pipeline"
	"github.com/user/filterbox/pkg/ports"
	"github.com/user/filterbox/pkg/stages/composite"
	"github.com/user/filterbox/pkg/stages/encode"
)

var (
	// ErrDecodeFailed means the source could not be decoded. The whole
	// batch is aborted; no variant is stored.
	ErrDecodeFailed = errors.New("orchestrator: decode failed")

	// ErrProcessingFailed means compositing, encoding or storing failed
	// after a successful decode start.
	ErrProcessingFailed = errors.New("orchestrator: processing failed")
)

// Config contains the tunables of a batch run.
type Config struct {
	Threshold float32 // mask value above which a pixel belongs to the subject
	Quality   int     // encoder quality (codec dependent)
	Bitrate   int     // target bitrate in kbps, 0 lets the encoder decide
	Workers   int     // parallel filter workers per frame
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Threshold: pipeline.DefaultThreshold,
		Quality:   85,
		Bitrate:   0,
		Workers:   4,
	}
}

// RunResult summarizes one batch run.
type RunResult struct {
	Key        string
	FrameCount int
	Meta       ports.VideoMeta
	Artifacts  map[string]cache.Artifact
	Reused     bool // true when every variant was already cached
}

// Pipeline wires the ports of the batch pipeline together.
type Pipeline struct {
	decoder    ports.VideoDecoder
	segmenter  ports.Segmenter
	newEncoder func() ports.VideoEncoder
	remuxer    ports.AudioRemuxer
	registry   *filters.Registry
	cache      *cache.Manager
	sink       ports.DebugSink
	logger     ports.Logger
	config     Config
}

// New creates a new Pipeline. remuxer may be nil when audio passthrough
// is not available.
func New(
	decoder ports.VideoDecoder,
	segmenter ports.Segmenter,
	newEncoder func() ports.VideoEncoder,
	remuxer ports.AudioRemuxer,
	registry *filters.Registry,
	cacheMgr *cache.Manager,
	sink ports.DebugSink,
	logger ports.Logger,
	config Config,
) *Pipeline {
	return &Pipeline{
		decoder:    decoder,
		segmenter:  segmenter,
		newEncoder: newEncoder,
		remuxer:    remuxer,
		registry:   registry,
		cache:      cacheMgr,
		sink:       sink,
		logger:     logger.WithComponent("orchestrator"),
		config:     config,
	}
}

// ProcessAll produces every filter variant of the source in one decode
// pass and stores them under the given cache key. When all variants are
// already cached it returns them without touching the source. When
// another run for the same key is in flight it waits for that run and
// serves its output.
func (p *Pipeline) ProcessAll(ctx context.Context, sourcePath, key string, filterIDs []string) (RunResult, error) {
	if len(filterIDs) == 0 {
		filterIDs = p.registry.IDs()
	}
	fs, err := p.registry.Select(filterIDs)
	if err != nil {
		return RunResult{}, err
	}

	for {
		if artifacts, ok := p.collectCached(ctx, key, filterIDs); ok {
			p.logger.Debug("All %d variants of %s already cached", len(filterIDs), key)
			return RunResult{
				Key:        key,
				Meta:       artifacts[filterIDs[0]].Meta,
				FrameCount: artifacts[filterIDs[0]].Meta.TotalFrames,
				Artifacts:  artifacts,
				Reused:     true,
			}, nil
		}

		lease, err := p.cache.Begin(key)
		if errors.Is(err, cache.ErrInFlight) {
			p.logger.Debug("Waiting for in-flight run of %s", key)
			if waitErr := p.cache.Wait(ctx, key); waitErr != nil {
				if ctx.Err() != nil {
					return RunResult{}, ctx.Err()
				}
				// The other run failed; take over on the next pass.
			}
			continue
		}
		if err != nil {
			return RunResult{}, err
		}

		result, runErr := p.run(ctx, sourcePath, key, filterIDs, fs)
		lease.Complete(runErr)
		return result, runErr
	}
}

// run performs the actual decode, segment, composite, encode and store
// sequence. The caller holds the processing lease for the key.
func (p *Pipeline) run(ctx context.Context, sourcePath, key string, filterIDs []string, fs []filters.Filter) (RunResult, error) {
	p.logger.Info("Processing %s into %d variants", sourcePath, len(filterIDs))

	reader, err := p.decoder.Open(ctx, sourcePath)
	if err != nil {
		p.logger.Error("Failed to open %s: %s", sourcePath, err)
		return RunResult{}, fmt.Errorf("%w: open %s: %v", ErrDecodeFailed, sourcePath, err)
	}
	defer reader.Close()

	meta := reader.Meta()
	sinks := encode.NewSinks(filterIDs, p.newEncoder, p.logger)
	if err := sinks.Begin(meta.Width, meta.Height, pipeline.EncodeInput{
		FPS:     meta.FPS,
		Quality: p.config.Quality,
		Bitrate: p.config.Bitrate,
	}); err != nil {
		return RunResult{}, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	frameCount := 0
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Error("Decode failed at frame %d: %s", frameCount, err)
			return RunResult{}, fmt.Errorf("%w: frame %d: %v", ErrDecodeFailed, frameCount, err)
		}

		mask, err := p.segmenter.Segment(ctx, frame)
		if err != nil {
			// A frame without a usable mask is treated as all background
			// so the batch keeps going.
			p.logger.Warn("Segmentation failed at frame %d, using empty mask: %s", frameCount, err)
			b := frame.Bounds()
			mask = ports.NewMask(b.Dx(), b.Dy())
		}

		variants, err := composite.Composite(ctx, frame, mask, p.config.Threshold, fs, p.config.Workers)
		if err != nil {
			return RunResult{}, fmt.Errorf("%w: composite frame %d: %v", ErrProcessingFailed, frameCount, err)
		}
		if err := sinks.Append(variants, frameCount); err != nil {
			return RunResult{}, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
		}

		if p.sink.Enabled() {
			p.sink.SaveSourceFrame(frameCount, frame)
			p.sink.SaveMask(frameCount, maskImage(mask))
			for i, id := range filterIDs {
				p.sink.SaveVariantFrame(id, frameCount, variants[i])
			}
		}

		frameCount++
		if frameCount%50 == 0 {
			p.logger.Debug("Processed %d frames", frameCount)
		}
	}

	results, err := sinks.Finalize()
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	meta.TotalFrames = frameCount

	// Variants of one source become visible together: every sink has
	// finalized before the first artifact is stored.
	artifacts := make(map[string]cache.Artifact, len(filterIDs))
	for _, id := range filterIDs {
		data := results[id].Data
		if p.remuxer != nil && meta.HasAudio {
			remuxed, err := p.remuxer.Remux(ctx, data, sourcePath)
			if err != nil {
				p.logger.Warn("Audio remux failed for %q, storing silent variant: %s", id, err)
			} else {
				data = remuxed
			}
		}
		artifact, err := p.cache.Put(ctx, key, id, data, meta)
		if err != nil {
			return RunResult{}, fmt.Errorf("%w: store %q: %v", ErrProcessingFailed, id, err)
		}
		artifacts[id] = artifact
	}

	if p.sink.Enabled() {
		if data, err := json.MarshalIndent(runSummary(key, frameCount, artifacts), "", "  "); err == nil {
			p.sink.SaveRunJSON(data)
		}
	}

	p.logger.Info("Stored %d variants of %s (%d frames)", len(artifacts), key, frameCount)
	return RunResult{
		Key:        key,
		FrameCount: frameCount,
		Meta:       meta,
		Artifacts:  artifacts,
	}, nil
}

// collectCached returns the cached artifacts for every filter id, or
// false when at least one variant is missing.
func (p *Pipeline) collectCached(ctx context.Context, key string, filterIDs []string) (map[string]cache.Artifact, bool) {
	artifacts := make(map[string]cache.Artifact, len(filterIDs))
	for _, id := range filterIDs {
		artifact, err := p.cache.Get(ctx, key, id)
		if err != nil {
			return nil, false
		}
		artifacts[id] = artifact
	}
	return artifacts, true
}

type summaryEntry struct {
	FilterID string `json:"filterId"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

type summary struct {
	Key        string         `json:"key"`
	FrameCount int            `json:"frameCount"`
	Variants   []summaryEntry `json:"variants"`
}

func runSummary(key string, frameCount int, artifacts map[string]cache.Artifact) summary {
	s := summary{Key: key, FrameCount: frameCount}
	for _, a := range artifacts {
		s.Variants = append(s.Variants, summaryEntry{FilterID: a.FilterID, Path: a.Path, Size: a.Size})
	}
	return s
}

// maskImage renders a mask as an 8-bit grayscale image for debug output.
func maskImage(m *ports.Mask) image.Image {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Data {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		img.Pix[i] = uint8(v * 255)
	}
	return img
}
