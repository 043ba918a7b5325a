package mjpegmp4

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/filterbox/pkg/ports"
)

// ErrNoVideoTrack is returned when the container has no video track.
var ErrNoVideoTrack = errors.New("mjpegmp4: no video track found")

// Decoder implements ports.VideoDecoder for the fragmented MP4 files
// this package writes.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open parses the container and extracts every JPEG sample up front.
// Per-frame decompression happens lazily in Next.
func (d *Decoder) Open(ctx context.Context, path string) (ports.FrameReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mjpegmp4: open %s: %w", path, err)
	}
	defer f.Close()

	mp4File, err := mp4.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("mjpegmp4: decode container: %w", err)
	}
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return nil, ErrNoVideoTrack
	}

	var (
		trackID   uint32
		timescale uint32 = 1000
		width     int
		height    int
		trex      *mp4.TrexBox
	)
	for _, trak := range mp4File.Init.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		trackID = trak.Tkhd.TrackID
		width = int(trak.Tkhd.Width >> 16)
		height = int(trak.Tkhd.Height >> 16)
		if trak.Mdia.Mdhd != nil {
			timescale = trak.Mdia.Mdhd.Timescale
		}
		break
	}
	if trackID == 0 {
		return nil, ErrNoVideoTrack
	}
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var samples [][]byte
	var firstDur uint32
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}
				full, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("mjpegmp4: read samples: %w", err)
				}
				for _, sample := range full {
					if firstDur == 0 {
						firstDur = sample.Dur
					}
					samples = append(samples, sample.Data)
				}
			}
		}
	}

	var fps float64
	if firstDur > 0 {
		fps = float64(timescale) / float64(firstDur)
	}
	meta := ports.VideoMeta{
		Width:       width,
		Height:      height,
		FPS:         fps,
		TotalFrames: len(samples),
	}
	return &jpegFrameReader{meta: meta, samples: samples}, nil
}

type jpegFrameReader struct {
	meta    ports.VideoMeta
	samples [][]byte
	next    int
}

func (r *jpegFrameReader) Meta() ports.VideoMeta { return r.meta }

func (r *jpegFrameReader) Next() (*image.RGBA, error) {
	if r.next >= len(r.samples) {
		return nil, io.EOF
	}
	img, err := jpeg.Decode(bytes.NewReader(r.samples[r.next]))
	if err != nil {
		return nil, fmt.Errorf("mjpegmp4: decode frame %d: %w", r.next, err)
	}
	r.next++

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func (r *jpegFrameReader) Close() error { return nil }

var _ ports.VideoDecoder = (*Decoder)(nil)
