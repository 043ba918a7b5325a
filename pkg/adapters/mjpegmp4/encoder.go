// Package mjpegmp4 implements a self-contained Motion-JPEG video codec
// in an MP4 container. Every frame is an independent JPEG sample, so
// the package needs no external encoder binary. It trades file size for
// portability and is the codec used in tests and environments without
// ffmpeg.
package mjpegmp4

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/filterbox/pkg/ports"
)

// ErrNotInitialized is returned when the encoder is used before Begin.
var ErrNotInitialized = errors.New("mjpegmp4: encoder not initialized")

const defaultQuality = 85

type encodedFrame struct {
	data        []byte
	timestampMs int
}

// Encoder implements ports.VideoEncoder with JPEG samples in a
// fragmented MP4.
type Encoder struct {
	width   int
	height  int
	fps     float64
	quality int
	frames  []encodedFrame
	begun   bool
}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Begin sets the stream geometry. Quality maps directly to JPEG quality.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("mjpegmp4: invalid stream geometry %dx%d@%.2f", width, height, fps)
	}
	e.width = width
	e.height = height
	e.fps = fps
	e.quality = opts.Quality
	if e.quality <= 0 || e.quality > 100 {
		e.quality = defaultQuality
	}
	e.frames = nil
	e.begun = true
	return nil
}

// EncodeFrame compresses one frame to JPEG and queues it as a sample.
func (e *Encoder) EncodeFrame(img image.Image, timestampMs int) error {
	if !e.begun {
		return ErrNotInitialized
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return fmt.Errorf("mjpegmp4: jpeg encode: %w", err)
	}
	e.frames = append(e.frames, encodedFrame{data: buf.Bytes(), timestampMs: timestampMs})
	return nil
}

// End muxes the queued samples into a fragmented MP4.
func (e *Encoder) End() ([]byte, error) {
	if !e.begun {
		return nil, ErrNotInitialized
	}
	e.begun = false
	if len(e.frames) == 0 {
		return nil, errors.New("mjpegmp4: no frames to mux")
	}

	timescale := uint32(e.fps * 1000)
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")

	trak := init.Moov.Trak
	sampleEntry := mp4.CreateVisualSampleEntryBox("jpeg", uint16(e.width), uint16(e.height), nil)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(sampleEntry)
	trak.Tkhd.Width = mp4.Fixed32(e.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(e.height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("mjpegmp4: create fragment: %w", err)
	}

	defaultDur := uint32(float64(timescale) / e.fps)
	for i, frame := range e.frames {
		dur := defaultDur
		if i < len(e.frames)-1 {
			next := e.frames[i+1].timestampMs
			if d := uint32(uint64(next-frame.timestampMs) * uint64(timescale) / 1000); d > 0 {
				dur = d
			}
		}
		decodeTime := uint64(frame.timestampMs) * uint64(timescale) / 1000

		// Every JPEG sample is independently decodable.
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: mp4.SyncSampleFlags,
				Size:  uint32(len(frame.data)),
				Dur:   dur,
			},
			DecodeTime: decodeTime,
			Data:       frame.data,
		})
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("mjpegmp4: encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("mjpegmp4: encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("mjpegmp4: encode fragment: %w", err)
	}
	return buf.Bytes(), nil
}

var _ ports.VideoEncoder = (*Encoder)(nil)
