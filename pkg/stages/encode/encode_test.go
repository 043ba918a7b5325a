package encode

import (
	"errors"
	"image"
	"testing"

	"github.com/user/filterbox/pkg/mocks"
	"github.com/user/filterbox/pkg/pipeline"
	"github.com/user/filterbox/pkg/ports"
)

func solidFrame(w, h int, r uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+3] = 255
	}
	return img
}

func TestSinksEncodeAllVariants(t *testing.T) {
	var created []*mocks.VideoEncoder
	sinks := NewSinks([]string{"none", "grayscale"}, func() ports.VideoEncoder {
		enc := &mocks.VideoEncoder{}
		created = append(created, enc)
		return enc
	}, mocks.NewLogger())

	if err := sinks.Begin(4, 2, pipeline.EncodeInput{Quality: 85, FPS: 10}); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		variants := []*image.RGBA{solidFrame(4, 2, 255), solidFrame(4, 2, 0)}
		if err := sinks.Append(variants, i); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	results, err := sinks.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("expected 2 encoders, got %d", len(created))
	}
	for _, enc := range created {
		if enc.Width != 4 || enc.Height != 2 || enc.FPS != 10 {
			t.Errorf("encoder got %dx%d %.1ffps, want 4x2 10fps", enc.Width, enc.Height, enc.FPS)
		}
		if len(enc.Frames) != 3 {
			t.Errorf("encoder got %d frames, want 3", len(enc.Frames))
		}
	}
	// Timestamps follow the frame index at the source frame rate.
	wantTs := []int{0, 100, 200}
	for i, f := range created[0].Frames {
		if f.TimestampMs != wantTs[i] {
			t.Errorf("frame %d timestamp = %d, want %d", i, f.TimestampMs, wantTs[i])
		}
	}

	for _, id := range []string{"none", "grayscale"} {
		res, ok := results[id]
		if !ok {
			t.Fatalf("missing result for %q", id)
		}
		if res.FilterID != id {
			t.Errorf("result filter id = %q, want %q", res.FilterID, id)
		}
		if res.FileSize != int64(len(res.Data)) || res.FileSize == 0 {
			t.Errorf("result size = %d for %d bytes", res.FileSize, len(res.Data))
		}
	}
}

func TestSinksAppendVariantCountMismatch(t *testing.T) {
	sinks := NewSinks([]string{"none", "grayscale"}, func() ports.VideoEncoder {
		return &mocks.VideoEncoder{}
	}, mocks.NewLogger())
	if err := sinks.Begin(4, 2, pipeline.EncodeInput{FPS: 10}); err != nil {
		t.Fatal(err)
	}

	err := sinks.Append([]*image.RGBA{solidFrame(4, 2, 0)}, 0)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("Append() error = %v, want ErrEncodeFailed", err)
	}
}

func TestSinksFinalizeContinuesAfterFailure(t *testing.T) {
	var created []*mocks.VideoEncoder
	sinks := NewSinks([]string{"none", "grayscale", "sepia"}, func() ports.VideoEncoder {
		enc := &mocks.VideoEncoder{}
		created = append(created, enc)
		return enc
	}, mocks.NewLogger())
	if err := sinks.Begin(4, 2, pipeline.EncodeInput{FPS: 10}); err != nil {
		t.Fatal(err)
	}
	created[1].EndFunc = func() ([]byte, error) {
		return nil, errors.New("muxer exploded")
	}

	_, err := sinks.Finalize()
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("Finalize() error = %v, want ErrEncodeFailed", err)
	}
	// The failure on one sink must not stop the others from being closed.
	for i, enc := range created {
		if !enc.EndCalled {
			t.Errorf("encoder %d was not finalized", i)
		}
	}
}

func TestSinksBeginFailureStopsRun(t *testing.T) {
	sinks := NewSinks([]string{"none"}, func() ports.VideoEncoder {
		return &mocks.VideoEncoder{
			BeginFunc: func(width, height int, fps float64, opts ports.EncoderOptions) error {
				return errors.New("no codec")
			},
		}
	}, mocks.NewLogger())

	err := sinks.Begin(4, 2, pipeline.EncodeInput{FPS: 10})
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("Begin() error = %v, want ErrEncodeFailed", err)
	}
}

func TestSinksIDsPreserveOrder(t *testing.T) {
	ids := []string{"sepia", "none", "grayscale"}
	sinks := NewSinks(ids, func() ports.VideoEncoder {
		return &mocks.VideoEncoder{}
	}, mocks.NewLogger())

	got := sinks.IDs()
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("IDs() = %v, want %v", got, ids)
		}
	}
}
