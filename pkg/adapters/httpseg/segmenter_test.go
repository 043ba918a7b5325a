package httpseg

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/filterbox/pkg/mocks"
)

func grayMask(width, height int, fill func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	return img
}

func TestSegmentDecodesGrayscaleMask(t *testing.T) {
	// Left half subject (255), right half background (0), same size
	// as the frame so no resizing happens.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %s, want image/jpeg", ct)
		}
		if _, err := jpeg.Decode(r.Body); err != nil {
			t.Errorf("request body is not a jpeg: %v", err)
		}
		mask := grayMask(8, 4, func(x, y int) uint8 {
			if x < 4 {
				return 255
			}
			return 0
		})
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, mask)
	}))
	defer srv.Close()

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	frame := image.NewRGBA(image.Rect(0, 0, 8, 4))

	mask, err := seg.Segment(context.Background(), frame)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if mask.Width != 8 || mask.Height != 4 {
		t.Fatalf("mask dimensions = %dx%d, want 8x4", mask.Width, mask.Height)
	}
	if got := mask.At(0, 0); got != 1.0 {
		t.Errorf("mask.At(0,0) = %v, want 1.0", got)
	}
	if got := mask.At(7, 3); got != 0.0 {
		t.Errorf("mask.At(7,3) = %v, want 0.0", got)
	}
}

func TestSegmentResizesModelResolutionMask(t *testing.T) {
	// Model works at 4x4 but the frame is 16x16; the mask must come
	// back aligned with the frame.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mask := grayMask(4, 4, func(x, y int) uint8 { return 128 })
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, mask)
	}))
	defer srv.Close()

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	frame := image.NewRGBA(image.Rect(0, 0, 16, 16))

	mask, err := seg.Segment(context.Background(), frame)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if mask.Width != 16 || mask.Height != 16 {
		t.Fatalf("mask dimensions = %dx%d, want 16x16", mask.Width, mask.Height)
	}
	if got := mask.At(8, 8); math.Abs(float64(got)-128.0/255.0) > 0.02 {
		t.Errorf("mask.At(8,8) = %v, want ~0.502", got)
	}
}

func TestSegmentServiceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	_, err := seg.Segment(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("Segment() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestSegmentConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	_, err := seg.Segment(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("Segment() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestSegmentBadMaskPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a png"))
	}))
	defer srv.Close()

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	_, err := seg.Segment(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err == nil {
		t.Fatal("Segment() expected error for invalid mask payload")
	}
	if errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("decode failure should not be ErrServiceUnavailable: %v", err)
	}
}

func TestSegmentContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	seg := New(srv.URL, mocks.NewLogger(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seg.Segment(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("Segment() error = %v, want ErrServiceUnavailable wrapping cancellation", err)
	}
}

func TestMaskFromImageNonGray(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	img.Set(1, 1, color.Black)

	mask := MaskFromImage(img, 2, 2)
	if got := mask.At(0, 0); math.Abs(float64(got)-1.0) > 0.01 {
		t.Errorf("white pixel = %v, want ~1.0", got)
	}
	if got := mask.At(1, 1); got != 0 {
		t.Errorf("black pixel = %v, want 0", got)
	}
}
