package filesink

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/user/filterbox/pkg/mocks"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("debug")

func TestSink_Enabled(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveRunJSON(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	data := []byte(`{"key": "abc", "frames": 120}`)
	err := sink.SaveRunJSON(data)
	if err != nil {
		t.Fatalf("SaveRunJSON failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "run.json")
	saved, ok := fs.GetFile(expectedPath)
	if !ok {
		t.Fatalf("expected file to be saved at %s", expectedPath)
	}
	if string(saved) != string(data) {
		t.Errorf("expected %q, got %q", data, saved)
	}
}

func TestSink_SaveSourceFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	err := sink.SaveSourceFrame(7, img)
	if err != nil {
		t.Fatalf("SaveSourceFrame failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "frames", "source", "frame-0007.png")
	if _, ok := fs.GetFile(expectedPath); !ok {
		t.Errorf("expected file to be saved at %s", expectedPath)
	}
	if renderer.Encoded != 1 {
		t.Errorf("expected one encode call, got %d", renderer.Encoded)
	}
}

func TestSink_SaveMask(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewGray(image.Rect(0, 0, 10, 10))
	err := sink.SaveMask(0, img)
	if err != nil {
		t.Fatalf("SaveMask failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "frames", "mask", "frame-0000.png")
	if _, ok := fs.GetFile(expectedPath); !ok {
		t.Errorf("expected file to be saved at %s", expectedPath)
	}
}

func TestSink_SaveVariantFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	err := sink.SaveVariantFrame("grayscale", 12, img)
	if err != nil {
		t.Fatalf("SaveVariantFrame failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "frames", "grayscale", "frame-0012.png")
	if _, ok := fs.GetFile(expectedPath); !ok {
		t.Errorf("expected file to be saved at %s", expectedPath)
	}
}
