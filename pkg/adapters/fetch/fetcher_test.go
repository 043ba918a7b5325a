package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/filterbox/pkg/mocks"
)

func newFetcher(t *testing.T, opts Options) (*Fetcher, string) {
	t.Helper()
	uploadDir := t.TempDir()
	return New(uploadDir, mocks.NewLogger(), opts), uploadDir
}

func TestFetchLocalPath(t *testing.T) {
	f, _ := newFetcher(t, Options{})
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := f.Fetch(context.Background(), src, t.TempDir())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != src {
		t.Errorf("Fetch() = %s, want %s", got, src)
	}
}

func TestFetchLocalMissing(t *testing.T) {
	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), "/no/such/clip.mp4", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFetchLocalDirectory(t *testing.T) {
	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), t.TempDir(), t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound for a directory", err)
	}
}

func TestFetchUploadedVideo(t *testing.T) {
	f, uploadDir := newFetcher(t, Options{})
	stored := filepath.Join(uploadDir, "abc123.mov")
	if err := os.WriteFile(stored, []byte("uploaded"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := f.Fetch(context.Background(), "/uploaded-videos/abc123.mov", t.TempDir())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != stored {
		t.Errorf("Fetch() = %s, want %s", got, stored)
	}
}

func TestFetchUploadedVideoRejectsTraversal(t *testing.T) {
	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), "/uploaded-videos/../etc/passwd", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFetchDownloadsRemoteURL(t *testing.T) {
	payload := strings.Repeat("frame-data", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{})
	destDir := t.TempDir()

	got, err := f.Fetch(context.Background(), srv.URL+"/videos/source.webm", destDir)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if filepath.Dir(got) != destDir {
		t.Errorf("downloaded outside destDir: %s", got)
	}
	if filepath.Ext(got) != ".webm" {
		t.Errorf("extension = %s, want .webm", filepath.Ext(got))
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != payload {
		t.Errorf("downloaded %d bytes, want %d", len(data), len(payload))
	}
}

func TestFetchRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), srv.URL+"/gone.mp4", t.TempDir())
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
}

func TestFetchRemoteTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{MaxBytes: 1024})
	destDir := t.TempDir()
	_, err := f.Fetch(context.Background(), srv.URL+"/big.mp4", destDir)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed", err)
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("partial download left behind: %v", entries)
	}
}

func TestFetchPageURLWithoutYtDlp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>watch page</body></html>"))
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), srv.URL+"/watch?v=abc", t.TempDir())
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Fetch() error = %v, want ErrDownloadFailed for page URL", err)
	}
}

func TestIsMediaResponse(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"video/mp4", true},
		{"video/webm", true},
		{"application/octet-stream", true},
		{"", true},
		{"text/html; charset=utf-8", false},
		{"application/json", false},
	}
	for _, tc := range cases {
		resp := &http.Response{Header: http.Header{}}
		if tc.contentType != "" {
			resp.Header.Set("Content-Type", tc.contentType)
		}
		if got := isMediaResponse(resp); got != tc.want {
			t.Errorf("isMediaResponse(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestRemoteExtension(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/clip.mov", ".mov"},
		{"https://example.com/clip.mp4?token=x", ".mp4"},
		{"https://example.com/stream", ".mp4"},
		{"https://example.com/", ".mp4"},
	}
	for _, tc := range cases {
		if got := remoteExtension(tc.url); got != tc.want {
			t.Errorf("remoteExtension(%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}
