// Package fetch resolves video locators to local file paths. A locator
// may be an absolute or relative path on disk, an upload-store path
// such as /uploaded-videos/name.mp4, or an http(s) URL to download.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/filterbox/pkg/ports"
)

var (
	// ErrNotFound is returned when a local locator resolves to no file.
	ErrNotFound = errors.New("fetch: video not found")

	// ErrDownloadFailed is returned when a remote locator cannot be
	// retrieved.
	ErrDownloadFailed = errors.New("fetch: download failed")
)

const (
	uploadPrefix    = "/uploaded-videos/"
	defaultTimeout  = 5 * time.Minute
	defaultMaxBytes = 2 << 30 // 2 GiB
)

// Options tunes the fetcher.
type Options struct {
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client

	// YtDlpPath enables a yt-dlp fallback for URLs that are pages
	// rather than direct media files. Empty disables the fallback.
	YtDlpPath string
}

// Fetcher implements ports.Fetcher over the local filesystem, the
// upload store, and HTTP.
type Fetcher struct {
	uploadDir string
	client    *http.Client
	maxBytes  int64
	ytDlp     string
	logger    ports.Logger
}

// New creates a Fetcher resolving upload-store locators against
// uploadDir.
func New(uploadDir string, logger ports.Logger, opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		uploadDir: uploadDir,
		client:    client,
		maxBytes:  maxBytes,
		ytDlp:     opts.YtDlpPath,
		logger:    logger.WithComponent("fetch"),
	}
}

// Fetch resolves locator to a readable local path. Remote locators are
// downloaded into destDir; local ones are returned in place.
func (f *Fetcher) Fetch(ctx context.Context, locator, destDir string) (string, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return f.download(ctx, locator, destDir)
	case strings.HasPrefix(locator, uploadPrefix):
		return f.resolveUpload(locator)
	default:
		return f.resolveLocal(locator)
	}
}

func (f *Fetcher) resolveLocal(locator string) (string, error) {
	info, err := os.Stat(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, locator)
	}
	return locator, nil
}

func (f *Fetcher) resolveUpload(locator string) (string, error) {
	name := strings.TrimPrefix(locator, uploadPrefix)
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return f.resolveLocal(filepath.Join(f.uploadDir, name))
}

func (f *Fetcher) download(ctx context.Context, rawURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	f.logger.Info("Downloading %s", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d for %s", ErrDownloadFailed, resp.StatusCode, rawURL)
	}
	if !isMediaResponse(resp) {
		// Page URL (a video site, not the media file itself).
		return f.downloadViaYtDlp(ctx, rawURL, destDir)
	}

	destPath := filepath.Join(destDir, uuid.New().String()+remoteExtension(rawURL))
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	written, err := io.Copy(dest, io.LimitReader(resp.Body, f.maxBytes+1))
	closeErr := dest.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > f.maxBytes {
		err = fmt.Errorf("response exceeds %d bytes", f.maxBytes)
	}
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	f.logger.Debug("Downloaded %d bytes to %s", written, destPath)
	return destPath, nil
}

// isMediaResponse reports whether the response body looks like a media
// file rather than an HTML page.
func isMediaResponse(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/") ||
		ct == "application/octet-stream" || ct == "" {
		return true
	}
	return false
}

// downloadViaYtDlp extracts the media from a page URL with yt-dlp.
func (f *Fetcher) downloadViaYtDlp(ctx context.Context, rawURL, destDir string) (string, error) {
	if f.ytDlp == "" {
		return "", fmt.Errorf("%w: %s is not a direct media URL and no yt-dlp is configured", ErrDownloadFailed, rawURL)
	}

	destPath := filepath.Join(destDir, uuid.New().String()+".mp4")
	f.logger.Info("Extracting media from %s", rawURL)

	cmd := exec.CommandContext(ctx, f.ytDlp,
		"-f", "mp4",
		"--no-playlist",
		"-o", destPath,
		rawURL,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("%w: yt-dlp: %v: %s", ErrDownloadFailed, err, truncate(string(out), 200))
	}
	if _, err := os.Stat(destPath); err != nil {
		return "", fmt.Errorf("%w: yt-dlp produced no output for %s", ErrDownloadFailed, rawURL)
	}
	return destPath, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// remoteExtension extracts a file extension from the URL path, falling
// back to .mp4 when the path carries none.
func remoteExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(u.Path); ext != "" && len(ext) <= 6 {
		return ext
	}
	return ".mp4"
}

var _ ports.Fetcher = (*Fetcher)(nil)
