package ffmpegcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/user/filterbox/pkg/ports"
)

// Encoder implements ports.VideoEncoder with an ffmpeg subprocess.
// Frames are piped in as raw RGBA and come out as an H.264 MP4.
type Encoder struct {
	paths Paths

	mu         sync.Mutex
	width      int
	height     int
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stderr     bytes.Buffer
	tempPath   string
	frameCount int
	closed     bool
}

// NewEncoder creates an Encoder using the given binary paths.
func NewEncoder(paths Paths) *Encoder {
	return &Encoder{paths: paths}
}

// encodeArgs builds the ffmpeg argument list for one encode session.
func encodeArgs(width, height int, fps float64, opts ports.EncoderOptions, outputPath string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.2f", fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
	}

	// Quality maps 0-100 onto x264's CRF range, higher quality meaning
	// lower CRF.
	if opts.Quality > 0 && opts.Quality <= 100 {
		crf := (100 - opts.Quality) * 51 / 100
		args = append(args, "-crf", fmt.Sprintf("%d", crf))
	} else {
		args = append(args, "-crf", "23")
	}
	if opts.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.Bitrate))
	}

	return append(args,
		"-profile:v", "baseline",
		"-level", "3.1",
		"-movflags", "+faststart",
		outputPath,
	)
}

// Begin starts the ffmpeg process for a stream of the given geometry.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ffmpegPath, err := e.paths.ffmpeg()
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp("", "filterbox_encode_*.mp4")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	e.tempPath = tmpFile.Name()
	tmpFile.Close()

	e.width = width
	e.height = height
	e.frameCount = 0
	e.closed = false
	e.stderr.Reset()

	e.cmd = exec.Command(ffmpegPath, encodeArgs(width, height, fps, opts, e.tempPath)...)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		os.Remove(e.tempPath)
		return fmt.Errorf("stdin pipe: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		os.Remove(e.tempPath)
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	return nil
}

// EncodeFrame pushes one frame into the stream. The timestamp is
// implied by the frame rate given to Begin; ffmpeg assigns it.
func (e *Encoder) EncodeFrame(img image.Image, timestampMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil || e.closed {
		return ErrNotInitialized
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Dx() != e.width || rgba.Bounds().Dy() != e.height {
		converted := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
		draw.Draw(converted, converted.Bounds(), img, img.Bounds().Min, draw.Src)
		rgba = converted
	}

	if _, err := e.stdin.Write(rgba.Pix); err != nil {
		return fmt.Errorf("write frame %d: %w", e.frameCount, err)
	}
	e.frameCount++
	return nil
}

// End closes the stream, waits for ffmpeg and returns the MP4 bytes.
func (e *Encoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil || e.closed {
		return nil, ErrNotInitialized
	}
	e.stdin.Close()
	e.stdin = nil
	e.closed = true

	if err := e.cmd.Wait(); err != nil {
		os.Remove(e.tempPath)
		return nil, fmt.Errorf("ffmpeg encoding failed: %w\nstderr: %s", err, e.stderr.String())
	}

	data, err := os.ReadFile(e.tempPath)
	os.Remove(e.tempPath)
	e.tempPath = ""
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return data, nil
}

var _ ports.VideoEncoder = (*Encoder)(nil)
