package ffmpegcodec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/user/filterbox/pkg/ports"
)

// Decoder implements ports.VideoDecoder by probing the source with
// ffprobe and streaming raw RGBA frames out of an ffmpeg subprocess.
type Decoder struct {
	paths Paths
}

// NewDecoder creates a Decoder using the given binary paths.
func NewDecoder(paths Paths) *Decoder {
	return &Decoder{paths: paths}
}

// probeOutput mirrors the ffprobe JSON fields we consume.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

// parseRational turns ffprobe's "num/den" frame rate into a float.
func parseRational(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

// parseProbe extracts stream metadata from ffprobe JSON output.
func parseProbe(data []byte) (ports.VideoMeta, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return ports.VideoMeta{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var meta ports.VideoMeta
	found := false
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if found {
				continue
			}
			found = true
			meta.Width = stream.Width
			meta.Height = stream.Height
			meta.FPS = parseRational(stream.AvgFrameRate)
			if meta.FPS == 0 {
				meta.FPS = parseRational(stream.RFrameRate)
			}
			if n, err := strconv.Atoi(stream.NbFrames); err == nil {
				meta.TotalFrames = n
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if !found {
		return ports.VideoMeta{}, ErrNoVideoStream
	}

	// Containers without per-stream frame counts fall back to duration.
	if meta.TotalFrames == 0 && meta.FPS > 0 {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.TotalFrames = int(math.Round(d * meta.FPS))
		}
	}
	return meta, nil
}

// Open probes the source and starts a raw RGBA frame stream.
func (d *Decoder) Open(ctx context.Context, path string) (ports.FrameReader, error) {
	ffprobePath, err := d.paths.ffprobe()
	if err != nil {
		return nil, err
	}
	ffmpegPath, err := d.paths.ffmpeg()
	if err != nil {
		return nil, err
	}

	probeCmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	probeData, err := probeCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	meta, err := parseProbe(probeData)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &rawFrameReader{
		meta:   meta,
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
	}, nil
}

// rawFrameReader reads fixed-size RGBA frames off the ffmpeg pipe.
type rawFrameReader struct {
	meta   ports.VideoMeta
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	index  int
	done   bool
}

func (r *rawFrameReader) Meta() ports.VideoMeta { return r.meta }

func (r *rawFrameReader) Next() (*image.RGBA, error) {
	if r.done {
		return nil, io.EOF
	}
	frame := image.NewRGBA(image.Rect(0, 0, r.meta.Width, r.meta.Height))
	_, err := io.ReadFull(r.stdout, frame.Pix)
	if err == io.EOF {
		r.done = true
		if waitErr := r.cmd.Wait(); waitErr != nil {
			return nil, fmt.Errorf("ffmpeg decode failed: %w\nstderr: %s", waitErr, r.stderr.String())
		}
		return nil, io.EOF
	}
	if err != nil {
		r.done = true
		r.cmd.Wait()
		return nil, fmt.Errorf("read frame %d: %w\nstderr: %s", r.index, err, r.stderr.String())
	}
	r.index++
	return frame, nil
}

func (r *rawFrameReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	r.stdout.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	return nil
}

var _ ports.VideoDecoder = (*Decoder)(nil)
