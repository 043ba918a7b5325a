package ffmpegcodec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/user/filterbox/pkg/ports"
)

// Remuxer implements ports.AudioRemuxer: it copies the audio track of
// the original source into a filtered video without re-encoding either
// stream.
type Remuxer struct {
	paths Paths
}

// NewRemuxer creates a Remuxer using the given binary paths.
func NewRemuxer(paths Paths) *Remuxer {
	return &Remuxer{paths: paths}
}

// remuxArgs builds the stream-copy argument list.
func remuxArgs(videoPath, sourcePath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", sourcePath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}

// Remux merges the source's audio into the encoded video bytes.
func (r *Remuxer) Remux(ctx context.Context, video []byte, sourcePath string) ([]byte, error) {
	ffmpegPath, err := r.paths.ffmpeg()
	if err != nil {
		return nil, err
	}

	videoFile, err := os.CreateTemp("", "filterbox_remux_in_*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	videoPath := videoFile.Name()
	defer os.Remove(videoPath)
	if _, err := videoFile.Write(video); err != nil {
		videoFile.Close()
		return nil, fmt.Errorf("write temp video: %w", err)
	}
	videoFile.Close()

	outFile, err := os.CreateTemp("", "filterbox_remux_out_*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	outputPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outputPath)

	cmd := exec.CommandContext(ctx, ffmpegPath, remuxArgs(videoPath, sourcePath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg remux failed: %w\nstderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read remuxed output: %w", err)
	}
	return data, nil
}

var _ ports.AudioRemuxer = (*Remuxer)(nil)
