// Package ffmpegcodec implements the video decode, encode and audio
// remux ports on top of ffmpeg and ffprobe subprocesses. Frames cross
// the process boundary as raw RGBA over pipes, so no media library is
// linked into the binary.
package ffmpegcodec

import (
	"os"
	"os/exec"
	"runtime"
)

// Paths locates the external binaries. Zero values mean "search".
type Paths struct {
	FFmpeg  string
	FFprobe string
}

// findBinary searches PATH and common install locations.
func findBinary(name string) (string, error) {
	execName := name
	if runtime.GOOS == "windows" {
		execName = name + ".exe"
	}

	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\` + execName,
			`C:\Program Files\ffmpeg\bin\` + execName,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
			"/snap/bin/" + name,
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if name == "ffprobe" {
		return "", ErrFFprobeNotFound
	}
	return "", ErrFFmpegNotFound
}

func (p Paths) ffmpeg() (string, error) {
	if p.FFmpeg != "" {
		return p.FFmpeg, nil
	}
	return findBinary("ffmpeg")
}

func (p Paths) ffprobe() (string, error) {
	if p.FFprobe != "" {
		return p.FFprobe, nil
	}
	return findBinary("ffprobe")
}
