package ffmpegcodec

import "errors"

var (
	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("ffmpeg executable not found")

	// ErrFFprobeNotFound is returned when no ffprobe binary can be located.
	ErrFFprobeNotFound = errors.New("ffprobe executable not found")

	// ErrNotInitialized is returned when the encoder is used before Begin.
	ErrNotInitialized = errors.New("encoder not initialized")

	// ErrNoVideoStream is returned when the source has no video track.
	ErrNoVideoStream = errors.New("no video stream in source")
)
