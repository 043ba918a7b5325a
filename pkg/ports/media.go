package ports

import (
	"context"
	"time"
)

// MediaHandle abstracts one playable media element on the client.
// The playback synchronizer drives N handles, one per filter variant, and
// keeps them time- and state-aligned.
type MediaHandle interface {
	// ID identifies the handle (the filter id of the variant it plays).
	ID() string

	// Load prepares the media for playback.
	Load(ctx context.Context) error

	// Play starts or resumes playback. Autoplay restrictions may make this
	// fail; callers are expected to tolerate individual failures.
	Play(ctx context.Context) error

	// Pause halts playback.
	Pause() error

	// Seek moves the playhead to t.
	Seek(t time.Duration) error

	// CurrentTime reports the playhead position.
	CurrentTime() time.Duration

	// Paused reports whether playback is halted.
	Paused() bool

	// SetVisible toggles whether this handle's video is shown.
	SetVisible(visible bool)

	// SetMuted toggles whether this handle's audio is heard.
	SetMuted(muted bool)
}
