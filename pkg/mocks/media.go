package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/filterbox/pkg/ports"
)

// MediaHandle is a mock implementation of ports.MediaHandle with an
// internally tracked playhead and state.
type MediaHandle struct {
	mu sync.Mutex

	Name    string
	Time    time.Duration
	IsPaused bool
	Visible bool
	Muted   bool

	LoadErr error
	PlayErr error

	LoadCalls  int
	PlayCalls  int
	PauseCalls int
	SeekCalls  int
}

// NewMediaHandle creates a paused, hidden, muted handle at t=0.
func NewMediaHandle(id string) *MediaHandle {
	return &MediaHandle{Name: id, IsPaused: true, Muted: true}
}

func (m *MediaHandle) ID() string { return m.Name }

func (m *MediaHandle) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	return m.LoadErr
}

func (m *MediaHandle) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayCalls++
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.IsPaused = false
	return nil
}

func (m *MediaHandle) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PauseCalls++
	m.IsPaused = true
	return nil
}

func (m *MediaHandle) Seek(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeekCalls++
	m.Time = t
	return nil
}

func (m *MediaHandle) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Time
}

func (m *MediaHandle) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsPaused
}

func (m *MediaHandle) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Visible = visible
}

func (m *MediaHandle) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Muted = muted
}

var _ ports.MediaHandle = (*MediaHandle)(nil)
