// Package playback keeps the parallel variant streams of one session
// time- and state-aligned.
//
// Every filter variant of a video plays on its own media handle. One
// handle is active at a time and acts as the single source of truth for
// timestamp and play state; the others mirror it. Switching the visible
// variant only swaps which handle is active, so the change is
// imperceptible to the viewer.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/filterbox/pkg/ports"
)

// DefaultDriftThreshold is the timestamp divergence above which a
// non-active handle is snapped to the active clock. Corrections below
// it are skipped; constant micro-seeks cause visible stutter.
const DefaultDriftThreshold = 200 * time.Millisecond

var (
	ErrUnknownVariant = errors.New("playback: unknown variant")
	ErrNotLoaded      = errors.New("playback: session not loaded")
	ErrClosed         = errors.New("playback: session closed")
)

// State is the lifecycle state of a Synchronizer.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateSwitching
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StateSwitching:
		return "switching"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Variant binds a filter id to its media handle.
type Variant struct {
	FilterID string
	Handle   ports.MediaHandle
}

// Options tunes a Synchronizer.
type Options struct {
	// DriftThreshold overrides DefaultDriftThreshold when positive.
	DriftThreshold time.Duration
}

// Synchronizer is the playback state machine of one session. All methods
// are safe for concurrent use; correction passes are serialized, two
// never run at the same time.
type Synchronizer struct {
	order   []string
	handles map[string]ports.MediaHandle
	logger  ports.Logger
	drift   time.Duration

	mu     sync.Mutex
	state  State
	active string
}

// New creates an idle Synchronizer over the given variants. The first
// variant becomes the active handle once loaded.
func New(variants []Variant, logger ports.Logger, opts Options) (*Synchronizer, error) {
	if len(variants) == 0 {
		return nil, errors.New("playback: no variants")
	}
	drift := opts.DriftThreshold
	if drift <= 0 {
		drift = DefaultDriftThreshold
	}
	s := &Synchronizer{
		handles: make(map[string]ports.MediaHandle, len(variants)),
		logger:  logger.WithComponent("playback"),
		drift:   drift,
		state:   StateIdle,
	}
	for _, v := range variants {
		if _, dup := s.handles[v.FilterID]; dup {
			return nil, fmt.Errorf("playback: duplicate variant %q", v.FilterID)
		}
		s.order = append(s.order, v.FilterID)
		s.handles[v.FilterID] = v.Handle
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the filter id of the active handle, or "" before Load.
func (s *Synchronizer) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Variants returns the filter ids in registration order.
func (s *Synchronizer) Variants() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Load brings the session from Idle to Synced: every handle is loaded,
// autoplay is requested on all of them, and the first variant becomes
// active and visible. A handle that fails to load is fatal; a handle
// that refuses to autoplay is not, it catches up on the next correction
// pass the user triggers.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return ErrClosed
	case StateIdle:
	default:
		return fmt.Errorf("playback: load in state %s", s.state)
	}
	s.state = StateLoading

	for _, id := range s.order {
		if err := s.handles[id].Load(ctx); err != nil {
			s.state = StateIdle
			return fmt.Errorf("playback: load %q: %w", id, err)
		}
	}
	for _, id := range s.order {
		if err := s.handles[id].Play(ctx); err != nil {
			s.logger.Warn("Autoplay refused for %q: %s", id, err)
		}
	}

	s.active = s.order[0]
	for _, id := range s.order {
		s.handles[id].SetVisible(id == s.active)
		s.handles[id].SetMuted(id != s.active)
	}
	s.correct(ctx)
	s.state = StateSynced
	s.logger.Debug("Session synced with %d variants, %q active", len(s.order), s.active)
	return nil
}

// Select makes another variant the active one. No media is reloaded:
// only visibility, audibility and sync authority move to the new
// handle, whose clock and play state become ground truth.
func (s *Synchronizer) Select(ctx context.Context, filterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSynced(); err != nil {
		return err
	}
	next, ok := s.handles[filterID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, filterID)
	}
	if filterID == s.active {
		return nil
	}
	s.state = StateSwitching

	prev := s.handles[s.active]
	prev.SetVisible(false)
	prev.SetMuted(true)
	next.SetVisible(true)
	next.SetMuted(false)
	s.active = filterID

	s.correct(ctx)
	s.state = StateSynced
	s.logger.Debug("Switched active variant to %q", filterID)
	return nil
}

// Sync runs one correction pass against the active handle. It is the
// entry point for the active handle's periodic time events.
func (s *Synchronizer) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSynced(); err != nil {
		return err
	}
	s.correct(ctx)
	return nil
}

// Play resumes the active handle and mirrors the state to the others.
func (s *Synchronizer) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSynced(); err != nil {
		return err
	}
	if err := s.handles[s.active].Play(ctx); err != nil {
		return fmt.Errorf("playback: play %q: %w", s.active, err)
	}
	s.correct(ctx)
	return nil
}

// Pause pauses the active handle and mirrors the state to the others.
func (s *Synchronizer) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSynced(); err != nil {
		return err
	}
	if err := s.handles[s.active].Pause(); err != nil {
		return fmt.Errorf("playback: pause %q: %w", s.active, err)
	}
	s.correct(ctx)
	return nil
}

// Seek moves the active handle and snaps every other handle to it.
func (s *Synchronizer) Seek(ctx context.Context, t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSynced(); err != nil {
		return err
	}
	if err := s.handles[s.active].Seek(t); err != nil {
		return fmt.Errorf("playback: seek %q: %w", s.active, err)
	}
	s.correct(ctx)
	return nil
}

// CurrentTime reports the active handle's playhead.
func (s *Synchronizer) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return 0
	}
	return s.handles[s.active].CurrentTime()
}

// Paused reports the active handle's play state.
func (s *Synchronizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return true
	}
	return s.handles[s.active].Paused()
}

// Close pauses every handle and ends the session.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	for _, id := range s.order {
		if err := s.handles[id].Pause(); err != nil {
			s.logger.Warn("Pause on teardown failed for %q: %s", id, err)
		}
	}
	s.state = StateClosed
	return nil
}

func (s *Synchronizer) checkSynced() error {
	switch s.state {
	case StateSynced:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotLoaded
	}
}

// correct runs one correction pass: the active handle's timestamp and
// play state are mirrored onto every non-active handle. Timestamps are
// only forced when drift exceeds the threshold. Callers hold s.mu.
func (s *Synchronizer) correct(ctx context.Context) {
	active := s.handles[s.active]
	t := active.CurrentTime()
	paused := active.Paused()

	for _, id := range s.order {
		if id == s.active {
			continue
		}
		h := s.handles[id]

		drift := h.CurrentTime() - t
		if drift < 0 {
			drift = -drift
		}
		if drift > s.drift {
			if err := h.Seek(t); err != nil {
				s.logger.Warn("Drift correction seek failed for %q: %s", id, err)
			}
		}

		switch {
		case paused && !h.Paused():
			if err := h.Pause(); err != nil {
				s.logger.Warn("Pause mirror failed for %q: %s", id, err)
			}
		case !paused && h.Paused():
			if err := h.Play(ctx); err != nil {
				s.logger.Warn("Resume mirror failed for %q: %s", id, err)
			}
		}
	}
}
