// Package cache manages processed video artifacts, addressed by
// (cache key, filter id).
//
// The cache key is a one-way digest of the source locator. Artifact bytes
// are stored one file per pair under the cache directory; metadata lives in
// a SQLite index so it is not recomputed on every read. An entry is either
// absent, in-progress (invisible to readers), or fully ready: bytes are
// written to a temp file and renamed into place before the index row flips
// to ready.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/user/filterbox/pkg/ports"
)

var (
	// ErrMiss is returned by Get when no ready entry exists for the pair.
	ErrMiss = errors.New("cache: miss")

	// ErrInFlight is returned by Begin when a run for the key is already
	// active. Callers should Wait for it instead of starting another.
	ErrInFlight = errors.New("cache: processing already in flight")

	// ErrLocked is returned when another process holds the cache directory.
	ErrLocked = errors.New("cache: directory locked by another process")
)

// DefaultLeaseTimeout bounds how long an in-flight run may hold a key.
// A run that dies without completing loses its lease after this, so a key
// can never stay permanently in-flight.
const DefaultLeaseTimeout = 30 * time.Minute

// Artifact is one ready cache entry.
type Artifact struct {
	Key       string
	FilterID  string
	Path      string
	Meta      ports.VideoMeta
	Size      int64
	CreatedAt time.Time
}

// Manager owns the cache directory, the metadata index, and the per-key
// in-flight leases.
type Manager struct {
	dir          string
	store        *store
	fileLock     *flock.Flock
	logger       ports.Logger
	leaseTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]*Lease
}

// Options configures a Manager.
type Options struct {
	// LeaseTimeout overrides DefaultLeaseTimeout when positive.
	LeaseTimeout time.Duration
}

// Open initializes the cache at dir, creating it if needed. The directory is
// guarded with a file lock so two processes never write the same artifacts.
func Open(dir string, logger ports.Logger, opts Options) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	st, err := openStore(filepath.Join(dir, "index.db"))
	if err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}

	leaseTimeout := opts.LeaseTimeout
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}

	return &Manager{
		dir:          dir,
		store:        st,
		fileLock:     fileLock,
		logger:       logger.WithComponent("cache"),
		leaseTimeout: leaseTimeout,
		inflight:     make(map[string]*Lease),
	}, nil
}

// Close releases the metadata index and the directory lock.
func (m *Manager) Close() error {
	err := m.store.close()
	if unlockErr := m.fileLock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// Derive maps a video identity deterministically to its cache key.
// The same locator always yields the same key; distinct locators collide
// only with cryptographic improbability.
func Derive(videoIdentity string) string {
	sum := sha256.Sum256([]byte(videoIdentity))
	return hex.EncodeToString(sum[:])
}

// Has reports whether a ready entry exists for the pair.
func (m *Manager) Has(ctx context.Context, key, filterID string) bool {
	_, err := m.store.get(ctx, key, filterID)
	return err == nil
}

// Get returns the ready artifact for the pair, or ErrMiss.
func (m *Manager) Get(ctx context.Context, key, filterID string) (Artifact, error) {
	return m.store.get(ctx, key, filterID)
}

// Put stores artifact bytes for the pair and marks the entry ready. The
// write is atomic: a temp file is renamed into place, then the index row is
// flipped, so a reader never observes a partial artifact.
func (m *Manager) Put(ctx context.Context, key, filterID string, data []byte, meta ports.VideoMeta) (Artifact, error) {
	finalPath := m.artifactPath(key, filterID)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return Artifact{}, fmt.Errorf("finalize artifact: %w", err)
	}

	artifact := Artifact{
		Key:       key,
		FilterID:  filterID,
		Path:      finalPath,
		Meta:      meta,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	if err := m.store.putReady(ctx, artifact); err != nil {
		return Artifact{}, err
	}
	m.logger.Debug("Cached %s/%s (%d bytes)", shortKey(key), filterID, artifact.Size)
	return artifact, nil
}

// List returns all ready artifacts.
func (m *Manager) List(ctx context.Context) ([]Artifact, error) {
	return m.store.list(ctx)
}

// Dir returns the cache directory path.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) artifactPath(key, filterID string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s.mp4", key, filterID))
}

// Lease represents exclusive processing rights for one cache key.
type Lease struct {
	key     string
	started time.Time
	done    chan struct{}
	err     error
	manager *Manager
}

// Begin claims the in-flight lease for key. If a live lease exists the call
// returns ErrInFlight; an expired lease is displaced so a dead run cannot
// wedge the key.
func (m *Manager) Begin(key string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.inflight[key]; ok {
		if time.Since(existing.started) < m.leaseTimeout {
			return nil, ErrInFlight
		}
		m.logger.Warn("Displacing expired processing lease for %s", shortKey(key))
		existing.err = errors.New("cache: processing lease expired")
		close(existing.done)
		delete(m.inflight, key)
	}

	lease := &Lease{
		key:     key,
		started: time.Now(),
		done:    make(chan struct{}),
		manager: m,
	}
	m.inflight[key] = lease
	return lease, nil
}

// Complete releases the lease and wakes all waiters with err (nil on
// success). Completing twice is a no-op.
func (l *Lease) Complete(err error) {
	m := l.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[l.key] != l {
		return
	}
	l.err = err
	close(l.done)
	delete(m.inflight, l.key)
}

// Wait blocks until any in-flight run for key finishes, returning the run's
// error. It returns nil immediately when nothing is in flight.
func (m *Manager) Wait(ctx context.Context, key string) error {
	m.mu.Lock()
	lease, ok := m.inflight[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-lease.done:
		return lease.err
	}
}

// Processing reports whether a run for key is currently in flight.
func (m *Manager) Processing(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[key]
	return ok
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
