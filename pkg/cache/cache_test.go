package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/user/filterbox/pkg/mocks"
	"github.com/user/filterbox/pkg/ports"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(t.TempDir(), mocks.NewLogger(), Options{})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func testMeta() ports.VideoMeta {
	return ports.VideoMeta{Width: 640, Height: 480, FPS: 30, TotalFrames: 90, HasAudio: true}
}

func TestDerive_Deterministic(t *testing.T) {
	a := Derive("https://example.com/video.mp4")
	b := Derive("https://example.com/video.mp4")
	if a != b {
		t.Errorf("same locator produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestDerive_DistinctLocators(t *testing.T) {
	locators := []string{
		"https://example.com/a.mp4",
		"https://example.com/b.mp4",
		"https://example.com/a.mp4?x=1",
		"file:///tmp/a.mp4",
	}
	seen := make(map[string]string)
	for _, loc := range locators {
		key := Derive(loc)
		if prev, ok := seen[key]; ok {
			t.Errorf("collision: %q and %q both derive %s", prev, loc, key)
		}
		seen[key] = loc
	}
}

func TestManager_PutGet(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	key := Derive("test-video")

	if m.Has(ctx, key, "grayscale") {
		t.Error("fresh cache should miss")
	}
	if _, err := m.Get(ctx, key, "grayscale"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}

	data := []byte("fake mp4 payload")
	artifact, err := m.Put(ctx, key, "grayscale", data, testMeta())
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := m.Get(ctx, key, "grayscale")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got.Path != artifact.Path {
		t.Errorf("path mismatch: %s vs %s", got.Path, artifact.Path)
	}
	if got.Meta != testMeta() {
		t.Errorf("metadata not persisted: %+v", got.Meta)
	}
	if got.Size != int64(len(data)) {
		t.Errorf("size: expected %d, got %d", len(data), got.Size)
	}

	onDisk, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatalf("read artifact file: %v", err)
	}
	if string(onDisk) != string(data) {
		t.Error("artifact bytes differ from what was put")
	}
}

func TestManager_EntriesIndependentPerFilter(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	key := Derive("multi")

	if _, err := m.Put(ctx, key, "none", []byte("a"), testMeta()); err != nil {
		t.Fatal(err)
	}
	if m.Has(ctx, key, "sepia") {
		t.Error("putting one filter must not make another filter ready")
	}
}

func TestManager_MetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := mocks.NewLogger()

	m, err := Open(dir, logger, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	key := Derive("persist")
	if _, err := m.Put(context.Background(), key, "rio", []byte("xyz"), testMeta()); err != nil {
		t.Fatal(err)
	}
	m.Close()

	reopened, err := Open(dir, logger, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), key, "rio")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Meta.FPS != 30 || got.Meta.TotalFrames != 90 {
		t.Errorf("metadata lost across reopen: %+v", got.Meta)
	}
}

func TestManager_BeginBlocksSecondRun(t *testing.T) {
	m := testManager(t)
	key := Derive("inflight")

	lease, err := m.Begin(key)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := m.Begin(key); !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
	if !m.Processing(key) {
		t.Error("key should be processing")
	}

	lease.Complete(nil)
	if m.Processing(key) {
		t.Error("key should be released after Complete")
	}
	if _, err := m.Begin(key); err != nil {
		t.Errorf("begin after complete: %v", err)
	}
}

func TestManager_WaitSeesRunError(t *testing.T) {
	m := testManager(t)
	key := Derive("waited")

	lease, err := m.Begin(key)
	if err != nil {
		t.Fatal(err)
	}

	runErr := errors.New("decode exploded")
	waitResult := make(chan error, 1)
	go func() {
		waitResult <- m.Wait(context.Background(), key)
	}()

	// Give the waiter a moment to park on the lease.
	time.Sleep(10 * time.Millisecond)
	lease.Complete(runErr)

	select {
	case err := <-waitResult:
		if !errors.Is(err, runErr) {
			t.Errorf("expected run error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
}

func TestManager_WaitNoRun(t *testing.T) {
	m := testManager(t)
	if err := m.Wait(context.Background(), Derive("idle")); err != nil {
		t.Errorf("wait with no run should return nil, got %v", err)
	}
}

func TestManager_ExpiredLeaseDisplaced(t *testing.T) {
	m, err := Open(t.TempDir(), mocks.NewLogger(), Options{LeaseTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	key := Derive("stale")
	if _, err := m.Begin(key); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	// The dead run's lease has expired; a new run may claim the key.
	if _, err := m.Begin(key); err != nil {
		t.Errorf("expected expired lease to be displaced, got %v", err)
	}
}

func TestManager_List(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	for _, filterID := range []string{"none", "grayscale"} {
		if _, err := m.Put(ctx, Derive("v"), filterID, []byte("d"), testMeta()); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}
