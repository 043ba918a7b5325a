// Package server exposes the HTTP surface of the filter pipeline:
// processed-variant delivery, uploads, previews and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/filterbox/pkg/cache"
	"github.com/user/filterbox/pkg/filters"
	"github.com/user/filterbox/pkg/orchestrator"
	"github.com/user/filterbox/pkg/ports"
)

// ErrAcquisitionFailed means the source locator could not be turned
// into a readable local file.
var ErrAcquisitionFailed = errors.New("server: acquisition failed")

// Error kinds reported in the JSON error envelope.
const (
	KindUnknownFilter     = "UnknownFilter"
	KindAcquisitionFailed = "AcquisitionFailed"
	KindProcessingFailed  = "ProcessingFailed"
)

// allowedExtensions is the upload whitelist.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
}

// Processor runs the batch pipeline for one source video.
type Processor interface {
	ProcessAll(ctx context.Context, sourcePath, key string, filterIDs []string) (orchestrator.RunResult, error)
}

// Previewer renders a thumbnail strip of a processed variant.
type Previewer interface {
	Strip(ctx context.Context, videoPath string) ([]byte, error)
}

// Options tunes the HTTP server.
type Options struct {
	Bind        string
	UploadDir   string
	TempDir     string
	MaxUploadMB int64 // upload size cap, defaults to 512
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Cache     *cache.Manager
	Registry  *filters.Registry
	Processor Processor
	Fetcher   ports.Fetcher
	Previewer Previewer
	Logger    ports.Logger
}

// run tracks one in-flight acquire-and-process job so concurrent
// requests for the same key share it instead of spawning duplicates.
type run struct {
	done chan struct{}
	err  error
}

// Server is the HTTP front of the system.
type Server struct {
	opts   Options
	deps   Deps
	logger ports.Logger

	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener

	mu   sync.Mutex
	runs map[string]*run
}

// New creates a Server. The upload directory is created if missing.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Cache == nil || deps.Registry == nil || deps.Processor == nil {
		return nil, errors.New("server: cache, registry and processor are required")
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 512
	}
	if opts.UploadDir != "" {
		if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("server: create upload dir: %w", err)
		}
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: deps.Logger.WithComponent("server"),
		mux:    http.NewServeMux(),
		runs:   make(map[string]*run),
	}
	s.mux.HandleFunc("/hello-world", s.handleHello)
	s.mux.HandleFunc("/filters", s.handleFilters)
	s.mux.HandleFunc("/get-processed-video", s.handleGetProcessedVideo)
	s.mux.HandleFunc("/upload-video", s.handleUpload)
	s.mux.HandleFunc("/uploaded-videos/", s.handleUploadedVideo)
	s.mux.HandleFunc("/preview", s.handlePreview)

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured bind address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.Bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Serve failed: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Listening on %s", listener.Addr())
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"filters": s.deps.Registry.IDs()})
}

// handleGetProcessedVideo serves the requested filter variant, running
// the batch pipeline first on a cache miss. Processing happens on a
// detached worker; the request either waits for the key to become
// ready or, with wait=0, is told to poll.
func (s *Server) handleGetProcessedVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	query := r.URL.Query()
	locator := strings.TrimSpace(query.Get("video_url"))
	if locator == "" {
		s.writeError(w, http.StatusBadRequest, "", "video_url is required")
		return
	}
	filterID := query.Get("filter")
	if filterID == "" {
		filterID = filters.None
	}
	if !s.deps.Registry.Has(filterID) {
		s.writeError(w, http.StatusBadRequest, KindUnknownFilter, fmt.Sprintf("unknown filter %q", filterID))
		return
	}

	key := cache.Derive(locator)
	if artifact, err := s.deps.Cache.Get(r.Context(), key, filterID); err == nil {
		http.ServeFile(w, r, artifact.Path)
		return
	}

	job := s.startRun(locator, key)
	if query.Get("wait") == "0" {
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing", "key": key})
		return
	}

	select {
	case <-job.done:
	case <-r.Context().Done():
		// The client went away; the run finishes on its own so a retry
		// hits the cache.
		return
	}
	if job.err != nil {
		s.writeError(w, http.StatusInternalServerError, classify(job.err), job.err.Error())
		return
	}
	artifact, err := s.deps.Cache.Get(r.Context(), key, filterID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, KindProcessingFailed, "variant missing after processing")
		return
	}
	http.ServeFile(w, r, artifact.Path)
}

// startRun returns the in-flight job for the key, starting one when
// none exists. Runs use a detached context and always complete.
func (s *Server) startRun(locator, key string) *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.runs[key]; ok {
		return job
	}
	job := &run{done: make(chan struct{})}
	s.runs[key] = job

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.runs, key)
			s.mu.Unlock()
			close(job.done)
		}()
		ctx := context.Background()

		sourcePath := locator
		if s.deps.Fetcher != nil {
			path, err := s.deps.Fetcher.Fetch(ctx, locator, s.opts.TempDir)
			if err != nil {
				s.logger.Error("Acquisition failed for %s: %s", locator, err)
				job.err = fmt.Errorf("%w: %s: %v", ErrAcquisitionFailed, locator, err)
				return
			}
			sourcePath = path
		}

		if _, err := s.deps.Processor.ProcessAll(ctx, sourcePath, key, nil); err != nil {
			s.logger.Error("Processing failed for %s: %s", shorten(key), err)
			job.err = err
		}
	}()
	return job
}

// handleUpload accepts a multipart video upload and returns a locator
// usable as video_url.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if s.opts.UploadDir == "" {
		s.writeError(w, http.StatusNotFound, "", "uploads disabled")
		return
	}
	if err := r.ParseMultipartForm(s.opts.MaxUploadMB << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "", "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "", "video field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		s.writeError(w, http.StatusBadRequest, "", fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(s.opts.UploadDir, name))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "", "failed to store upload")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		s.writeError(w, http.StatusInternalServerError, "", "failed to store upload")
		return
	}

	s.logger.Info("Stored upload %s (%d bytes)", name, header.Size)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"filename":  name,
		"video_url": "/uploaded-videos/" + name,
	})
}

func (s *Server) handleUploadedVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/uploaded-videos/")
	if name == "" || name != filepath.Base(name) {
		s.writeError(w, http.StatusNotFound, "", "not found")
		return
	}
	path := filepath.Join(s.opts.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "", "not found")
		return
	}
	http.ServeFile(w, r, path)
}

// handlePreview renders a thumbnail strip of an already-processed
// variant. It never triggers processing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if s.deps.Previewer == nil {
		s.writeError(w, http.StatusNotFound, "", "previews disabled")
		return
	}
	query := r.URL.Query()
	locator := strings.TrimSpace(query.Get("video_url"))
	if locator == "" {
		s.writeError(w, http.StatusBadRequest, "", "video_url is required")
		return
	}
	filterID := query.Get("filter")
	if filterID == "" {
		filterID = filters.None
	}
	if !s.deps.Registry.Has(filterID) {
		s.writeError(w, http.StatusBadRequest, KindUnknownFilter, fmt.Sprintf("unknown filter %q", filterID))
		return
	}

	artifact, err := s.deps.Cache.Get(r.Context(), cache.Derive(locator), filterID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "", "variant not processed yet")
		return
	}
	strip, err := s.deps.Previewer.Strip(r.Context(), artifact.Path)
	if err != nil {
		s.logger.Error("Preview failed for %s: %s", artifact.Path, err)
		s.writeError(w, http.StatusInternalServerError, "", "preview generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(strip)
}

func classify(err error) string {
	if errors.Is(err, ErrAcquisitionFailed) {
		return KindAcquisitionFailed
	}
	return KindProcessingFailed
}

func shorten(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %s", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	body := map[string]string{"error": message}
	if kind != "" {
		body["kind"] = kind
	}
	s.writeJSON(w, status, body)
}
