// Package server exposes the pipeline over HTTP: a generate endpoint, a
// server-sent event stream per session and the run history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/progress"
)

// Runner executes pipeline requests
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// RunStore reads recorded runs
type RunStore interface {
	List(ctx context.Context, sessionID string, limit int) ([]history.Run, error)
	Get(ctx context.Context, id string) (*history.Run, error)
}

// Config holds the server configuration
type Config struct {
	Addr     string             // listen address (default ":8080")
	Runner   Runner             // required
	Registry *progress.Registry // required
	History  RunStore           // optional; run endpoints answer 404 without it

	// RateLimit is generate requests per second; 0 disables limiting
	RateLimit float64
	RateBurst int

	// KeepAlive is the interval between SSE comment frames (default 15s)
	KeepAlive time.Duration

	Logger *zap.Logger
}

// Server is the HTTP front end
type Server struct {
	cfg     Config
	router  chi.Router
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a server
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("progress registry is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.With(s.rateLimit).Post("/generate", s.handleGenerate)
		r.Get("/progress/{sessionID}", s.handleProgress)
		r.Get("/runs", s.handleRunList)
		r.Get("/runs/{runID}", s.handleRunGet)
	})
	return r
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limited", "too many generate requests, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGenerate runs the pipeline synchronously. The run is detached from
// the request context so a disconnect does not abort it.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Mode() == pipeline.ModeGenerate && strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "description is required")
		return
	}
	for _, f := range req.ExistingFiles {
		if err := f.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}

	res := s.cfg.Runner.Run(context.WithoutCancel(r.Context()), req)
	status := http.StatusOK
	if res.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

type connectedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type progressEvent struct {
	Type string `json:"type"`
	progress.State
}

// handleProgress streams progress snapshots as server-sent events. The stream
// ends when the run completes, as soon as its session is cleaned up (which is
// how a failed run ends), or when the client goes away.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "response writer cannot flush")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, connectedEvent{Type: "connected", SessionID: sessionID}); err != nil {
		return
	}
	flusher.Flush()

	// Only the newest snapshot matters; a slow client skips intermediate ones.
	updates := make(chan progress.State, 1)
	ended := make(chan struct{})
	var endOnce sync.Once
	unsubscribe := s.cfg.Registry.SubscribeUntilEnd(sessionID, func(st progress.State) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}, func() {
		endOnce.Do(func() { close(ended) })
	})
	defer unsubscribe()

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	seen := false
	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-updates:
			seen = true
			if err := writeEvent(w, progressEvent{Type: "progress", State: st}); err != nil {
				return
			}
			flusher.Flush()
			if st.IsComplete {
				return
			}
		case <-ended:
			// the run is over; flush the final snapshot if it is still queued
			select {
			case st := <-updates:
				if err := writeEvent(w, progressEvent{Type: "progress", State: st}); err == nil {
					flusher.Flush()
				}
			default:
			}
			return
		case <-ticker.C:
			if _, live := s.cfg.Registry.Get(sessionID); seen && !live {
				return
			}
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusNotFound, "history disabled", "run history is not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid request", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.cfg.History.List(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusNotFound, "history disabled", "run history is not configured")
		return
	}
	run, err := s.cfg.History.Get(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, map[string]string{"error": label, "message": message})
}
