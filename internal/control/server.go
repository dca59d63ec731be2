// Package control exposes the background worker over a loopback HTTP
// channel so the interactive client can ask it to reload or report status.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JustADataConstruct/TermRSS/internal/scheduler"
)

// DefaultAddr is the control address used when none is configured.
const DefaultAddr = "127.0.0.1:8089"

// ErrAlreadyRunning is returned by TryListen when the address is taken.
var ErrAlreadyRunning = errors.New("background updater already running")

// TryListen binds the control address. If it is already in use we assume
// another worker owns it.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
	}
	return ln, nil
}

// Worker is the part of the scheduler the control channel drives.
type Worker interface {
	Reload()
	Status() scheduler.Status
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	PID       int        `json:"pid"`
	Instance  string     `json:"instance"`
	Interval  string     `json:"interval"`
	LastSweep *time.Time `json:"last_sweep"`
	Sweeps    int        `json:"sweeps"`
}

// Server serves the control endpoints.
type Server struct {
	worker   Worker
	pid      int
	instance string
	router   chi.Router
	log      *slog.Logger
}

// NewServer creates a Server for worker.
func NewServer(worker Worker, log *slog.Logger) *Server {
	s := &Server{
		worker:   worker,
		pid:      os.Getpid(),
		instance: uuid.NewString(),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/reload", s.handleReload)
	r.Get("/status", s.handleStatus)

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve control channel: %w", err)
	case <-ctx.Done():
	}

	downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(downCtx); err != nil {
		return fmt.Errorf("shutdown control channel: %w", err)
	}
	return nil
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.log.DebugContext(r.Context(), "control: reload")
	s.worker.Reload()
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.worker.Status()
	resp := StatusResponse{
		PID:      s.pid,
		Instance: s.instance,
		Interval: st.Interval.String(),
		Sweeps:   st.Sweeps,
	}
	if !st.LastSweep.IsZero() {
		t := st.LastSweep
		resp.LastSweep = &t
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
