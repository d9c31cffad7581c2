// Package api serves the local status endpoints of a running relay.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/radmon-relay/internal/acquisition"
	"github.com/banshee-data/radmon-relay/internal/controller"
	"github.com/banshee-data/radmon-relay/internal/httputil"
	"github.com/banshee-data/radmon-relay/internal/monitoring"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
	"github.com/banshee-data/radmon-relay/internal/version"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ShutdownTimeout bounds the graceful shutdown in Serve.
const ShutdownTimeout = time.Second

// StatusSource is implemented by *acquisition.Loop.
type StatusSource interface {
	Status() acquisition.Status
}

// UploadSource is implemented by *controller.Controller.
type UploadSource interface {
	LastUpload() *controller.UploadResult
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version     string                   `json:"version"`
	Uptime      string                   `json:"uptime"`
	Acquisition acquisition.Status       `json:"acquisition"`
	LastUpload  *controller.UploadResult `json:"last_upload,omitempty"`
}

type Server struct {
	loop    StatusSource
	uploads UploadSource
	clock   timeutil.Clock
	started time.Time
}

func NewServer(loop StatusSource, uploads UploadSource, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		loop:    loop,
		uploads: uploads,
		clock:   clock,
		started: clock.Now(),
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	s.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		Version:     version.Version,
		Uptime:      s.clock.Now().Sub(s.started).Truncate(time.Second).String(),
		Acquisition: s.loop.Status(),
		LastUpload:  s.uploads.LastUpload(),
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

// AttachAdminRoutes adds the relay's entries to the tsweb debug page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Version", version.Version)
	debug.KVFunc("Session", func() any { return s.loop.Status().Session })
	debug.KVFunc("Protocol", func() any { return s.loop.Status().Protocol })
	debug.KVFunc("State", func() any { return s.loop.Status().State })
	debug.KVFunc("Buffered samples", func() any { return s.loop.Status().Buffered })
	debug.KVFunc("Last upload", func() any {
		last := s.uploads.LastUpload()
		if last == nil {
			return "none"
		}
		if last.Error != "" {
			return fmt.Sprintf("%s failed: %s", last.At.Format(time.DateTime), last.Error)
		}
		return fmt.Sprintf("%s %d CPM", last.At.Format(time.DateTime), last.Sample.CPM)
	})
	debug.URL("/api/status", "Status JSON")
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(s.ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("status server listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("status server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("status server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
