// Package web exposes the studio session over HTTP: a JSON API under /api
// and the embedded single-page UI at the root.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/kokoro-studio/internal/session"
)

//go:embed static/index.html
var staticFiles embed.FS

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves the studio UI and API for one session.
type Server struct {
	session *session.Session
	log     *logger.Logger
	addr    string
}

// NewServer binds a session to a listen address.
func NewServer(sess *session.Session, log *logger.Logger, addr string) *Server {
	return &Server{
		session: sess,
		log:     log,
		addr:    addr,
	}
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive the API without a listening socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/batch", s.handleBatch)
	mux.HandleFunc("POST /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/audio/{id}", s.handleAudio)
	mux.HandleFunc("GET /api/archive/{id}", s.handleArchive)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("POST /api/presets", s.handleSavePreset)
	mux.HandleFunc("DELETE /api/presets/{name}", s.handleDeletePreset)

	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	s.log.System("Studio listening on http://%s", s.addr)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	s.log.Info("Server shut down cleanly.")

	return nil
}

// statusFor maps a session error to the HTTP status the API reports.
func statusFor(err error) int {
	switch {
	case session.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrEntryNotFound),
		errors.Is(err, session.ErrArchiveNotFound),
		errors.Is(err, session.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyPresetName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
