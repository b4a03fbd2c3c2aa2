// Package server wires configuration, engines, and handlers into one HTTP
// surface and owns the drain sequence used during graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/voxhire/voxhire/pkg/core/llm"
	"github.com/voxhire/voxhire/pkg/core/voice/stt"
	"github.com/voxhire/voxhire/pkg/core/voice/tts"
	"github.com/voxhire/voxhire/pkg/gateway/config"
	"github.com/voxhire/voxhire/pkg/gateway/handlers"
	"github.com/voxhire/voxhire/pkg/gateway/interview/sessions"
	"github.com/voxhire/voxhire/pkg/gateway/lifecycle"
	"github.com/voxhire/voxhire/pkg/gateway/mw"
	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Registry
	uploads   *uploads.Store

	transcriber stt.Provider
	synthesizer tts.Provider
	completer   llm.Completer
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	completer, err := llm.NewCompleter(ctx, llm.Options{
		Provider:          cfg.LLMProvider,
		Model:             cfg.LLMModel,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		GeminiAPIKey:      cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("server: init completion engine: %w", err)
	}

	synthesizer, err := tts.NewPolly(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("server: init speech synthesis: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),

		lifecycle: &lifecycle.Lifecycle{},
		sessions:  sessions.NewRegistry(),
		uploads:   uploads.NewStore(cfg.UploadRetention),

		transcriber: stt.NewDeepgram(cfg.DeepgramAPIKey),
		synthesizer: synthesizer,
		completer:   completer,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Lifecycle: s.lifecycle, Sessions: s.sessions})

	s.mux.Handle("/upload-cv", handlers.UploadHandler{
		Config:  s.cfg,
		Logger:  s.logger,
		Uploads: s.uploads,
	})
	s.mux.Handle("/ws/", handlers.InterviewHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
		Uploads:   s.uploads,
		STT:       s.transcriber,
		TTS:       s.synthesizer,
		Completer: s.completer,
	})

	if s.cfg.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// RunUploadSweeper expires stale CV uploads until ctx ends.
func (s *Server) RunUploadSweeper(ctx context.Context) {
	s.uploads.Run(ctx, s.cfg.UploadSweepInterval)
}

// SetDraining flips readiness and refuses new interview connections.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

// NotifySessions sends a status message to every live interview.
func (s *Server) NotifySessions(message string) int {
	return s.sessions.NotifyAll(message)
}

// DrainSessions waits for live interviews to finish, then cancels stragglers.
// It reports whether every session ended within the grace period.
func (s *Server) DrainSessions(ctx context.Context) bool {
	if s.sessions.Wait(ctx) {
		return true
	}
	canceled := s.sessions.CancelAll()
	s.logger.Warn("canceled sessions that outlived the grace period", "count", canceled)
	return false
}
