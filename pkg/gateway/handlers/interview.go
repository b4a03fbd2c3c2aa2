package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxhire/voxhire/pkg/core/llm"
	"github.com/voxhire/voxhire/pkg/core/voice/stt"
	"github.com/voxhire/voxhire/pkg/core/voice/tts"
	"github.com/voxhire/voxhire/pkg/gateway/config"
	"github.com/voxhire/voxhire/pkg/gateway/interview/session"
	"github.com/voxhire/voxhire/pkg/gateway/interview/sessions"
	"github.com/voxhire/voxhire/pkg/gateway/lifecycle"
	"github.com/voxhire/voxhire/pkg/gateway/mw"
	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

// InterviewHandler upgrades /ws/{client_id} requests and runs one interview
// session per connection.
type InterviewHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Registry
	Uploads   *uploads.Store

	STT       stt.Provider
	TTS       tts.Provider
	Completer llm.Completer
}

func (h InterviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, reqID, apiError{Code: "method_not_allowed", Message: "method not allowed"})
		return
	}
	if h.Lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, reqID, apiError{Code: "draining", Message: "server is draining"})
		return
	}
	if !mw.OriginAllowed(h.Config, r.Header.Get("Origin")) {
		writeJSONError(w, http.StatusForbidden, reqID, apiError{Code: "forbidden", Message: "origin is not allowed", Param: "Origin"})
		return
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// One-time candidate context. A missing or already-consumed token starts
	// a generic interview rather than refusing the connection.
	var profile *uploads.CandidateProfile
	var cvText string
	if token := strings.TrimSpace(r.URL.Query().Get("session_id")); token != "" {
		if rec, ok := h.Uploads.Consume(token); ok {
			p := rec.Profile
			profile = &p
			cvText = rec.CVText
		} else if h.Logger != nil {
			h.Logger.Warn("upload token unknown or expired", "session_id", sessionID, "request_id", reqID)
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s, err := session.New(session.Dependencies{
		Conn:        conn,
		Logger:      h.Logger,
		Transcriber: sttAdapter{provider: h.STT, opts: stt.TranscribeOptions{Model: h.Config.DeepgramModel}},
		Completer:   h.Completer,
		Synthesizer: ttsAdapter{provider: h.TTS, opts: tts.SynthesizeOptions{Voice: h.Config.PollyVoice}},
		SessionID:   sessionID,
		Profile:     profile,
		CVText:      cvText,
		Config:      h.Config.SessionConfig(),
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("session init failed", "session_id", sessionID, "request_id", reqID, "error", err)
		}
		return
	}

	unregister := h.Sessions.Register(sessionID, sessions.Handle{
		Cancel: s.Cancel,
		Notify: s.Notify,
	})
	defer unregister()

	if err := s.Run(); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("interview session ended with error", "session_id", sessionID, "request_id", reqID, "error", err)
		}
	}
}

// sttAdapter narrows a speech-to-text provider to the session's Transcriber.
type sttAdapter struct {
	provider stt.Provider
	opts     stt.TranscribeOptions
}

func (a sttAdapter) Transcribe(ctx context.Context, audio []byte) (string, error) {
	tr, err := a.provider.Transcribe(ctx, audio, a.opts)
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

// ttsAdapter narrows a text-to-speech provider to the session's Synthesizer.
type ttsAdapter struct {
	provider tts.Provider
	opts     tts.SynthesizeOptions
}

func (a ttsAdapter) Synthesize(ctx context.Context, text string) ([]byte, error) {
	syn, err := a.provider.Synthesize(ctx, text, a.opts)
	if err != nil {
		return nil, err
	}
	return syn.Audio, nil
}
