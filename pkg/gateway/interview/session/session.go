// Package session implements the per-connection interview orchestrator: one
// run loop per WebSocket connection that sequences transcription, completion,
// chunked speech delivery, and the silence watchdog.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/voxhire/pkg/core/llm"
	"github.com/voxhire/voxhire/pkg/gateway/interview/protocol"
	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

// Transcriber converts one complete audio utterance to text. Empty text with
// a nil error means no intelligible speech.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer renders text to encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// wsConn is the subset of *websocket.Conn the session uses.
type wsConn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Config tunes one interview session.
type Config struct {
	MaxFragmentChars    int
	DeliveryMode        string
	BufferCapacity      int
	PacingDelay         time.Duration
	HistoryMaxTurns     int
	SystemPrompt        string
	GreetingInstruction string
	Watchdog            WatchdogConfig

	MaxMessageBytes int64
	MaxAudioBytes   int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	OutboundQueue   int
}

// DefaultConfig returns the stock session tuning.
func DefaultConfig() Config {
	return Config{
		MaxFragmentChars:    DefaultMaxFragmentChars,
		DeliveryMode:        DeliveryOverlapped,
		BufferCapacity:      DefaultBufferCapacity,
		PacingDelay:         DefaultPacingDelay,
		HistoryMaxTurns:     DefaultHistoryMaxTurns,
		SystemPrompt:        DefaultSystemPrompt,
		GreetingInstruction: DefaultGreetingInstruction,
		Watchdog:            DefaultWatchdogConfig(),
		MaxMessageBytes:     8 << 20,
		MaxAudioBytes:       5 << 20,
		PingInterval:        20 * time.Second,
		WriteTimeout:        5 * time.Second,
		ReadTimeout:         90 * time.Second,
		OutboundQueue:       32,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.MaxFragmentChars <= 0 {
		c.MaxFragmentChars = d.MaxFragmentChars
	}
	if c.DeliveryMode == "" {
		c.DeliveryMode = d.DeliveryMode
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = d.BufferCapacity
	}
	if c.PacingDelay <= 0 {
		c.PacingDelay = d.PacingDelay
	}
	if c.HistoryMaxTurns <= 0 {
		c.HistoryMaxTurns = d.HistoryMaxTurns
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.GreetingInstruction == "" {
		c.GreetingInstruction = d.GreetingInstruction
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.MaxAudioBytes <= 0 {
		c.MaxAudioBytes = d.MaxAudioBytes
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.OutboundQueue <= 0 {
		c.OutboundQueue = d.OutboundQueue
	}
}

// Dependencies wires one session to its connection and engines.
type Dependencies struct {
	Conn        wsConn
	Logger      *slog.Logger
	Transcriber Transcriber
	Completer   llm.Completer
	Synthesizer Synthesizer

	SessionID string
	Profile   *uploads.CandidateProfile
	CVText    string
	Config    Config
}

// Session is one live interview. Run drives it; Cancel aborts it from
// another goroutine.
type Session struct {
	id     string
	logger *slog.Logger
	conn   wsConn
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc

	transcriber Transcriber
	completer   llm.Completer
	synthesizer Synthesizer
	pipeline    *Pipeline
	watchdog    *Watchdog
	history     *historyLog

	systemPrompt string

	priorityCh chan []byte
	normalCh   chan []byte
}

type inboundFrame struct {
	data []byte
	err  error
}

type transcriptResult struct {
	text string
	err  error
}

type replyResult struct {
	text string
	err  error
}

type deliveryResult struct {
	err      error
	terminal bool
}

// New validates dependencies and builds a session ready to Run.
func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, errors.New("session: nil connection")
	}
	if deps.Transcriber == nil || deps.Completer == nil || deps.Synthesizer == nil {
		return nil, errors.New("session: missing engine dependency")
	}
	if deps.SessionID == "" {
		return nil, errors.New("session: missing session id")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	cfg.fillDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           deps.SessionID,
		logger:       logger.With("session_id", deps.SessionID),
		conn:         deps.Conn,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		transcriber:  deps.Transcriber,
		completer:    deps.Completer,
		synthesizer:  deps.Synthesizer,
		pipeline:     NewPipeline(logger, cfg.DeliveryMode, cfg.BufferCapacity, cfg.PacingDelay),
		watchdog:     NewWatchdog(cfg.Watchdog),
		history:      newHistoryLog(cfg.HistoryMaxTurns),
		systemPrompt: buildSystemPrompt(cfg.SystemPrompt, deps.Profile, deps.CVText),
		priorityCh:   make(chan []byte, cfg.OutboundQueue),
		normalCh:     make(chan []byte, cfg.OutboundQueue),
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Cancel aborts the session from outside the run loop.
func (s *Session) Cancel() { s.cancel() }

// Notify queues a status message for the client. Safe from any goroutine;
// used by the registry to warn live sessions about server drain.
func (s *Session) Notify(message string) {
	s.sendPriority(protocol.ServerStatus{Type: protocol.TypeStatus, Message: message})
}

// Run owns the session until the connection drops, the watchdog ends the
// interview, or the context is canceled. All state transitions happen on
// this goroutine; worker goroutines only report results over channels.
func (s *Session) Run() error {
	defer s.cancel()
	defer s.watchdog.Terminate()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	writer := &outboundWriter{
		ws:       s.conn,
		ctx:      s.ctx,
		cfg:      s.cfg,
		priority: s.priorityCh,
		normal:   s.normalCh,
	}
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writer.Run()
		// A dead writer means nothing can reach the client; unblock any
		// queued sends so the loop can wind down.
		s.cancel()
	}()

	readCh := make(chan inboundFrame, 8)
	go s.readLoop(readCh)

	transcriptCh := make(chan transcriptResult, 1)
	replyCh := make(chan replyResult, 1)
	deliveryCh := make(chan deliveryResult, 1)

	turnInFlight := false
	outputInFlight := false
	playbackPending := false

	s.sendPriority(protocol.ServerConnected{
		Type:      protocol.TypeConnected,
		SessionID: s.id,
		Message:   "Connected to interview",
	})

	// The assistant opens the interview before the candidate speaks.
	s.sendStatus("Preparing your interview...")
	turnInFlight = true
	s.spawnCompletion(&wg, replyCh, nil, s.cfg.GreetingInstruction)

	for {
		// A playback report that raced the tail of a delivery is applied
		// once the session is quiet again, so the watchdog still arms.
		if playbackPending && !turnInFlight && !outputInFlight {
			playbackPending = false
			s.watchdog.PlaybackComplete()
		}

		select {
		case <-s.ctx.Done():
			return nil

		case err := <-writerDone:
			if err != nil && s.ctx.Err() == nil {
				s.logger.Warn("outbound writer failed", "err", err)
			}
			return nil

		case frame := <-readCh:
			if frame.err != nil {
				if s.ctx.Err() == nil && !websocket.IsCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Info("connection closed", "err", frame.err)
				}
				return nil
			}
			msg, err := protocol.DecodeClientMessage(frame.data)
			if err != nil {
				s.sendError(err.Error())
				continue
			}
			switch m := msg.(type) {
			case protocol.ClientAudio:
				if turnInFlight || outputInFlight {
					s.sendStatus("Still responding, please wait...")
					continue
				}
				audio, err := base64.StdEncoding.DecodeString(m.AudioB64)
				if err != nil {
					s.sendError("invalid audio encoding")
					continue
				}
				if int64(len(audio)) > s.cfg.MaxAudioBytes {
					s.sendError("audio payload too large")
					continue
				}
				s.sendStatus("Recognizing speech...")
				turnInFlight = true
				s.spawnTranscription(&wg, transcriptCh, audio)

			case protocol.ClientPlaybackComplete:
				if turnInFlight || outputInFlight {
					playbackPending = true
					continue
				}
				s.watchdog.PlaybackComplete()

			case protocol.ClientPing:
				s.sendPriority(protocol.ServerPong{Type: protocol.TypePong})
			}

		case tr := <-transcriptCh:
			if tr.err != nil {
				turnInFlight = false
				s.logger.Warn("transcription failed", "err", tr.err)
				s.sendError("Speech recognition failed, please try again")
				continue
			}
			text := strings.TrimSpace(tr.text)
			if text == "" {
				// Silence is not an answer: the watchdog keeps counting.
				turnInFlight = false
				s.sendStatus("Could not recognize speech, please try again")
				continue
			}
			s.watchdog.Transcript()
			prior := s.history.snapshot()
			s.history.appendUser(text)
			s.sendPriority(protocol.ServerUserText{Type: protocol.TypeUserText, Text: text})
			s.sendStatus("Thinking about response...")
			s.spawnCompletion(&wg, replyCh, prior, text)

		case rr := <-replyCh:
			turnInFlight = false
			if rr.err != nil {
				s.logger.Warn("completion failed", "err", rr.err)
				s.sendError("The interviewer is temporarily unavailable, please try again")
				continue
			}
			reply := strings.TrimSpace(rr.text)
			if reply == "" {
				s.sendError("The interviewer had nothing to say, please try again")
				continue
			}
			s.history.appendAssistant(reply)
			s.sendPriority(protocol.ServerBotText{Type: protocol.TypeBotText, Text: reply})
			s.sendStatus("Generating speech...")
			outputInFlight = true
			// Any earlier playback report referred to audio this reply
			// supersedes.
			playbackPending = false
			s.spawnDelivery(&wg, deliveryCh, reply, false)

		case dr := <-deliveryCh:
			outputInFlight = false
			if dr.err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("audio delivery failed", "err", dr.err)
				s.sendError("Audio delivery failed")
			} else if dr.terminal {
				// The writer only flushes the priority queue on shutdown;
				// the final frames must ride it to survive the teardown.
				s.sendPriority(protocol.ServerCompleted{Type: protocol.TypeCompleted})
			} else {
				// Through the normal queue so it cannot overtake the audio
				// chunks it concludes.
				s.sendNormal(protocol.ServerCompleted{Type: protocol.TypeCompleted})
			}
			if dr.terminal {
				// The closing message is out; do not wait for a playback
				// report from a client that may already be gone.
				s.sendPriority(protocol.ServerInterviewEnded{
					Type:    protocol.TypeInterviewEnded,
					Message: "The interview has ended due to inactivity.",
				})
				s.logger.Info("interview ended by silence watchdog")
				return nil
			}

		case <-s.watchdog.Deadline():
			message, terminal := s.watchdog.Expire()
			if message == "" {
				continue
			}
			s.logger.Info("silence stage reached", "stage", s.watchdog.Stage(), "terminal", terminal)
			s.history.appendAssistant(message)
			s.sendPriority(protocol.ServerBotText{Type: protocol.TypeBotText, Text: message})
			outputInFlight = true
			playbackPending = false
			s.spawnDelivery(&wg, deliveryCh, message, terminal)
		}
	}
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		if s.cfg.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		select {
		case out <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) spawnTranscription(wg *sync.WaitGroup, out chan<- transcriptResult, audio []byte) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		text, err := s.transcriber.Transcribe(s.ctx, audio)
		select {
		case out <- transcriptResult{text: text, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) spawnCompletion(wg *sync.WaitGroup, out chan<- replyResult, prior []llm.Turn, userText string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		text, err := s.completer.Complete(s.ctx, s.systemPrompt, prior, userText)
		select {
		case out <- replyResult{text: text, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) spawnDelivery(wg *sync.WaitGroup, out chan<- deliveryResult, text string, terminal bool) {
	fragments := SplitFragments(text, s.cfg.MaxFragmentChars)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.pipeline.Deliver(s.ctx, fragments, s.synthFragment, s.emitUnit)
		select {
		case out <- deliveryResult{err: err, terminal: terminal}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) synthFragment(ctx context.Context, fragment Fragment) ([]byte, error) {
	audio, err := s.synthesizer.Synthesize(ctx, fragment.Text)
	if err != nil {
		return nil, fmt.Errorf("synthesize fragment %d: %w", fragment.Index, err)
	}
	return audio, nil
}

func (s *Session) emitUnit(unit AudioUnit) error {
	payload, err := json.Marshal(protocol.ServerAudioChunk{
		Type:        protocol.TypeAudioChunk,
		AudioB64:    base64.StdEncoding.EncodeToString(unit.Data),
		ChunkIndex:  unit.Index,
		TotalChunks: unit.Total,
	})
	if err != nil {
		return err
	}
	select {
	case s.normalCh <- payload:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Session) sendStatus(message string) {
	s.sendPriority(protocol.ServerStatus{Type: protocol.TypeStatus, Message: message})
}

func (s *Session) sendError(message string) {
	s.sendPriority(protocol.ServerError{Type: protocol.TypeError, Message: message})
}

func (s *Session) sendPriority(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal outbound frame", "err", err)
		return
	}
	select {
	case s.priorityCh <- payload:
	case <-s.ctx.Done():
	}
}

func (s *Session) sendNormal(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal outbound frame", "err", err)
		return
	}
	select {
	case s.normalCh <- payload:
	case <-s.ctx.Done():
	}
}
