// Package protocol defines the JSON messages exchanged over the interview
// WebSocket channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeAudio            = "audio"
	TypePlaybackComplete = "playback_complete"
	TypePing             = "ping"
)

// Server message types.
const (
	TypeConnected      = "connected"
	TypeStatus         = "status"
	TypeUserText       = "user_text"
	TypeBotText        = "bot_text"
	TypeAudioChunk     = "audio_chunk"
	TypeCompleted      = "completed"
	TypeError          = "error"
	TypeInterviewEnded = "interview_ended"
	TypePong           = "pong"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientAudio carries one complete user utterance, base64 encoded.
type ClientAudio struct {
	Type     string `json:"type"`
	AudioB64 string `json:"audio"`
}

// ClientPlaybackComplete reports that the client finished playing all audio
// chunks of the current assistant reply.
type ClientPlaybackComplete struct {
	Type string `json:"type"`
}

// ClientPing is a liveness probe with no session state effect.
type ClientPing struct {
	Type string `json:"type"`
}

// ServerConnected acknowledges a new session.
type ServerConnected struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// ServerStatus is a transient processing-progress notice.
type ServerStatus struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerUserText echoes the recognized transcript back to the client.
type ServerUserText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerBotText carries the assistant reply text ahead of its audio.
type ServerBotText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerAudioChunk is one synthesized audio fragment, base64 encoded.
type ServerAudioChunk struct {
	Type        string `json:"type"`
	AudioB64    string `json:"audio"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// ServerCompleted marks the end of audio chunk emission for one reply.
type ServerCompleted struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ServerError reports a recoverable processing failure.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerInterviewEnded announces session termination after the silence
// watchdog ran out of stages.
type ServerInterviewEnded struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ServerPong answers a client ping.
type ServerPong struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses and validates one inbound frame. It returns one
// of the Client* message types or a *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeAudio:
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.AudioB64) == "" {
			return nil, badRequest("audio.audio is required", "audio")
		}
		return msg, nil
	case TypePlaybackComplete:
		var msg ClientPlaybackComplete
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid playback_complete frame", "")
		}
		return msg, nil
	case TypePing:
		var msg ClientPing
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid ping frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported(fmt.Sprintf("unsupported message type %q", typ), "type")
	}
}
