// Package tts provides text-to-speech functionality.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to a complete audio clip.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice  string // Provider-specific voice identifier
	Format string // Output format (default: "mp3")
}

// Synthesis is the result of text-to-speech conversion.
type Synthesis struct {
	Audio    []byte // Encoded audio data
	MIMEType string // Content type of the audio
}
