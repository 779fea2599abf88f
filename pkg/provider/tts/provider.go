// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., a local VOICEVOX
// engine) and presents a uniform batch interface: one utterance in, one
// audio clip out. Speed control is part of the request because the reading
// pipeline adapts speech rate to its backlog.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (the pipeline runs several synthesis workers).
type Provider interface {
	// Synthesize renders text as one audio clip using the given speaker.
	// speed is a playback-rate multiplier where 1.0 is the natural rate;
	// implementations that cannot vary speed should ignore it.
	//
	// The returned bytes are a complete audio file (typically WAV) ready to
	// hand to a playback backend. Synthesize applies a bounded timeout per
	// request in addition to ctx.
	Synthesize(ctx context.Context, text string, speakerID int, speed float64) ([]byte, error)

	// ListSpeakers returns all speakers available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls if the underlying engine loads or unloads voice models.
	ListSpeakers(ctx context.Context) ([]Speaker, error)
}
