// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio from Synthesize and to verify the
// text, speaker, and speed passed in by the caller.
//
// Example:
//
//	p := &mock.Provider{SynthesizeResult: []byte("audio")}
//	audio, err := p.Synthesize(ctx, "hello", 2, 1.0)
package mock

import (
	"context"
	"sync"

	"github.com/hikaline/kanade/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the utterance passed to Synthesize.
	Text string
	// SpeakerID is the speaker passed to Synthesize.
	SpeakerID int
	// Speed is the rate multiplier passed to Synthesize.
	Speed float64
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeResult is returned by Synthesize when SynthesizeFunc and
	// SynthesizeErr are unset.
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// SynthesizeFunc, if non-nil, overrides the canned responses entirely.
	// The call is still recorded.
	SynthesizeFunc func(ctx context.Context, text string, speakerID int, speed float64) ([]byte, error)

	// ListSpeakersResult is returned by ListSpeakers.
	ListSpeakersResult []tts.Speaker

	// ListSpeakersErr, if non-nil, is returned as the error from ListSpeakers.
	ListSpeakersErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListSpeakersCalls counts calls to ListSpeakers.
	ListSpeakersCalls int
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string, speakerID int, speed float64) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, SpeakerID: speakerID, Speed: speed})
	fn := p.SynthesizeFunc
	result := p.SynthesizeResult
	err := p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, speakerID, speed)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListSpeakers records the call and returns ListSpeakersResult, ListSpeakersErr.
func (p *Provider) ListSpeakers(ctx context.Context) ([]tts.Speaker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListSpeakersCalls++
	return p.ListSpeakersResult, p.ListSpeakersErr
}

// Calls returns a copy of the recorded Synthesize calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListSpeakersCalls = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
