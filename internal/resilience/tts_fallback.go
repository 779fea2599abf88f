package resilience

import (
	"context"

	"github.com/hikaline/kanade/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis engines. Each engine has its own circuit breaker, so
// a flapping primary is bypassed without retrying it on every utterance.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred engine.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional engine as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy engine.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, speakerID int, speed float64) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, speakerID, speed)
	})
}

// ListSpeakers returns the speaker roster of the first healthy engine.
func (f *TTSFallback) ListSpeakers(ctx context.Context) ([]tts.Speaker, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.Speaker, error) {
		return p.ListSpeakers(ctx)
	})
}
