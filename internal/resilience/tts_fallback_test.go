package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/hikaline/kanade/pkg/provider/tts"
	ttsmock "github.com/hikaline/kanade/pkg/provider/tts/mock"
)

func TestTTSFallback_Synthesize_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeResult: []byte("primary-audio")}
	secondary := &ttsmock.Provider{SynthesizeResult: []byte("fallback-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	audio, err := fb.Synthesize(context.Background(), "こんにちは", 2, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "primary-audio" {
		t.Fatalf("audio = %q, want primary-audio", audio)
	}
	if len(primary.Calls()) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls()))
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestTTSFallback_Synthesize_Failover(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeResult: []byte("fallback-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	audio, err := fb.Synthesize(context.Background(), "こんにちは", 2, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "fallback-audio" {
		t.Fatalf("audio = %q, want fallback-audio", audio)
	}
	call := secondary.Calls()[0]
	if call.SpeakerID != 2 || call.Speed != 1.5 {
		t.Fatalf("fallback call = %+v, want speaker 2 at speed 1.5", call)
	}
}

func TestTTSFallback_Synthesize_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeErr: errors.New("secondary down")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Synthesize(context.Background(), "こんにちは", 2, 1.0)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_Synthesize_BreakerSkipsDeadPrimary(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeResult: []byte("fallback-audio")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	for i := 0; i < 5; i++ {
		if _, err := fb.Synthesize(context.Background(), "こんにちは", 2, 1.0); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// After MaxFailures the breaker opens and the primary stops being called.
	if calls := len(primary.Calls()); calls != 2 {
		t.Fatalf("primary called %d times, want 2", calls)
	}
}

func TestTTSFallback_ListSpeakers_Failover(t *testing.T) {
	primary := &ttsmock.Provider{ListSpeakersErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{
		ListSpeakersResult: []tts.Speaker{
			{ID: 2, Name: "四国めたん", Style: "ノーマル"},
			{ID: 3, Name: "ずんだもん", Style: "ノーマル"},
		},
	}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	speakers, err := fb.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(speakers) != 2 {
		t.Fatalf("got %d speakers, want 2", len(speakers))
	}
	if speakers[0].Name != "四国めたん" {
		t.Fatalf("speakers[0].Name = %q", speakers[0].Name)
	}
}
