// Package mock provides a test double for the playback.Player interface.
//
// Use Player to record the clips a consumer plays and to simulate playback
// duration or device failures.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/hikaline/kanade/pkg/provider/playback"
)

// Player is a mock implementation of playback.Player.
type Player struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// PlayErr, if non-nil, is returned as the error from Play.
	PlayErr error

	// PlayDelay, when positive, makes Play block for that duration (or until
	// ctx is cancelled) to simulate real playback time.
	PlayDelay time.Duration

	// PlayFunc, if non-nil, overrides the canned behaviour entirely. The
	// call is still recorded.
	PlayFunc func(ctx context.Context, audio []byte) error

	// --- Call records ---

	plays [][]byte
}

// Play records the clip and returns the configured response.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	clip := make([]byte, len(audio))
	copy(clip, audio)

	p.mu.Lock()
	p.plays = append(p.plays, clip)
	fn := p.PlayFunc
	delay := p.PlayDelay
	err := p.PlayErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// Plays returns a copy of the recorded clips in play order. Thread-safe.
func (p *Player) Plays() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.plays))
	copy(out, p.plays)
	return out
}

// Reset clears all recorded clips. Thread-safe.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = nil
}

// Ensure Player implements playback.Player at compile time.
var _ playback.Player = (*Player)(nil)
