// Package playback defines the Player interface for audio output backends.
//
// A playback backend renders one audio clip at a time to the local output
// device. The reading pipeline holds exactly one playback worker, so Play
// blocks until the clip has finished; concurrent calls are allowed and mix
// at the device (used for short notification sounds layered over speech).
//
// Implementations must be safe for concurrent use.
package playback

import "context"

// Player is the abstraction over any audio output backend.
type Player interface {
	// Play renders audio to the output device and blocks until playback
	// completes or ctx is cancelled. audio is a complete WAV file or raw
	// PCM in the backend's native format.
	Play(ctx context.Context, audio []byte) error
}
