// Package oto provides a playback.Player backed by the oto audio library,
// rendering to the default output device on Linux, macOS, and Windows.
//
// The device context is opened once at a fixed mono sample rate; WAV clips
// at other rates are resampled with linear interpolation before rendering.
// Multiple Play calls may run concurrently and are mixed by the device.
package oto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	otolib "github.com/ebitengine/oto/v3"

	"github.com/hikaline/kanade/pkg/provider/playback"
)

// Compile-time interface assertion.
var _ playback.Player = (*Player)(nil)

const (
	// defaultSampleRate is the device context rate. Clips are resampled to
	// this rate, so any engine output rate works.
	defaultSampleRate = 48000

	defaultBufferSize = 50 * time.Millisecond

	// readyTimeout bounds how long device initialisation may take.
	readyTimeout = 5 * time.Second

	// pollInterval is how often a blocked Play checks for completion or
	// cancellation.
	pollInterval = 10 * time.Millisecond
)

// Option is a functional option for configuring a Player.
type Option func(*Player)

// WithSampleRate sets the device context sample rate. Defaults to 48 kHz.
func WithSampleRate(rate int) Option {
	return func(p *Player) {
		p.sampleRate = rate
	}
}

// WithBufferSize sets the device buffer duration. Larger buffers tolerate
// scheduling jitter at the cost of latency. Defaults to 50 ms.
func WithBufferSize(d time.Duration) Option {
	return func(p *Player) {
		p.bufferSize = d
	}
}

// Player implements playback.Player using an oto device context. Safe for
// concurrent use.
type Player struct {
	ctx        *otolib.Context
	sampleRate int
	bufferSize time.Duration
}

// New opens the default audio output device. It blocks until the device is
// ready or readyTimeout elapses.
func New(opts ...Option) (*Player, error) {
	p := &Player{
		sampleRate: defaultSampleRate,
		bufferSize: defaultBufferSize,
	}
	for _, o := range opts {
		o(p)
	}

	ctx, ready, err := otolib.NewContext(&otolib.NewContextOptions{
		SampleRate:   p.sampleRate,
		ChannelCount: 1,
		Format:       otolib.FormatSignedInt16LE,
		BufferSize:   p.bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: create audio context: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(readyTimeout):
		return nil, fmt.Errorf("oto: audio device not ready after %v", readyTimeout)
	}

	p.ctx = ctx
	return p, nil
}

// Play implements [playback.Player.Play]. audio may be a WAV file (the
// header determines rate and channel layout) or raw 16-bit mono PCM at the
// context rate.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("oto: empty audio clip")
	}

	pcm := audio
	rate := p.sampleRate
	if isWAV(audio) {
		info, err := parseWAV(audio)
		if err != nil {
			return err
		}
		if info.Channels != 1 {
			return fmt.Errorf("oto: %d-channel clips are not supported, want mono", info.Channels)
		}
		pcm = audio[info.DataOffset:]
		rate = info.SampleRate
	}
	if rate != p.sampleRate {
		pcm = resampleMono16(pcm, rate, p.sampleRate)
	}
	if len(pcm) == 0 {
		return nil
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Close()
}
