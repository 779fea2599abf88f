// Package config provides the configuration schema and loader for the
// Kanade comment reader.
package config

import (
	"time"

	"github.com/hikaline/kanade/internal/sound"
	"github.com/hikaline/kanade/internal/transform"
)

// LogLevel controls log verbosity for the Kanade server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Kanade.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Feed      FeedConfig       `yaml:"feed"`
	Providers ProvidersConfig  `yaml:"providers"`
	Reader    ReaderConfig     `yaml:"reader"`
	Commands  CommandsConfig   `yaml:"commands"`
	Transform transform.Config `yaml:"transform"`
}

// ServerConfig holds the admin listener and logging settings.
type ServerConfig struct {
	// AdminAddr is the TCP address for the admin endpoints
	// (/healthz, /readyz, /metrics, /statusz). Empty disables the listener.
	AdminAddr string `yaml:"admin_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// FeedConfig describes the inbound comment feed connection.
type FeedConfig struct {
	// URL is the WebSocket address of the comment feed.
	// Empty selects the local default.
	URL string `yaml:"url"`

	// EventBuffer is the capacity of the inbound event channel.
	EventBuffer int `yaml:"event_buffer"`
}

// ProvidersConfig declares the external services Kanade talks to.
type ProvidersConfig struct {
	TTS      TTSConfig      `yaml:"tts"`
	Playback PlaybackConfig `yaml:"playback"`
	Store    StoreConfig    `yaml:"store"`
}

// TTSConfig configures the synthesis engine.
type TTSConfig struct {
	// ServerURL is the VOICEVOX-compatible engine address.
	// Empty selects the local default.
	ServerURL string `yaml:"server_url"`

	// FallbackURLs lists additional engine addresses tried in order when
	// the primary fails.
	FallbackURLs []string `yaml:"fallback_urls"`

	// QueryTimeout bounds the audio-query request.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// SynthesisTimeout bounds the synthesis request.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`
}

// PlaybackConfig configures the local audio output.
type PlaybackConfig struct {
	// SampleRate is the output device rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// BufferSize is the device buffer duration.
	BufferSize time.Duration `yaml:"buffer_size"`
}

// StoreConfig configures the user settings store.
type StoreConfig struct {
	// PostgresDSN is the connection string for the profiles database.
	// Empty falls back to an in-memory store that forgets on restart.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ReaderConfig tunes the comment orchestrator and pipeline.
type ReaderConfig struct {
	// SynthesisWorkers is the number of parallel synthesis workers.
	SynthesisWorkers int `yaml:"synthesis_workers"`

	// QueueSize is the capacity of each pipeline queue.
	QueueSize int `yaml:"queue_size"`

	// DefaultVoice is the speaker used when a user has no stored voice.
	DefaultVoice int `yaml:"default_voice"`

	// OperatorVoice is the speaker used for operator announcements.
	OperatorVoice int `yaml:"operator_voice"`

	// SkipWords lists mail-field flags that silence a comment.
	// Empty keeps the built-in list.
	SkipWords []string `yaml:"skip_words"`

	// ShutdownGrace bounds the drain of in-flight audio on shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// CommandsConfig configures system command announcements.
type CommandsConfig struct {
	// Templates overrides the announcement template per command type.
	Templates map[string]string `yaml:"templates"`

	// SoundEnabled toggles notification clips. Nil means enabled.
	SoundEnabled *bool `yaml:"sound_enabled"`

	// Sound selects clip files and command aliases.
	Sound sound.Config `yaml:"sound"`
}

// SoundOn reports whether notification clips should play.
func (c CommandsConfig) SoundOn() bool {
	return c.SoundEnabled == nil || *c.SoundEnabled
}
