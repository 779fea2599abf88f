package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownCommandTypes lists command types with dedicated formatting or
// built-in clips. Used by [Validate] to warn about likely typos in the
// template and sound tables.
var KnownCommandTypes = []string{"gift", "nicoad", "info", "ad", "spi", "disconnect", "connect"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Feed
	if cfg.Feed.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("feed.event_buffer %d must not be negative", cfg.Feed.EventBuffer))
	}

	// Providers
	if cfg.Providers.TTS.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("providers.tts.query_timeout must not be negative"))
	}
	if cfg.Providers.TTS.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("providers.tts.synthesis_timeout must not be negative"))
	}
	if cfg.Providers.Playback.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("providers.playback.sample_rate %d must not be negative", cfg.Providers.Playback.SampleRate))
	}
	if cfg.Providers.Store.PostgresDSN == "" {
		slog.Warn("providers.store.postgres_dsn is empty; user settings will not survive a restart")
	}

	// Reader
	if cfg.Reader.SynthesisWorkers < 0 {
		errs = append(errs, fmt.Errorf("reader.synthesis_workers %d must not be negative", cfg.Reader.SynthesisWorkers))
	}
	if cfg.Reader.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("reader.queue_size %d must not be negative", cfg.Reader.QueueSize))
	}
	if cfg.Reader.DefaultVoice < 0 {
		errs = append(errs, fmt.Errorf("reader.default_voice %d must not be negative", cfg.Reader.DefaultVoice))
	}
	if cfg.Reader.OperatorVoice < 0 {
		errs = append(errs, fmt.Errorf("reader.operator_voice %d must not be negative", cfg.Reader.OperatorVoice))
	}

	// Commands
	for name := range cfg.Commands.Templates {
		warnUnknownCommand("commands.templates", name)
	}
	for name := range cfg.Commands.Sound.Files {
		warnUnknownCommand("commands.sound.files", name)
	}
	for name, e := range cfg.Commands.Sound.Effects {
		warnUnknownCommand("commands.sound.effects", name)
		switch e.Type {
		case "", "beep", "chime", "sweep":
		default:
			errs = append(errs, fmt.Errorf("commands.sound.effects.%s: unknown type %q", name, e.Type))
		}
		if e.Volume < 0 || e.Volume > 1 {
			errs = append(errs, fmt.Errorf("commands.sound.effects.%s: volume %v must be in [0, 1]", name, e.Volume))
		}
		if e.Duration < 0 {
			errs = append(errs, fmt.Errorf("commands.sound.effects.%s: duration %v must not be negative", name, e.Duration))
		}
	}
	for from, to := range cfg.Commands.Sound.Aliases {
		warnUnknownCommand("commands.sound.aliases", from)
		warnUnknownCommand("commands.sound.aliases", to)
	}

	// Transform
	if cfg.Transform.NumberLimit < 0 {
		errs = append(errs, fmt.Errorf("transform.number_limit %d must not be negative", cfg.Transform.NumberLimit))
	}
	for i, rule := range cfg.Transform.SlangRegexRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("transform.slang_regex_rules[%d].pattern: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// warnUnknownCommand logs a warning if name is not a known command type.
// Unknown types still work (pass-through formatting, default clip) so this
// is never an error.
func warnUnknownCommand(where, name string) {
	// "default" selects the fallback clip rather than a command type.
	if name == "default" || slices.Contains(KnownCommandTypes, name) {
		return
	}
	slog.Warn("unknown command type — may be a typo",
		"where", where,
		"command", name,
		"known", KnownCommandTypes,
	)
}
