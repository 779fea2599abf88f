// Package sound provides the notification clips played for system commands.
//
// Each command type resolves to a clip through a small chain: alias map,
// then user-supplied file, then a generated effect, then the default
// effect. Effects are short sine tones synthesised at startup, so the
// reader makes recognisable noises with zero external assets; their
// waveform parameters can be tuned per command in the config.
package sound

import (
	"encoding/binary"
	"log/slog"
	"math"
	"os"
	"time"
)

// Generated clips are mono 16-bit PCM at this rate, wrapped in a WAV
// container so the playback backend can identify the format.
const sampleRate = 24000

// Config selects user-supplied clips, generated-effect parameters, and
// command aliases.
type Config struct {
	// Files maps a command type to a WAV file replacing the generated effect.
	Files map[string]string `yaml:"files"`

	// Effects overrides the generated effect per command type. Zero-value
	// fields inherit the built-in parameters for that command, or the
	// "default" parameters for commands without a built-in effect.
	Effects map[string]EffectConfig `yaml:"effects"`

	// Aliases maps a command type to another before clip lookup, e.g.
	// "nicoad" to "ad". Merged over [DefaultAliases].
	Aliases map[string]string `yaml:"aliases"`
}

// EffectConfig describes one generated effect.
type EffectConfig struct {
	// Type selects the waveform: "beep" (single tone), "chime" (layered
	// tones), or "sweep" (tone gliding between two frequencies).
	Type string `yaml:"type"`

	// Frequency in Hz. For sweep this is the start frequency.
	Frequency float64 `yaml:"frequency"`

	// EndFrequency is the sweep target in Hz.
	EndFrequency float64 `yaml:"end_frequency"`

	// Frequencies lists the chime layers in Hz.
	Frequencies []float64 `yaml:"frequencies"`

	// Volumes gives one amplitude per chime layer. When its length does not
	// match Frequencies, Volume is used for every layer.
	Volumes []float64 `yaml:"volumes"`

	// Duration of the clip.
	Duration time.Duration `yaml:"duration"`

	// Volume is the amplitude in (0, 1].
	Volume float64 `yaml:"volume"`
}

// withDefaults fills zero-value fields from base.
func (e EffectConfig) withDefaults(base EffectConfig) EffectConfig {
	if e.Type == "" {
		e.Type = base.Type
	}
	if e.Frequency == 0 {
		e.Frequency = base.Frequency
	}
	if e.EndFrequency == 0 {
		e.EndFrequency = base.EndFrequency
	}
	if e.Frequencies == nil {
		e.Frequencies = base.Frequencies
	}
	if e.Volumes == nil {
		e.Volumes = base.Volumes
	}
	if e.Duration <= 0 {
		e.Duration = base.Duration
	}
	if e.Volume <= 0 {
		e.Volume = base.Volume
	}
	return e
}

// DefaultAliases returns the built-in command alias table.
func DefaultAliases() map[string]string {
	return map[string]string{
		"nicoad": "ad",
	}
}

// DefaultEffects returns the built-in effect parameters per command type.
func DefaultEffects() map[string]EffectConfig {
	return map[string]EffectConfig{
		"info": {Type: "beep", Frequency: 800,
			Duration: 300 * time.Millisecond, Volume: 0.3},
		"gift": {Type: "chime", Frequencies: []float64{1000, 1200, 1500},
			Volumes: []float64{0.2, 0.2, 0.1}, Duration: 500 * time.Millisecond},
		"ad": {Type: "beep", Frequency: 400,
			Duration: 400 * time.Millisecond, Volume: 0.3},
		"disconnect": {Type: "sweep", Frequency: 600, EndFrequency: 0,
			Duration: 600 * time.Millisecond, Volume: 0.3},
		"connect": {Type: "sweep", Frequency: 400, EndFrequency: 800,
			Duration: 500 * time.Millisecond, Volume: 0.3},
		"default": {Type: "beep", Frequency: 600,
			Duration: 200 * time.Millisecond, Volume: 0.2},
	}
}

// Bank holds all resolvable clips. Immutable after construction and safe
// for concurrent use.
type Bank struct {
	effects map[string][]byte
	files   map[string][]byte
	aliases map[string]string
}

// NewBank builds the clip bank. Configured files that cannot be read and
// effects that cannot be rendered are logged and skipped, falling back to
// the built-in effect.
func NewBank(cfg Config) *Bank {
	b := &Bank{
		effects: make(map[string][]byte),
		files:   make(map[string][]byte),
		aliases: DefaultAliases(),
	}
	for from, to := range cfg.Aliases {
		b.aliases[from] = to
	}

	defaults := DefaultEffects()
	for command, e := range defaults {
		clip, ok := renderEffect(e)
		if !ok {
			continue
		}
		b.effects[command] = clip
	}
	for command, e := range cfg.Effects {
		base, ok := defaults[command]
		if !ok {
			base = defaults["default"]
		}
		clip, ok := renderEffect(e.withDefaults(base))
		if !ok {
			slog.Warn("sound: invalid effect config, using built-in effect",
				"command", command, "type", e.Type)
			continue
		}
		b.effects[command] = clip
	}

	for command, path := range cfg.Files {
		clip, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("sound: cannot read clip file, using generated effect",
				"command", command, "path", path, "err", err)
			continue
		}
		b.files[command] = clip
	}
	return b
}

// Clip resolves the clip for a command type. It never returns nil: unknown
// commands get the default effect.
func (b *Bank) Clip(commandType string) []byte {
	if target, ok := b.aliases[commandType]; ok {
		commandType = target
	}
	if clip, ok := b.files[commandType]; ok {
		return clip
	}
	if clip, ok := b.effects[commandType]; ok {
		return clip
	}
	if clip, ok := b.files["default"]; ok {
		return clip
	}
	return b.effects["default"]
}

// renderEffect synthesises one effect, reporting false when the parameters
// cannot produce a clip.
func renderEffect(e EffectConfig) ([]byte, bool) {
	if e.Duration <= 0 {
		return nil, false
	}
	switch e.Type {
	case "beep":
		return beep(e.Frequency, e.Duration, e.Volume), true
	case "chime":
		if len(e.Frequencies) == 0 {
			return nil, false
		}
		vols := e.Volumes
		if len(vols) != len(e.Frequencies) {
			vol := e.Volume
			if vol <= 0 {
				vol = 0.2
			}
			vols = make([]float64, len(e.Frequencies))
			for i := range vols {
				vols[i] = vol
			}
		}
		return chime(e.Frequencies, vols, e.Duration), true
	case "sweep":
		return sweep(e.Frequency, e.EndFrequency, e.Duration, e.Volume), true
	}
	return nil, false
}

// beep renders a single sine tone.
func beep(freq float64, dur time.Duration, vol float64) []byte {
	return render(dur, func(t float64) float64 {
		return math.Sin(2*math.Pi*freq*t) * vol
	})
}

// chime renders several sine tones layered at individual volumes.
func chime(freqs, vols []float64, dur time.Duration) []byte {
	return render(dur, func(t float64) float64 {
		var v float64
		for i, f := range freqs {
			v += math.Sin(2*math.Pi*f*t) * vols[i]
		}
		return v
	})
}

// sweep renders a tone whose frequency moves linearly from start to end
// over the clip.
func sweep(start, end float64, dur time.Duration, vol float64) []byte {
	total := dur.Seconds()
	return render(dur, func(t float64) float64 {
		freq := start + (end-start)*(t/total)
		return math.Sin(2*math.Pi*freq*t) * vol
	})
}

// render samples wave over dur and wraps the PCM in a WAV container. wave
// receives the time in seconds and returns an amplitude in [-1, 1].
func render(dur time.Duration, wave func(t float64) float64) []byte {
	n := int(float64(sampleRate) * dur.Seconds())
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		v := wave(t)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return wrapWAV(pcm)
}

// wrapWAV prefixes mono 16-bit PCM with a minimal RIFF/WAVE header.
func wrapWAV(pcm []byte) []byte {
	out := make([]byte, 0, 44+len(pcm))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(pcm)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, 1) // mono
	out = binary.LittleEndian.AppendUint32(out, sampleRate)
	out = binary.LittleEndian.AppendUint32(out, sampleRate*2)
	out = binary.LittleEndian.AppendUint16(out, 2)
	out = binary.LittleEndian.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	out = append(out, pcm...)
	return out
}
