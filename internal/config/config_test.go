package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hikaline/kanade/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("LogLevel(%q).IsValid() = false, want true", l)
		}
	}
	for _, l := range []config.LogLevel{"", "verbose", "LOUD"} {
		if l.IsValid() {
			t.Errorf("LogLevel(%q).IsValid() = true, want false", l)
		}
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kanade.yaml")
	yaml := `
server:
  admin_addr: ":9090"
  log_level: info
providers:
  tts:
    query_timeout: 10s
reader:
  default_voice: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.AdminAddr != ":9090" {
		t.Errorf("server.admin_addr: got %q, want %q", cfg.Server.AdminAddr, ":9090")
	}
	if cfg.Providers.TTS.QueryTimeout != 10*time.Second {
		t.Errorf("providers.tts.query_timeout: got %v, want 10s", cfg.Providers.TTS.QueryTimeout)
	}
	if cfg.Reader.DefaultVoice != 2 {
		t.Errorf("reader.default_voice: got %d, want 2", cfg.Reader.DefaultVoice)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
