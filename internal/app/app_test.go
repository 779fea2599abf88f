package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/hikaline/kanade/internal/app"
	"github.com/hikaline/kanade/internal/config"
	"github.com/hikaline/kanade/internal/settings"
	playbackmock "github.com/hikaline/kanade/pkg/provider/playback/mock"
	ttsmock "github.com/hikaline/kanade/pkg/provider/tts/mock"
)

// testFeed runs a WebSocket feed that pushes the given frames to every
// connection and then holds it open.
func testFeed(t *testing.T, frames ...string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.Write(r.Context(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(feedURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Feed:   config.FeedConfig{URL: feedURL},
		Reader: config.ReaderConfig{
			SynthesisWorkers: 2,
			DefaultVoice:     2,
			ShutdownGrace:    200 * time.Millisecond,
		},
	}
}

func testProviders() *app.Providers {
	return &app.Providers{
		TTS:      &ttsmock.Provider{SynthesizeResult: []byte("clip")},
		Playback: &playbackmock.Player{},
		Store:    settings.NewMemStore(),
	}
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig("ws://localhost:1"), testProviders())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
	if application.Pipeline() == nil {
		t.Fatal("New() left the pipeline unset")
	}
}

func TestRun_CommentReachesPlayback(t *testing.T) {
	t.Parallel()

	feedURL := testFeed(t,
		`{"comment":"こんにちは、今日もよろしく","user_id":"126050768"}`,
		`{"comment":"a","user_id":"1"}`,
	)

	providers := testProviders()
	player := providers.Playback.(*playbackmock.Player)
	synth := providers.TTS.(*ttsmock.Provider)

	application, err := app.New(context.Background(), testConfig(feedURL), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(player.Plays()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(player.Plays()); got != 1 {
		t.Fatalf("played %d clips, want 1 (the short comment is skipped)", got)
	}
	if calls := synth.Calls(); len(calls) != 1 || calls[0].SpeakerID != 2 {
		t.Errorf("Synthesize calls = %+v, want one at default voice 2", calls)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig("ws://localhost:1"), testProviders())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
