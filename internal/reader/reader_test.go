package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hikaline/kanade/internal/command"
	"github.com/hikaline/kanade/internal/settings"
	"github.com/hikaline/kanade/internal/sound"
	"github.com/hikaline/kanade/internal/transform"
	"github.com/hikaline/kanade/internal/transport"
	"github.com/hikaline/kanade/internal/userinfo"
)

type queued struct {
	Text  string
	Voice int
}

// fakePipe records everything the reader hands to the pipeline.
type fakePipe struct {
	mu     sync.Mutex
	texts  []queued
	audio  []string
	asides []string
}

func (f *fakePipe) Enqueue(text string, voiceID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, queued{text, voiceID})
}

func (f *fakePipe) EnqueueAudio(label string, _ []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, label)
}

func (f *fakePipe) PlayAside(_ context.Context, label string, _ []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asides = append(f.asides, label)
}

func (f *fakePipe) snapshot() (texts []queued, audio, asides []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queued(nil), f.texts...),
		append([]string(nil), f.audio...),
		append([]string(nil), f.asides...)
}

func newTestReader(t *testing.T, mutate func(*Config)) (*Reader, *fakePipe, *settings.MemStore) {
	t.Helper()
	pipe := &fakePipe{}
	store := settings.NewMemStore()
	cfg := Config{
		Pipeline:     pipe,
		Resolver:     settings.NewResolver(store),
		Store:        store,
		Transform:    transform.New(transform.Config{}),
		Formatter:    command.New(nil),
		Sounds:       sound.NewBank(sound.Config{}),
		SoundEnabled: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), pipe, store
}

func TestHandle_NormalCommentQueued(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, nil)

	ok := r.Handle(context.Background(), transport.Event{
		Comment: "こんにちは@ロータス{v:5}",
		UserID:  "guest-1",
	})
	if !ok {
		t.Fatal("Handle = false for a speakable comment")
	}

	texts, _, _ := pipe.snapshot()
	if len(texts) != 1 {
		t.Fatalf("queued %d texts, want 1", len(texts))
	}
	if texts[0].Text != "こんにちは" {
		t.Errorf("text = %q, want こんにちは", texts[0].Text)
	}
	if texts[0].Voice != 5 {
		t.Errorf("voice = %d, want inline 5", texts[0].Voice)
	}
}

func TestHandle_MailFlagsSkipButSettingsPersist(t *testing.T) {
	t.Parallel()

	r, pipe, store := newTestReader(t, nil)

	ok := r.Handle(context.Background(), transport.Event{
		Comment: "こっそり@静香{v:7}",
		UserID:  "42",
		Mail:    "184",
	})
	if ok {
		t.Fatal("Handle = true for a mail-silenced comment")
	}

	texts, _, _ := pipe.snapshot()
	if len(texts) != 0 {
		t.Errorf("queued %d texts, want 0", len(texts))
	}

	// The inline settings still reached the store.
	p, err := store.Get(context.Background(), "42")
	if err != nil || p == nil {
		t.Fatalf("Get = %v, %v; want stored profile", p, err)
	}
	if p.Voice == nil || *p.Voice != 7 || p.Name != "静香" {
		t.Errorf("stored profile = %+v, want voice 7 and name 静香", p)
	}
}

func TestHandle_ShortTextSkipped(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, nil)

	for _, text := range []string{"", "  ", "w", "。"} {
		if r.Handle(context.Background(), transport.Event{Comment: text, UserID: "1"}) {
			t.Errorf("Handle(%q) = true, want skip", text)
		}
	}
	texts, _, _ := pipe.snapshot()
	if len(texts) != 0 {
		t.Errorf("queued %d texts, want 0", len(texts))
	}
}

func TestHandle_GiftCommandSpeaksAndChimes(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, nil)

	ok := r.Handle(context.Background(), transport.Event{
		Comment: `/gift nicolive_audition_orange 126050768 "ゲスト" 15 "" "応援 メガホン"`,
		UserID:  "o:system",
	})
	if !ok {
		t.Fatal("Handle = false for a gift command")
	}

	texts, _, asides := pipe.snapshot()
	if len(texts) != 1 {
		t.Fatalf("queued %d texts, want 1", len(texts))
	}
	if want := "ゲストさんが15ポイント応援メガホンをギフトしました"; texts[0].Text != want {
		t.Errorf("announcement = %q, want %q", texts[0].Text, want)
	}
	if texts[0].Voice != DefaultOperatorVoice {
		t.Errorf("voice = %d, want operator voice %d", texts[0].Voice, DefaultOperatorVoice)
	}
	if len(asides) != 1 || asides[0] != "sound:gift" {
		t.Errorf("asides = %v, want the gift clip", asides)
	}
}

func TestHandle_BareCommandPlaysClipOnly(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, nil)

	ok := r.Handle(context.Background(), transport.Event{
		Comment: "/disconnect",
		UserID:  "o:system",
	})
	if !ok {
		t.Fatal("Handle = false for a bare command")
	}

	texts, audio, asides := pipe.snapshot()
	if len(texts) != 0 {
		t.Errorf("queued %d texts, want 0", len(texts))
	}
	if len(audio) != 1 || audio[0] != "sound:disconnect" {
		t.Errorf("audio = %v, want the disconnect clip in the ordered queue", audio)
	}
	if len(asides) != 0 {
		t.Errorf("asides = %v, want none", asides)
	}
}

func TestHandle_SoundDisabledSpeaksWithoutClip(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, func(cfg *Config) {
		cfg.SoundEnabled = false
	})

	r.Handle(context.Background(), transport.Event{
		Comment: "/info 10 アンケートが開始されました",
		UserID:  "o:system",
	})

	texts, audio, asides := pipe.snapshot()
	if len(texts) != 1 || !strings.Contains(texts[0].Text, "アンケート") {
		t.Errorf("texts = %v, want the announcement", texts)
	}
	if len(audio) != 0 || len(asides) != 0 {
		t.Errorf("audio = %v, asides = %v, want no clips with sound disabled", audio, asides)
	}
}

func TestHandle_OperatorVoiceConfigurable(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, func(cfg *Config) {
		cfg.OperatorVoice = 9
	})

	r.Handle(context.Background(), transport.Event{
		Comment: "/info 3 延長されました",
		UserID:  "o:system",
	})

	texts, _, _ := pipe.snapshot()
	if len(texts) != 1 || texts[0].Voice != 9 {
		t.Errorf("texts = %v, want operator voice 9", texts)
	}
}

func TestHandle_CustomSkipWords(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, func(cfg *Config) {
		cfg.SkipWords = []string{"quiet"}
	})

	if r.Handle(context.Background(), transport.Event{Comment: "hello there", UserID: "1", Mail: "QUIET"}) {
		t.Error("Handle = true, want skip on configured word")
	}
	// The default words no longer apply.
	if !r.Handle(context.Background(), transport.Event{Comment: "hello there", UserID: "1", Mail: "184"}) {
		t.Error("Handle = false, want 184 ignored with custom skip words")
	}
	texts, _, _ := pipe.snapshot()
	if len(texts) != 1 {
		t.Errorf("queued %d texts, want 1", len(texts))
	}
}

func TestHandle_RawIDNicknameAutoSaved(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<response><user><nickname>かなで</nickname></user></response>`))
	}))
	defer srv.Close()

	r, _, store := newTestReader(t, func(cfg *Config) {
		cfg.Fetcher = userinfo.NewFetcher(userinfo.WithAPIURL(srv.URL))
	})

	r.Handle(context.Background(), transport.Event{Comment: "はじめまして", UserID: "126050768"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, _ := store.Get(context.Background(), "126050768")
		if p != nil && p.Name == "かなで" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("nickname was never auto-saved")
}

func TestHandle_StoredNameBlocksNicknameFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("user-info API called despite a stored name")
	}))
	defer srv.Close()

	r, _, store := newTestReader(t, func(cfg *Config) {
		cfg.Fetcher = userinfo.NewFetcher(userinfo.WithAPIURL(srv.URL))
	})

	if err := store.Put(context.Background(), "777", settings.Profile{Name: "既存"}); err != nil {
		t.Fatal(err)
	}

	r.Handle(context.Background(), transport.Event{Comment: "ただいま", UserID: "777"})
	// Give the background lookup a moment to (not) fire.
	time.Sleep(50 * time.Millisecond)
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	t.Parallel()

	r, pipe, _ := newTestReader(t, nil)

	events := make(chan transport.Event, 1)
	events <- transport.Event{Comment: "こんにちは", UserID: "1"}
	close(events)

	if err := r.Run(context.Background(), events); err != nil {
		t.Fatalf("Run = %v, want nil on channel close", err)
	}
	texts, _, _ := pipe.snapshot()
	if len(texts) != 1 {
		t.Errorf("queued %d texts, want 1", len(texts))
	}
}
