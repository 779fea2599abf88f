package voicevox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSynthesize_TwoStepProtocol(t *testing.T) {
	t.Parallel()

	wantWAV := []byte("RIFF....WAVEfake")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_query":
			if r.Method != http.MethodPost {
				t.Errorf("audio_query method = %s, want POST", r.Method)
			}
			if got := r.URL.Query().Get("text"); got != "こんにちは" {
				t.Errorf("text param = %q, want こんにちは", got)
			}
			if got := r.URL.Query().Get("speaker"); got != "2" {
				t.Errorf("speaker param = %q, want 2", got)
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"speedScale":1.0,"pitchScale":0.0}`)
		case "/synthesis":
			if got := r.URL.Query().Get("speaker"); got != "2" {
				t.Errorf("speaker param = %q, want 2", got)
			}
			var query map[string]any
			if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
				t.Errorf("decode synthesis body: %v", err)
			}
			if got, ok := query["speedScale"].(float64); !ok || got != 1.5 {
				t.Errorf("speedScale = %v, want 1.5", query["speedScale"])
			}
			if _, ok := query["pitchScale"]; !ok {
				t.Error("synthesis body lost the pitchScale field from the query step")
			}
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wantWAV)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := New(srv.URL)

	got, err := p.Synthesize(context.Background(), "こんにちは", 2, 1.5)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != string(wantWAV) {
		t.Errorf("Synthesize = %q, want %q", got, wantWAV)
	}
}

func TestSynthesize_QueryErrorStopsEarly(t *testing.T) {
	t.Parallel()

	synthesisCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/synthesis" {
			synthesisCalled = true
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := New(srv.URL)

	if _, err := p.Synthesize(context.Background(), "hi", 1, 1.0); err == nil {
		t.Fatal("Synthesize succeeded, want error")
	}
	if synthesisCalled {
		t.Error("synthesis was called after a failed audio query")
	}
}

func TestSynthesize_TruncatesLongText(t *testing.T) {
	t.Parallel()

	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio_query" {
			gotText = r.URL.Query().Get("text")
			io.WriteString(w, `{}`)
			return
		}
		w.Write([]byte("wav"))
	}))
	defer srv.Close()

	p := New(srv.URL)

	long := strings.Repeat("あ", 300)
	if _, err := p.Synthesize(context.Background(), long, 1, 1.0); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	runes := []rune(gotText)
	if len(runes) != maxTextRunes {
		t.Errorf("sent %d runes, want %d", len(runes), maxTextRunes)
	}
	if !strings.HasSuffix(gotText, "...") {
		t.Errorf("truncated text %q does not end with ellipsis", gotText[len(gotText)-12:])
	}
}

func TestListSpeakers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speakers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"name":"四国めたん","styles":[{"id":2,"name":"ノーマル"},{"id":0,"name":"あまあま"}]},
			{"name":"ずんだもん","styles":[{"id":3,"name":"ノーマル"}]}
		]`)
	}))
	defer srv.Close()

	p := New(srv.URL)

	speakers, err := p.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 3 {
		t.Fatalf("got %d speakers, want 3", len(speakers))
	}
	if speakers[0].ID != 2 || speakers[0].Name != "四国めたん" || speakers[0].Style != "ノーマル" {
		t.Errorf("speakers[0] = %+v", speakers[0])
	}
	if speakers[2].ID != 3 || speakers[2].Name != "ずんだもん" {
		t.Errorf("speakers[2] = %+v", speakers[2])
	}
}

func TestNew_DefaultServerURL(t *testing.T) {
	t.Parallel()

	p := New("")
	if p.serverURL != DefaultServerURL {
		t.Errorf("serverURL = %q, want %q", p.serverURL, DefaultServerURL)
	}
}
