// Package voicevox provides a TTS provider backed by a locally-running
// VOICEVOX engine via its REST API. It implements the tts.Provider interface.
//
// Synthesis is a two-step protocol: POST /audio_query builds the prosody
// query for an utterance, the provider injects the requested speed scale
// into that query, and POST /synthesis renders it to WAV. The two steps
// carry independent timeouts because query generation is cheap while
// waveform rendering can take tens of seconds for long utterances.
//
// Typical usage:
//
//	p, err := voicevox.New("http://localhost:50021",
//	    voicevox.WithSynthesisTimeout(45*time.Second),
//	)
//	wav, err := p.Synthesize(ctx, "こんにちは", 2, 1.2)
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hikaline/kanade/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	// DefaultServerURL is the VOICEVOX engine's standard listen address.
	DefaultServerURL = "http://localhost:50021"

	audioQueryEndpoint = "/audio_query"
	synthesisEndpoint  = "/synthesis"
	speakersEndpoint   = "/speakers"

	defaultQueryTimeout     = 10 * time.Second
	defaultSynthesisTimeout = 30 * time.Second

	// maxTextRunes bounds utterance length; overlong comments are truncated
	// with an ellipsis rather than rejected.
	maxTextRunes = 200
)

// Option is a functional option for configuring a VOICEVOX Provider.
type Option func(*Provider)

// WithQueryTimeout sets the timeout for the /audio_query step.
// Defaults to 10 s if not set.
func WithQueryTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.queryTimeout = d
	}
}

// WithSynthesisTimeout sets the timeout for the /synthesis step.
// Defaults to 30 s if not set.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.synthesisTimeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for all engine calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by a VOICEVOX engine. It is safe
// for concurrent use; multiple Synthesize calls may run in parallel.
type Provider struct {
	serverURL        string
	httpClient       *http.Client
	queryTimeout     time.Duration
	synthesisTimeout time.Duration
}

// New creates a Provider that targets the VOICEVOX engine at serverURL.
// An empty serverURL selects [DefaultServerURL].
func New(serverURL string, opts ...Option) *Provider {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	p := &Provider{
		serverURL:        serverURL,
		httpClient:       &http.Client{},
		queryTimeout:     defaultQueryTimeout,
		synthesisTimeout: defaultSynthesisTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize renders text as a WAV clip. Text longer than maxTextRunes is
// truncated with an ellipsis before the query step.
func (p *Provider) Synthesize(ctx context.Context, text string, speakerID int, speed float64) ([]byte, error) {
	text = truncate(text)

	query, err := p.audioQuery(ctx, text, speakerID)
	if err != nil {
		return nil, err
	}
	query["speedScale"] = speed

	return p.synthesis(ctx, query, speakerID)
}

// audioQuery performs POST /audio_query and returns the prosody query as a
// generic map so the caller can adjust fields before rendering.
func (p *Provider) audioQuery(ctx context.Context, text string, speakerID int) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(speakerID))

	reqURL := p.serverURL + audioQueryEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create audio-query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", audioQueryEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: POST %s returned status %d", audioQueryEndpoint, resp.StatusCode)
	}

	var query map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("voicevox: decode audio query: %w", err)
	}
	return query, nil
}

// synthesis performs POST /synthesis with the prepared query and returns the
// WAV bytes.
func (p *Provider) synthesis(ctx context.Context, query map[string]any, speakerID int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.synthesisTimeout)
	defer cancel()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("voicevox: marshal audio query: %w", err)
	}

	params := url.Values{}
	params.Set("speaker", strconv.Itoa(speakerID))

	reqURL := p.serverURL + synthesisEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voicevox: create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", synthesisEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: POST %s returned status %d", synthesisEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voicevox: read WAV response: %w", err)
	}
	return wav, nil
}

// speakerEntry is one element of the GET /speakers response.
type speakerEntry struct {
	Name   string `json:"name"`
	Styles []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"styles"`
}

// ListSpeakers retrieves the engine's speaker catalogue via GET /speakers,
// flattened to one [tts.Speaker] per style.
func (p *Provider) ListSpeakers(ctx context.Context) ([]tts.Speaker, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+speakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create list-speakers request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: GET %s: %w", speakersEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: GET %s returned status %d", speakersEndpoint, resp.StatusCode)
	}

	var entries []speakerEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("voicevox: decode speakers response: %w", err)
	}

	var speakers []tts.Speaker
	for _, e := range entries {
		for _, s := range e.Styles {
			speakers = append(speakers, tts.Speaker{
				ID:    s.ID,
				Name:  e.Name,
				Style: s.Name,
			})
		}
	}
	return speakers, nil
}

// truncate caps text at maxTextRunes, replacing the tail with an ellipsis.
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTextRunes {
		return text
	}
	return string(runes[:maxTextRunes-3]) + "..."
}
