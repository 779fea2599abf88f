// Package userinfo resolves viewer identities. Raw numeric account IDs can
// be turned into a display nickname through the platform's public user-info
// API, and into an avatar URL on the image CDN. Anonymous and operator IDs
// carry no public identity and are only classified.
package userinfo

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultAPIURL is the public user-info endpoint. The response is XML with
// a nickname element somewhere under the user record.
const DefaultAPIURL = "http://seiga.nicovideo.jp/api/user/info"

const iconBaseURL = "https://secure-dcdn.cdn.nimg.jp/nicoaccount/usericon/"

const defaultTimeout = 5 * time.Second

// Fetcher looks up nicknames for raw user IDs. Successful lookups are
// memoised so one viewer costs at most one API call per process lifetime.
// Safe for concurrent use.
type Fetcher struct {
	apiURL string
	client *http.Client

	mu    sync.RWMutex
	cache map[string]string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithAPIURL overrides the user-info endpoint, mainly for tests.
func WithAPIURL(u string) Option {
	return func(f *Fetcher) { f.apiURL = u }
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a nickname fetcher against the public API.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		apiURL: DefaultAPIURL,
		client: &http.Client{Timeout: defaultTimeout},
		cache:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Nickname resolves the display name for a raw user ID, consulting the
// memo cache first.
func (f *Fetcher) Nickname(ctx context.Context, userID string) (string, error) {
	f.mu.RLock()
	cached, ok := f.cache[userID]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	nick, err := f.fetch(ctx, userID)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.cache[userID] = nick
	f.mu.Unlock()
	return nick, nil
}

// Invalidate drops a cached nickname so the next lookup hits the API
// again. A no-op for IDs never cached.
func (f *Fetcher) Invalidate(userID string) {
	f.mu.Lock()
	delete(f.cache, userID)
	f.mu.Unlock()
}

func (f *Fetcher) fetch(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"?id="+url.QueryEscape(userID), nil)
	if err != nil {
		return "", fmt.Errorf("userinfo: creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo: requesting user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo: user %s: unexpected status %d", userID, resp.StatusCode)
	}

	nick, err := nicknameFromXML(resp.Body)
	if err != nil {
		return "", fmt.Errorf("userinfo: user %s: %w", userID, err)
	}
	return nick, nil
}

// nicknameFromXML scans for the first nickname element at any depth, which
// tolerates schema drift around it.
func nicknameFromXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("no nickname in response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "nickname" {
			continue
		}
		var nick string
		if err := dec.DecodeElement(&nick, &start); err != nil {
			return "", fmt.Errorf("decoding nickname: %w", err)
		}
		return nick, nil
	}
}

// IconURL returns the CDN address of a user's avatar. Short IDs live flat
// in the bucket root while longer ones are sharded by everything except
// the last four digits.
func IconURL(userID string) string {
	if len(userID) <= 4 {
		return iconBaseURL + userID + ".jpg"
	}
	return iconBaseURL + userID[:len(userID)-4] + "/" + userID + ".jpg"
}
