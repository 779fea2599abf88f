// Package transport maintains the WebSocket connection to the comment feed.
//
// Inbound frames are JSON comment events pushed onto a buffered channel;
// frames that fail to decode are discarded with a log line. The client
// reconnects with exponential backoff until its context is cancelled.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/hikaline/kanade/internal/resilience"
)

// DefaultFeedURL is the local comment feed endpoint.
const DefaultFeedURL = "ws://localhost:8765"

const (
	defaultEventBuffer = 64
	defaultDialTimeout = 10 * time.Second
)

// Event is one inbound comment frame. Fields absent from the frame stay
// at their zero values. The feed writes comment_no as a bare JSON number.
type Event struct {
	Comment   string `json:"comment"`
	UserID    string `json:"user_id"`
	Mail      string `json:"mail"`
	CommentNo int    `json:"comment_no"`
	Premium   int    `json:"premium"`
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`
}

// outbound is the frame shape for comments sent back to the feed.
type outbound struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("transport: not connected")

// Option configures a Client.
type Option func(*Client)

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// Client connects to the comment feed and delivers decoded events.
type Client struct {
	url         string
	buffer      int
	dialTimeout time.Duration

	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a feed client for the given WebSocket URL. An empty URL
// selects [DefaultFeedURL].
func New(feedURL string, opts ...Option) *Client {
	c := &Client{
		url:         feedURL,
		buffer:      defaultEventBuffer,
		dialTimeout: defaultDialTimeout,
	}
	if c.url == "" {
		c.url = DefaultFeedURL
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan Event, c.buffer)
	return c
}

// Events returns the channel of decoded inbound events. The channel is
// closed when Run returns.
func (c *Client) Events() <-chan Event { return c.events }

// Run connects to the feed and pumps events until ctx is cancelled,
// reconnecting with backoff after connection loss. It always returns
// ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	var backoff resilience.Backoff
	for {
		if err := c.connectOnce(ctx, &backoff); err != nil {
			return err
		}
		if err := resilience.Sleep(ctx, backoff.Next()); err != nil {
			return err
		}
	}
}

// connectOnce dials the feed and reads frames until the connection drops.
// A non-nil return means ctx is done.
func (c *Client) connectOnce(ctx context.Context, backoff *resilience.Backoff) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("transport: dial failed", "url", c.url, "err", err)
		return nil
	}
	// Comment bursts can exceed the library's default read limit.
	conn.SetReadLimit(1 << 20)

	slog.Info("transport: connected", "url", c.url)
	backoff.Reset()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	readErr := c.readLoop(ctx, conn)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "reconnecting")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.Warn("transport: connection lost", "url", c.url, "err", readErr)
	return nil
}

// readLoop decodes frames until the connection errors out.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("transport: discarding malformed frame", "err", err)
			continue
		}

		select {
		case c.events <- ev:
		default:
			// Receiver is stalled. Dropping beats blocking the read loop.
			slog.Warn("transport: event buffer full, dropping frame")
		}
	}
}

// Send posts a comment back to the feed.
func (c *Client) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(outbound{Action: "send_comment", Message: message})
	if err != nil {
		return fmt.Errorf("transport: encoding outbound frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("transport: sending comment: %w", err)
	}
	return nil
}
