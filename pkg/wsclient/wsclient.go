// Package wsclient is a reconnecting client for the order updates socket.
// It dials /ws/orders with a token, forwards messages on a channel, and
// reconnects with capped exponential backoff when the connection drops.
package wsclient

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message is one push from the server: type "new_order" or "order_update",
// the order object, and the server-side send time.
type Message struct {
	Type      string          `json:"type"`
	Order     json.RawMessage `json:"order"`
	Timestamp time.Time       `json:"timestamp"`
}

type Config struct {
	// URL is the ws:// or wss:// endpoint, without the token parameter.
	URL   string
	Token string

	PingInterval time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration

	Log zerolog.Logger
}

type Client struct {
	cfg     Config
	updates chan Message
}

// Close codes the server uses for authentication failures. Reconnecting
// after one of these would loop forever, so the client gives up instead.
const (
	closeNoToken   = 4001
	closeBadToken  = 4003
	closeNoProfile = 4004
)

func New(cfg Config) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	return &Client{cfg: cfg, updates: make(chan Message, 64)}
}

// Updates delivers server pushes. The channel closes when Run returns.
func (c *Client) Updates() <-chan Message { return c.updates }

// Run connects and keeps the connection alive until ctx is cancelled or the
// server rejects the token.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.updates)

	var attempt int
	for {
		connected, err := c.connectOnce(ctx)
		if err == nil {
			// Clean shutdown.
			return nil
		}
		if isAuthClose(err) {
			c.cfg.Log.Error().Err(err).Msg("ws auth rejected, giving up")
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt = nextAttempt(attempt, connected)
		d := Backoff(attempt, c.cfg.BackoffBase, c.cfg.BackoffMax)
		c.cfg.Log.Warn().Err(err).Dur("retry_in", d).Int("attempt", attempt).Msg("ws disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// connectOnce dials and services one connection. The bool reports whether
// the dial succeeded, so the caller can tell a failed dial from a drop.
func (c *Client) connectOnce(ctx context.Context) (bool, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return false, err
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.cfg.Log.Info().Msg("ws connected")

	done := make(chan error, 1)
	go func() { done <- c.readLoop(conn) }()

	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			<-done
			return true, nil
		case err := <-done:
			return true, err
		case <-ping.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
				<-done
				return true, err
			}
		}
	}
}

// nextAttempt advances the reconnect counter. A drop after a successful dial
// starts the backoff over; only consecutive failed dials escalate it.
func nextAttempt(attempt int, connected bool) int {
	if connected {
		return 1
	}
	return attempt + 1
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.cfg.Log.Debug().Err(err).Msg("ws bad message, skipping")
			continue
		}
		if msg.Type == "pong" {
			continue
		}
		select {
		case c.updates <- msg:
		default:
			c.cfg.Log.Warn().Str("type", msg.Type).Msg("ws updates buffer full, dropping")
		}
	}
}

func isAuthClose(err error) bool {
	return websocket.IsCloseError(err, closeNoToken, closeBadToken, closeNoProfile)
}

// Backoff returns base*2^(attempt-1) capped at max, plus up to 25% jitter.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > max || d <= 0 {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
