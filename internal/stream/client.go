// Package stream implements the venue websocket client: new-token and
// per-token trade subscriptions with automatic reconnect and
// resubscription.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"token-sentry/internal/observability"
)

// Config configures websocket client behavior.
type Config struct {
	// Endpoint is the venue websocket URL.
	Endpoint string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// StaleAfter unsubscribes a token with no trade activity for this
	// long. Zero disables the sweep.
	StaleAfter time.Duration
	// SweepInterval is how often the stale sweep runs.
	SweepInterval time.Duration
	// Buffer is the outbound message channel depth.
	Buffer int
}

// DefaultConfig returns default websocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		StaleAfter:        1 * time.Hour,
		SweepInterval:     1 * time.Minute,
		Buffer:            10000,
	}
}

type request struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// Client is the venue websocket client. Raw messages are delivered on
// Messages; decoding and validation happen downstream.
type Client struct {
	cfg     Config
	logger  *log.Logger
	metrics *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan json.RawMessage
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool

	// watched maps subscribed mints to their last activity (ms), for
	// resubscription after reconnect and for the stale sweep.
	watched   map[string]int64
	newTokens bool
	watchedMu sync.Mutex
}

// NewClient creates a client and connects to the endpoint.
func NewClient(ctx context.Context, cfg Config, logger *log.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("stream: endpoint required")
	}
	def := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		out:     make(chan json.RawMessage, cfg.Buffer),
		done:    make(chan struct{}),
		watched: make(map[string]int64),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	if cfg.StaleAfter > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}

	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Messages returns the raw inbound message channel. Closed on Close.
func (c *Client) Messages() <-chan json.RawMessage {
	return c.out
}

// SubscribeNewTokens subscribes to token creation events.
func (c *Client) SubscribeNewTokens() error {
	c.watchedMu.Lock()
	c.newTokens = true
	c.watchedMu.Unlock()
	return c.send(request{Method: "subscribeNewToken"})
}

// WatchTokens subscribes to trade events for the given mints.
func (c *Client) WatchTokens(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	c.watchedMu.Lock()
	for _, m := range mints {
		if _, ok := c.watched[m]; !ok {
			c.watched[m] = now
		}
	}
	c.watchedMu.Unlock()
	return c.send(request{Method: "subscribeTokenTrade", Keys: mints})
}

// UnwatchTokens unsubscribes trade events for the given mints.
func (c *Client) UnwatchTokens(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}
	c.watchedMu.Lock()
	for _, m := range mints {
		delete(c.watched, m)
	}
	c.watchedMu.Unlock()
	return c.send(request{Method: "unsubscribeTokenTrade", Keys: mints})
}

// Touch records trade activity for a mint so the stale sweep keeps it.
func (c *Client) Touch(mint string) {
	c.watchedMu.Lock()
	if _, ok := c.watched[mint]; ok {
		c.watched[mint] = time.Now().UnixMilli()
	}
	c.watchedMu.Unlock()
}

// WatchedCount returns the number of tokens with a trade subscription.
func (c *Client) WatchedCount() int {
	c.watchedMu.Lock()
	defer c.watchedMu.Unlock()
	return len(c.watched)
}

func (c *Client) send(req request) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	if c.metrics != nil {
		c.metrics.MessagesSent.Inc()
	}
	return nil
}

// Close closes the websocket connection and the message channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.out)
	return nil
}

// readLoop reads messages and forwards them to the message channel,
// reconnecting with exponential backoff on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.cfg.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.cfg.MaxReconnectDelay {
				reconnectDelay = c.cfg.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.cfg.ReconnectDelay

		if c.metrics != nil {
			c.metrics.EventsReceived.Inc()
		}

		select {
		case c.out <- json.RawMessage(message):
		case <-c.done:
			return
		}
	}
}

// reconnect attempts to reconnect and restore all subscriptions.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Will retry on next read error.
		c.logger.Printf("[stream] reconnect failed: %v", err)
		return
	}
	if c.metrics != nil {
		c.metrics.StreamReconnects.Inc()
	}
	c.logger.Println("[stream] reconnected, restoring subscriptions")
	c.resubscribeAll()
}

// resubscribeAll restores the new-token and trade subscriptions after a
// reconnect.
func (c *Client) resubscribeAll() {
	c.watchedMu.Lock()
	newTokens := c.newTokens
	mints := make([]string, 0, len(c.watched))
	for m := range c.watched {
		mints = append(mints, m)
	}
	c.watchedMu.Unlock()

	if newTokens {
		if err := c.send(request{Method: "subscribeNewToken"}); err != nil {
			c.logger.Printf("[stream] resubscribe new tokens: %v", err)
		}
	}
	if len(mints) > 0 {
		if err := c.send(request{Method: "subscribeTokenTrade", Keys: mints}); err != nil {
			c.logger.Printf("[stream] resubscribe %d tokens: %v", len(mints), err)
		}
	}
}

// sweepLoop unsubscribes tokens with no trade activity past StaleAfter.
func (c *Client) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweepStale(time.Now().UnixMilli())
		}
	}
}

func (c *Client) sweepStale(now int64) {
	cutoff := now - c.cfg.StaleAfter.Milliseconds()

	c.watchedMu.Lock()
	var stale []string
	for m, last := range c.watched {
		if last <= cutoff {
			stale = append(stale, m)
		}
	}
	c.watchedMu.Unlock()

	if len(stale) == 0 {
		return
	}
	c.logger.Printf("[stream] unsubscribing %d stale tokens", len(stale))
	if err := c.UnwatchTokens(stale...); err != nil {
		c.logger.Printf("[stream] stale unsubscribe: %v", err)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
