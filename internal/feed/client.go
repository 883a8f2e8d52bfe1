package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/modryx/warden/internal/event"
	"github.com/modryx/warden/internal/setup/config"
	"go.uber.org/zap"
)

// ErrAuth indicates the feed rejected the credential. Unlike network
// failures this is surfaced once and never auto-retried.
var ErrAuth = errors.New("feed rejected credential")

// ConnState is the feed connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// Client maintains the persistent duplex connection to the platform's
// push endpoint. The feed is the operator's primary lifeline, so
// reconnect attempts are unbounded with a fixed interval between them.
type Client struct {
	endpoint         string
	interval         time.Duration
	handshakeTimeout time.Duration
	logger           *zap.Logger
	subs             *subscriptions

	running    atomic.Bool
	state      atomic.Int32
	credential string

	connMu sync.Mutex
	conn   *websocket.Conn

	// lastFrame survives reconnects because the feed is known to repeat
	// its last delivered frame on some reconnect paths.
	lastFrame []byte

	done chan struct{}
}

// NewClient creates a feed client from configuration.
func NewClient(cfg *config.Feed, logger *zap.Logger) *Client {
	handshake := time.Duration(cfg.HandshakeTimeout) * time.Second
	if handshake <= 0 {
		handshake = 10 * time.Second
	}

	return &Client{
		endpoint:         cfg.Endpoint,
		interval:         cfg.ReconnectIntervalDuration(),
		handshakeTimeout: handshake,
		logger:           logger.Named("feed"),
		subs:             newSubscriptions(logger.Named("feed")),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Subscribe registers a handler for an event kind, or for every kind via
// event.KindWildcard. Each call creates a distinct subscription; the
// returned token removes it again via Unsubscribe.
func (c *Client) Subscribe(kind event.Kind, handler event.Handler) SubscriptionID {
	return c.subs.add(kind, handler)
}

// Unsubscribe removes a subscription by its token.
func (c *Client) Unsubscribe(kind event.Kind, id SubscriptionID) {
	c.subs.remove(kind, id)
}

// Connect establishes the feed with the given credential. The first
// attempt runs synchronously so an auth rejection surfaces to the
// caller; any other failure starts the reconnect loop anyway, since a
// transient error must never be treated as fatal.
func (c *Client) Connect(ctx context.Context, credential string) error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}

	c.credential = credential
	c.done = make(chan struct{})

	err := c.connect(ctx)
	if errors.Is(err, ErrAuth) {
		c.running.Store(false)
		close(c.done)

		return err
	}

	go c.run(ctx)

	if err != nil {
		return fmt.Errorf("initial feed connection failed, retrying in background: %w", err)
	}

	return nil
}

// Disconnect tears the connection down cleanly and stops the loop.
func (c *Client) Disconnect() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.closeConn()
	<-c.done
}

// run drives the receive/reconnect cycle while the client is running.
// Backoff is a fixed interval and the attempt counter effectively
// resets on every successful connection because retries are unbounded.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for c.running.Load() && ctx.Err() == nil {
		if c.State() == StateConnected {
			c.receive()
		}

		if !c.running.Load() || ctx.Err() != nil {
			return
		}

		// The full interval applies before the first reconnect attempt
		// too, not just between failed ones
		if !c.awaitInterval(ctx) {
			return
		}

		policy := backoff.WithContext(backoff.NewConstantBackOff(c.interval), ctx)

		err := backoff.Retry(func() error {
			if !c.running.Load() {
				return backoff.Permanent(context.Canceled)
			}

			err := c.connect(ctx)
			if errors.Is(err, ErrAuth) {
				// A rejected token needs new credentials, not retries
				return backoff.Permanent(err)
			}

			return err
		}, policy)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				c.logger.Error("Feed credential rejected during reconnect", zap.Error(err))
			}

			return
		}
	}
}

// awaitInterval waits one reconnect interval. It reports false when the
// wait was cut short by cancellation or the client stopped meanwhile.
func (c *Client) awaitInterval(ctx context.Context) bool {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return c.running.Load()
	}
}

// connect performs a single connection attempt.
func (c *Client) connect(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, c.endpoint+"?authToken="+c.credential, nil)
	if err != nil {
		c.state.Store(int32(StateDisconnected))

		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
		}

		c.logger.Warn("Feed connection attempt failed", zap.Error(err))

		return fmt.Errorf("failed to dial feed endpoint: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.state.Store(int32(StateConnected))
	c.logger.Info("Feed connected", zap.String("endpoint", c.endpoint))

	c.subs.dispatch(event.New(event.KindConnected))

	return nil
}

// receive reads frames until the connection drops, normalizing and
// dispatching each one in arrival order.
func (c *Client) receive() {
	defer func() {
		c.state.Store(int32(StateDisconnected))
		c.closeConn()
		c.subs.dispatch(event.New(event.KindDisconnected))
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.running.Load() {
				c.logger.Warn("Feed connection lost", zap.Error(err))
			}

			return
		}

		c.handleFrame(data)
	}
}

// handleFrame deduplicates, decodes, and dispatches one raw frame.
func (c *Client) handleFrame(data []byte) {
	// Dedup compares the raw frame, not the decoded structure
	if bytes.Equal(data, c.lastFrame) {
		c.logger.Debug("Dropping repeated frame")
		return
	}

	c.lastFrame = bytes.Clone(data)

	evt, err := decodeFrame(data)
	if err != nil {
		// A malformed frame is dropped without touching connection state
		c.logger.Warn("Dropping malformed frame", zap.Error(err))
		return
	}

	c.subs.dispatch(evt)
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
