package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/modryx/warden/internal/setup/config"
	"go.uber.org/zap"
)

var ErrOverlayUnavailable = errors.New("overlay channel is not connected")

const overlayWriteTimeout = 2 * time.Second

// overlayCommand is the JSON command sent to the overlay endpoint.
type overlayCommand struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Icon    string `json:"icon,omitempty"`
	Timeout int    `json:"timeout"`
}

// overlayFrame is an inbound frame from the overlay, carrying either a
// command acknowledgement or rendering telemetry.
type overlayFrame struct {
	Type     string  `json:"type"`
	GPUUsage float64 `json:"gpuUsage"`
}

// OverlayChannel delivers notifications to the VR overlay over a local
// websocket endpoint. Unlike the feed client, reconnects are capped at a
// maximum attempt count; once exhausted the channel reports unavailable
// and the dispatcher falls back.
type OverlayChannel struct {
	endpoint     string
	datagramAddr string
	maxAttempts  int
	interval     time.Duration
	logger       *zap.Logger

	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	gpuBits   atomic.Uint64
	running   atomic.Bool
	done      chan struct{}
}

// NewOverlayChannel creates an overlay channel from configuration.
func NewOverlayChannel(cfg *config.Overlay, logger *zap.Logger) *OverlayChannel {
	interval := time.Duration(cfg.ReconnectInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &OverlayChannel{
		endpoint:     cfg.Endpoint,
		datagramAddr: cfg.DatagramAddr,
		maxAttempts:  maxAttempts,
		interval:     interval,
		logger:       logger.Named("overlay"),
	}
}

// Start launches the connect/read loop. It returns immediately; delivery
// is attempted only while the channel reports connected.
func (o *OverlayChannel) Start(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		return
	}

	o.done = make(chan struct{})

	go o.run(ctx)
}

// Stop tears the channel down and waits for the loop to exit.
func (o *OverlayChannel) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}

	o.closeConn()
	<-o.done
}

// Connected reports whether the overlay endpoint is currently reachable.
func (o *OverlayChannel) Connected() bool {
	return o.connected.Load()
}

// GPUUsage returns the last usage ratio reported by overlay telemetry.
func (o *OverlayChannel) GPUUsage() float64 {
	return math.Float64frombits(o.gpuBits.Load())
}

// Notify renders and sends one notification command. The thumbnail, when
// present, is downscaled and embedded as a base64 icon; a bad thumbnail
// is logged and the notification is sent without it.
func (o *OverlayChannel) Notify(req *Request) error {
	if !o.connected.Load() {
		return ErrOverlayUnavailable
	}

	cmd := overlayCommand{
		Type:    "notification",
		Title:   string(req.Category),
		Content: FormatAlertMessage(req),
		Timeout: 5,
	}

	if len(req.Thumbnail) > 0 {
		icon, err := encodeThumbnail(req.Thumbnail)
		if err != nil {
			o.logger.Warn("Failed to encode alert thumbnail", zap.Error(err))
		} else {
			cmd.Icon = icon
		}
	}

	payload, err := sonic.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal overlay command: %w", err)
	}

	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	conn := o.conn
	if conn == nil {
		return ErrOverlayUnavailable
	}

	_ = conn.SetWriteDeadline(time.Now().Add(overlayWriteTimeout))

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write overlay command: %w", err)
	}

	return nil
}

// SendDatagram publishes a simple notification over the fire-and-forget
// UDP transport, bypassing the command connection entirely.
func (o *OverlayChannel) SendDatagram(req *Request) error {
	conn, err := net.Dial("udp", o.datagramAddr)
	if err != nil {
		return fmt.Errorf("failed to dial overlay datagram address: %w", err)
	}
	defer conn.Close()

	payload, err := sonic.Marshal(overlayCommand{
		Type:    "notification",
		Title:   string(req.Category),
		Content: FormatAlertMessage(req),
		Timeout: 5,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal overlay datagram: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send overlay datagram: %w", err)
	}

	return nil
}

// run drives the connect/read cycle with a capped constant backoff.
// A successful connection resets the attempt budget.
func (o *OverlayChannel) run(ctx context.Context) {
	defer close(o.done)

	for o.running.Load() && ctx.Err() == nil {
		policy := backoff.WithContext(backoff.WithMaxRetries(
			backoff.NewConstantBackOff(o.interval), uint64(o.maxAttempts),
		), ctx)

		err := backoff.Retry(func() error {
			if !o.running.Load() {
				return backoff.Permanent(context.Canceled)
			}

			return o.connect(ctx)
		}, policy)
		if err != nil {
			o.logger.Warn("Overlay reconnect attempts exhausted", zap.Error(err))
			return
		}

		// Blocks until the connection drops
		o.readLoop()
	}
}

// connect dials the overlay endpoint once.
func (o *OverlayChannel) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	conn, _, err := dialer.DialContext(ctx, o.endpoint, nil)
	if err != nil {
		o.logger.Debug("Overlay connection attempt failed", zap.Error(err))
		return fmt.Errorf("failed to dial overlay endpoint: %w", err)
	}

	o.writeMu.Lock()
	o.conn = conn
	o.writeMu.Unlock()

	o.connected.Store(true)
	o.logger.Info("Connected to overlay", zap.String("endpoint", o.endpoint))

	return nil
}

// readLoop consumes inbound frames until the connection drops, keeping
// the telemetry snapshot current.
func (o *OverlayChannel) readLoop() {
	defer func() {
		o.connected.Store(false)
		o.closeConn()
	}()

	for {
		o.writeMu.Lock()
		conn := o.conn
		o.writeMu.Unlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if o.running.Load() {
				o.logger.Warn("Overlay connection lost", zap.Error(err))
			}

			return
		}

		var frame overlayFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			o.logger.Debug("Dropping malformed overlay frame", zap.Error(err))
			continue
		}

		if frame.Type == "telemetry" {
			o.gpuBits.Store(math.Float64bits(frame.GPUUsage))
		}
	}
}

func (o *OverlayChannel) closeConn() {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
}
