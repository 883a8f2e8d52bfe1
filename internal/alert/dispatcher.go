package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modryx/warden/internal/setup/config"
	"go.uber.org/zap"
)

// OverlayDeliverer is the overlay-channel surface the dispatcher uses.
type OverlayDeliverer interface {
	Start(ctx context.Context)
	Stop()
	Notify(req *Request) error
	GPUUsage() float64
}

// FallbackDeliverer is the fallback-channel surface the dispatcher uses.
type FallbackDeliverer interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(req *Request) error
	Failures() uint64
}

// Dispatcher routes alert requests to the preferred channel with
// automatic fallback and rate control. It never crashes on a delivery
// failure; exhaustion of both channels is only counted and exposed as a
// degraded-alerting indicator.
type Dispatcher struct {
	overlay      OverlayDeliverer
	fallback     FallbackDeliverer
	gpuThreshold float64
	cooldown     time.Duration
	logger       *zap.Logger

	mu            sync.Mutex
	lastDelivered time.Time
	dropped       atomic.Uint64
}

// NewDispatcher creates an alert dispatcher over the two channels.
func NewDispatcher(
	cfg *config.Overlay, overlay OverlayDeliverer, fallback FallbackDeliverer, logger *zap.Logger,
) *Dispatcher {
	threshold := cfg.GPUThreshold
	if threshold <= 0 {
		threshold = 0.9
	}

	cooldown := time.Duration(cfg.ThrottleCooldown) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &Dispatcher{
		overlay:      overlay,
		fallback:     fallback,
		gpuThreshold: threshold,
		cooldown:     cooldown,
		logger:       logger.Named("dispatcher"),
	}
}

// Start launches both delivery channels.
func (d *Dispatcher) Start(ctx context.Context) {
	d.overlay.Start(ctx)
	d.fallback.Start(ctx)
}

// Stop shuts both channels down.
func (d *Dispatcher) Stop() {
	d.overlay.Stop()
	d.fallback.Stop()
}

// Dispatch attempts to deliver one alert, overlay first, slot-message
// fallback second. It reports whether the alert was delivered or queued
// for delivery; a throttled alert reports false.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) bool {
	if d.throttled(req.Severity) {
		d.logger.Debug("Alert suppressed by throttle",
			zap.String("user", req.SubjectUsername),
			zap.String("severity", string(req.Severity)))

		return false
	}

	if err := d.overlay.Notify(req); err == nil {
		d.markDelivered()
		return true
	}

	if err := d.fallback.Enqueue(req); err != nil {
		d.dropped.Add(1)
		d.logger.Error("All alert channels failed",
			zap.String("user", req.SubjectUsername),
			zap.String("category", string(req.Category)),
			zap.Error(err))

		return false
	}

	d.markDelivered()

	return true
}

// Degraded returns how many alerts were lost outright, for the UI's
// degraded-alerting indicator. Queued-but-failed fallback deliveries are
// included.
func (d *Dispatcher) Degraded() uint64 {
	return d.dropped.Load() + d.fallback.Failures()
}

// throttled reports whether a non-danger alert should be suppressed
// because the overlay rendering pipeline is under load and the cooldown
// since the last delivery has not elapsed. Danger alerts always pass.
func (d *Dispatcher) throttled(severity Severity) bool {
	if severity == SeverityDanger {
		return false
	}

	if d.overlay.GPUUsage() < d.gpuThreshold {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return time.Since(d.lastDelivered) < d.cooldown
}

func (d *Dispatcher) markDelivered() {
	d.mu.Lock()
	d.lastDelivered = time.Now()
	d.mu.Unlock()
}
