package alert

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/modryx/warden/internal/platform"
	"github.com/modryx/warden/internal/setup/config"
	"go.uber.org/zap"
)

var (
	ErrQueueFull      = errors.New("fallback alert queue is full")
	ErrChannelStopped = errors.New("fallback channel is stopped")
)

const fallbackQueueSize = 32

// SlotAPI is the slice of the platform API the fallback channel needs.
type SlotAPI interface {
	ListMessageSlots(ctx context.Context) ([]*platform.MessageSlot, error)
	ResetMessageSlot(ctx context.Context, slot int) error
	UpdateMessageSlot(ctx context.Context, slot int, message string) error
	SelfInvite(ctx context.Context, invite *platform.InviteRequest) error
}

// LocationSource reports where the operator currently is, so self-invites
// can reference a real world/instance.
type LocationSource interface {
	CurrentLocation() (worldID, instanceID string, ok bool)
}

// FallbackChannel delivers alerts through the platform's slot-based
// invite messages. Alerts are queued and drained one at a time with a
// fixed delay to respect the platform's implicit rate limits.
//
// The platform enforces a cooldown on editing a slot but not on
// resetting one, so each delivery resets the slot before writing the new
// text. If the slot cannot be prepared, delivery degrades to an invite
// without custom text.
type FallbackChannel struct {
	api       SlotAPI
	location  LocationSource
	slotIndex int
	drainGap  time.Duration
	resetGap  time.Duration
	logger    *zap.Logger

	queue    chan *Request
	failures atomic.Uint64
	running  atomic.Bool
	stopped  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

// NewFallbackChannel creates a fallback channel from configuration.
func NewFallbackChannel(
	cfg *config.Fallback, api SlotAPI, location LocationSource, logger *zap.Logger,
) *FallbackChannel {
	drainGap := time.Duration(cfg.DrainDelay) * time.Second
	if drainGap <= 0 {
		drainGap = 10 * time.Second
	}

	resetGap := time.Duration(cfg.SlotResetDelay) * time.Second

	return &FallbackChannel{
		api:       api,
		location:  location,
		slotIndex: cfg.SlotIndex,
		drainGap:  drainGap,
		resetGap:  resetGap,
		logger:    logger.Named("fallback"),
		queue:     make(chan *Request, fallbackQueueSize),
	}
}

// Start launches the drain loop.
func (f *FallbackChannel) Start(ctx context.Context) {
	if !f.running.CompareAndSwap(false, true) {
		return
	}

	f.stopped.Store(false)
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	go f.drain(ctx)
}

// Stop shuts the drain loop down and waits for it to exit. The queue
// channel stays open; dispatch goroutines may still race shutdown, and
// their late enqueues are rejected rather than panicking.
func (f *FallbackChannel) Stop() {
	if !f.running.CompareAndSwap(true, false) {
		return
	}

	f.stopped.Store(true)
	close(f.stop)
	<-f.done
}

// Enqueue adds an alert to the delivery queue without blocking. Enqueues
// before Start buffer up; enqueues after Stop are rejected.
func (f *FallbackChannel) Enqueue(req *Request) error {
	if f.stopped.Load() {
		return ErrChannelStopped
	}

	select {
	case f.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Failures returns how many queued alerts could not be delivered.
func (f *FallbackChannel) Failures() uint64 {
	return f.failures.Load()
}

// drain delivers queued alerts one at a time with a fixed gap between
// sends. A failed delivery is logged and counted, never fatal.
func (f *FallbackChannel) drain(ctx context.Context) {
	defer close(f.done)

	f.checkSlot(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case req := <-f.queue:
			if err := f.deliver(ctx, req); err != nil {
				f.failures.Add(1)
				f.logger.Warn("Fallback alert delivery failed",
					zap.String("user", req.SubjectUsername),
					zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-f.stop:
				return
			case <-time.After(f.drainGap):
			}
		}
	}
}

// checkSlot verifies the configured slot index against the operator's
// actual slot table. A mismatch is only logged; delivery degrades to
// plain invites when the slot turns out unusable.
func (f *FallbackChannel) checkSlot(ctx context.Context) {
	slots, err := f.api.ListMessageSlots(ctx)
	if err != nil {
		f.logger.Warn("Failed to list message slots", zap.Error(err))
		return
	}

	for _, slot := range slots {
		if slot.ID == f.slotIndex {
			return
		}
	}

	f.logger.Warn("Configured message slot not found",
		zap.Int("slotIndex", f.slotIndex),
		zap.Int("available", len(slots)))
}

// deliver runs the reset -> edit -> self-invite workflow for one alert.
func (f *FallbackChannel) deliver(ctx context.Context, req *Request) error {
	worldID, instanceID, ok := f.location.CurrentLocation()
	if !ok {
		return errors.New("no current instance to reference in invite")
	}

	invite := &platform.InviteRequest{
		WorldID:    worldID,
		InstanceID: instanceID,
	}

	if f.prepareSlot(ctx, req) {
		slot := f.slotIndex
		invite.MessageSlot = &slot
	}

	return f.api.SelfInvite(ctx, invite)
}

// prepareSlot resets the message slot and writes the alert text into it.
// Failure at either step degrades the invite to one without custom text.
func (f *FallbackChannel) prepareSlot(ctx context.Context, req *Request) bool {
	if err := f.api.ResetMessageSlot(ctx, f.slotIndex); err != nil {
		f.logger.Warn("Failed to reset message slot", zap.Error(err))
		return false
	}

	if f.resetGap > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(f.resetGap):
		}
	}

	if err := f.api.UpdateMessageSlot(ctx, f.slotIndex, FormatAlertMessage(req)); err != nil {
		f.logger.Warn("Failed to update message slot", zap.Error(err))
		return false
	}

	return true
}
