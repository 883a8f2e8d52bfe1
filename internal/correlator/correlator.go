package correlator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modryx/warden/internal/alert"
	"github.com/modryx/warden/internal/event"
	"github.com/modryx/warden/internal/platform"
	"github.com/modryx/warden/internal/watcher"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// InstanceAPI is the slice of the platform API the correlator needs.
type InstanceAPI interface {
	GetGroupInstances(ctx context.Context, groupID string) ([]*platform.InstanceSummary, error)
}

// WatchlistChecker looks up operator-curated watchlist entries.
type WatchlistChecker interface {
	IsWatched(ctx context.Context, userID string) ([]string, bool, error)
}

// Notifier forwards alert-worthy conditions to the dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, req *alert.Request) bool
}

// Listener observes context transitions. Listeners run synchronously in
// registration order; a panicking listener is caught and logged.
type Listener func(*ModerationContext)

// Correlator maintains the operator's moderation context by correlating
// feed and local activity events against tracked groups, and keeps the
// per-group instance cache fresh on a timer.
type Correlator struct {
	api           InstanceAPI
	watchlist     WatchlistChecker
	notifier      Notifier
	trackedGroups []string
	interval      time.Duration
	cache         *Cache
	logger        *zap.Logger

	// transitionMu serializes state transitions between the consume loop,
	// the feed subscriber, and the refresh loop's re-evaluation, so a
	// stale snapshot can never overwrite a later one.
	transitionMu sync.Mutex
	current      atomic.Pointer[ModerationContext]

	// lastInstance remembers the most recent instance-change payload so
	// a refresh pass can re-evaluate it against the fresh cache. The
	// local event may arrive before the cache knows the instance.
	lastInstance atomic.Pointer[event.InstanceChangePayload]

	listenerMu sync.Mutex
	listeners  []Listener

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a correlator for the given tracked groups.
func New(
	api InstanceAPI, watchlist WatchlistChecker, notifier Notifier,
	trackedGroups []string, refreshInterval time.Duration, logger *zap.Logger,
) *Correlator {
	c := &Correlator{
		api:           api,
		watchlist:     watchlist,
		notifier:      notifier,
		trackedGroups: trackedGroups,
		interval:      refreshInterval,
		cache:         NewCache(),
		logger:        logger.Named("correlator"),
	}
	c.current.Store(offlineContext())

	return c
}

// SetNotifier wires the alert dispatcher after construction. The
// dispatcher's fallback channel needs the correlator as its location
// source, so one of the two references has to be set late.
func (c *Correlator) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

// Context returns the current snapshot. Snapshots are immutable; callers
// must not modify them.
func (c *Correlator) Context() *ModerationContext {
	return c.current.Load()
}

// CurrentLocation implements the alert fallback channel's location
// source.
func (c *Correlator) CurrentLocation() (string, string, bool) {
	snapshot := c.current.Load()
	if snapshot.CurrentInstance == nil {
		return "", "", false
	}

	return snapshot.CurrentInstance.WorldID, snapshot.CurrentInstance.InstanceID, true
}

// AddListener registers a transition listener.
func (c *Correlator) AddListener(listener Listener) {
	if listener == nil {
		return
	}

	c.listenerMu.Lock()
	c.listeners = append(c.listeners, listener)
	c.listenerMu.Unlock()
}

// Start launches the event intake and the cache refresh loop. The first
// refresh pass runs immediately so matches do not wait a full interval.
func (c *Correlator) Start(ctx context.Context, source watcher.Source) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()
			c.consume(loopCtx, source)
		}()

		go func() {
			defer wg.Done()
			c.refreshLoop(loopCtx)
		}()

		wg.Wait()
	}()
}

// Stop cancels both loops and awaits their completion. The cancellation
// of the in-flight timer wait is swallowed, not surfaced.
func (c *Correlator) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.cancel()
	<-c.done
}

// HandleEvent feeds one normalized event into the state machine. It is
// also registered as a feed subscriber for kinds the correlator cares
// about.
func (c *Correlator) HandleEvent(evt event.Event) {
	switch evt.Kind {
	case event.KindInstanceChange:
		if evt.InstanceChange != nil {
			c.transitionMu.Lock()
			c.lastInstance.Store(evt.InstanceChange)
			c.evaluateInstance(evt.InstanceChange)
			c.transitionMu.Unlock()
		}
	case event.KindDisconnected, event.KindLogRotated:
		c.transitionMu.Lock()
		c.lastInstance.Store(nil)
		c.publish(offlineContext())
		c.transitionMu.Unlock()
	case event.KindPlayerJoin:
		if evt.PlayerJoin != nil {
			c.checkWatchlist(evt.PlayerJoin)
		}
	}
}

// consume drains the local activity source until it closes or the loop
// is cancelled.
func (c *Correlator) consume(ctx context.Context, source watcher.Source) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-source.Events():
			if !ok {
				return
			}

			c.HandleEvent(evt)
		}
	}
}

// evaluateInstance runs the transition rule for an instance change: a
// direct group-id match or a location match against the cache yields
// InGroupInstance, anything else InUntracked.
func (c *Correlator) evaluateInstance(payload *event.InstanceChangePayload) {
	location := payload.WorldID + ":" + payload.InstanceID

	details := &InstanceDetails{
		WorldID:    payload.WorldID,
		InstanceID: payload.InstanceID,
		GroupID:    payload.GroupID,
		Location:   location,
		Timestamp:  payload.Timestamp,
	}

	group := c.matchGroup(payload.GroupID, location, details)

	next := &ModerationContext{
		CurrentInstance: details,
		LastUpdated:     time.Now(),
	}

	if group != nil {
		details.IsGroupInstance = true
		next.State = StateInGroupInstance
		next.MatchingGroup = group
	} else {
		next.State = StateInUntracked
	}

	c.publish(next)
}

// matchGroup resolves the tracked group for an instance, preferring the
// group id carried by the local event over a cache location match.
func (c *Correlator) matchGroup(groupID, location string, details *InstanceDetails) *GroupRef {
	if groupID != "" && c.isTracked(groupID) {
		if _, instance, ok := c.cache.FindLocation(location); ok {
			details.MemberCount = instance.MemberCount
			details.GroupName = instance.World.Name
		}

		return &GroupRef{ID: groupID}
	}

	if matchedID, instance, ok := c.cache.FindLocation(location); ok && c.isTracked(matchedID) {
		details.MemberCount = instance.MemberCount
		details.GroupName = instance.World.Name
		details.GroupID = matchedID

		return &GroupRef{ID: matchedID}
	}

	return nil
}

func (c *Correlator) isTracked(groupID string) bool {
	for _, id := range c.trackedGroups {
		if id == groupID {
			return true
		}
	}

	return false
}

// checkWatchlist raises a danger alert when a watched user joins the
// operator's current group instance.
func (c *Correlator) checkWatchlist(payload *event.PlayerPayload) {
	if c.current.Load().State != StateInGroupInstance || c.watchlist == nil || c.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tags, watched, err := c.watchlist.IsWatched(ctx, payload.UserID)
	if err != nil {
		c.logger.Warn("Watchlist lookup failed",
			zap.String("userID", payload.UserID),
			zap.Error(err))

		return
	}

	if !watched {
		return
	}

	c.logger.Info("Watchlist match in current instance",
		zap.String("userID", payload.UserID),
		zap.String("displayName", payload.DisplayName))

	c.notifier.Dispatch(ctx, &alert.Request{
		Category:        alert.CategoryWatchlist,
		Severity:        alert.SeverityDanger,
		SubjectUsername: payload.DisplayName,
		SubjectUserID:   payload.UserID,
		Tags:            tags,
	})
}

// refreshLoop refreshes the instance cache on a fixed interval while
// started.
func (c *Correlator) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

// refresh fetches live instance listings for every tracked group. Fetch
// failures are isolated per group; the groups that succeeded still get
// fresh entries. After the pass the current instance is re-evaluated
// against the new cache.
func (c *Correlator) refresh(ctx context.Context) {
	type result struct {
		groupID   string
		instances []*platform.InstanceSummary
	}

	var (
		mu      sync.Mutex
		results = make([]result, 0, len(c.trackedGroups))
	)

	p := pool.New().WithContext(ctx)

	for _, groupID := range c.trackedGroups {
		p.Go(func(ctx context.Context) error {
			instances, err := c.api.GetGroupInstances(ctx, groupID)
			if err != nil {
				c.logger.Warn("Failed to refresh group instances",
					zap.String("groupID", groupID),
					zap.Error(err))

				return nil
			}

			mu.Lock()
			results = append(results, result{groupID: groupID, instances: instances})
			mu.Unlock()

			return nil
		})
	}

	if err := p.Wait(); err != nil && ctx.Err() == nil {
		c.logger.Warn("Instance refresh pass failed", zap.Error(err))
	}

	// Cache writes stay serialized on the refresh loop
	for _, r := range results {
		c.cache.Replace(r.groupID, r.instances)
	}

	c.reevaluate()
}

// reevaluate re-runs the transition rule for the last known instance so
// a local event that arrived before the cache knew about its instance
// still converges to InGroupInstance. It holds the transition lock so a
// disconnect landing mid-pass cannot be overwritten by the stale
// instance.
func (c *Correlator) reevaluate() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	payload := c.lastInstance.Load()
	if payload == nil {
		return
	}

	before := c.current.Load()
	if before.State == StateOffline {
		return
	}

	c.evaluateInstance(payload)

	after := c.current.Load()
	if before.State != after.State {
		c.logger.Info("Context re-evaluated after cache refresh",
			zap.String("from", string(before.State)),
			zap.String("to", string(after.State)))
	}
}

// publish replaces the context snapshot atomically and notifies
// listeners synchronously in registration order.
func (c *Correlator) publish(next *ModerationContext) {
	c.current.Store(next)

	c.listenerMu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, listener := range listeners {
		c.notify(listener, next)
	}

	c.logger.Debug("Context transition",
		zap.String("state", string(next.State)),
		zap.Any("group", next.MatchingGroup))
}

// notify invokes one listener, catching panics so one bad subscriber
// cannot break the others.
func (c *Correlator) notify(listener Listener, snapshot *ModerationContext) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Context listener panicked", zap.Any("panic", r))
		}
	}()

	listener(snapshot)
}
