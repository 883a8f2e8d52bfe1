package feed

import (
	"sync"

	"github.com/modryx/warden/internal/event"
	"go.uber.org/zap"
)

// SubscriptionID identifies one registered handler so it can be removed.
type SubscriptionID uint64

// subscriptions is the handler registry for the feed client. Handlers
// are invoked synchronously from the receive loop, kind-specific first,
// wildcard second, each isolated so one bad subscriber cannot break the
// others or close the connection.
type subscriptions struct {
	mu       sync.RWMutex
	nextID   SubscriptionID
	handlers map[event.Kind][]subscriber
	logger   *zap.Logger
}

type subscriber struct {
	id SubscriptionID
	fn event.Handler
}

func newSubscriptions(logger *zap.Logger) *subscriptions {
	return &subscriptions{
		handlers: make(map[event.Kind][]subscriber),
		logger:   logger,
	}
}

// add registers a handler for a kind and returns its token. Every call
// registers a distinct subscription; closures are never compared.
func (s *subscriptions) add(kind event.Kind, handler event.Handler) SubscriptionID {
	if handler == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.handlers[kind] = append(s.handlers[kind], subscriber{id: s.nextID, fn: handler})

	return s.nextID
}

// remove drops the subscription with the given token. Unknown tokens are
// a no-op.
func (s *subscriptions) remove(kind event.Kind, id SubscriptionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.handlers[kind]
	for i, sub := range subs {
		if sub.id == id {
			s.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// dispatch delivers one event to its kind-specific subscribers and then
// to wildcard subscribers.
func (s *subscriptions) dispatch(evt event.Event) {
	s.mu.RLock()
	kindHandlers := s.handlers[evt.Kind]
	wildcardHandlers := s.handlers[event.KindWildcard]
	s.mu.RUnlock()

	for _, sub := range kindHandlers {
		s.invoke(sub.fn, evt)
	}

	for _, sub := range wildcardHandlers {
		s.invoke(sub.fn, evt)
	}
}

// invoke runs one handler, catching panics so delivery continues.
func (s *subscriptions) invoke(handler event.Handler, evt event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Event handler panicked",
				zap.String("kind", string(evt.Kind)),
				zap.Any("panic", r))
		}
	}()

	handler(evt)
}
