// Package watcher defines the contract for the local activity source,
// which tails the platform's application log and emits instance and
// player transitions. Log parsing itself lives outside the core; the
// correlator only depends on the event contract here.
package watcher

import (
	"time"

	"github.com/modryx/warden/internal/event"
)

// LocalEvent is the wire contract of the log-tailing collaborator.
type LocalEvent struct {
	Type       string    `json:"type"`
	WorldID    string    `json:"world_id"`
	InstanceID string    `json:"instance_id"`
	GroupID    string    `json:"group_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"display_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Local event types emitted by the watcher.
const (
	TypeInstanceChange = "instance_change"
	TypePlayerJoin     = "player_join"
	TypePlayerLeave    = "player_leave"
	TypeDisconnected   = "disconnected"
	TypeRotation       = "rotation"
)

// Source is a stream of local activity events. The channel closes when
// the source stops.
type Source interface {
	Events() <-chan event.Event
}

// Normalize converts a local event into the shared event model. Unknown
// types map to log-rotation, the most conservative reading since it
// resets the correlator to Offline rather than fabricating presence.
func Normalize(le *LocalEvent) event.Event {
	switch le.Type {
	case TypeInstanceChange:
		evt := event.New(event.KindInstanceChange)
		evt.InstanceChange = &event.InstanceChangePayload{
			WorldID:    le.WorldID,
			InstanceID: le.InstanceID,
			GroupID:    le.GroupID,
			Timestamp:  le.Timestamp,
		}

		return evt
	case TypePlayerJoin:
		evt := event.New(event.KindPlayerJoin)
		evt.PlayerJoin = &event.PlayerPayload{
			UserID:      le.UserID,
			DisplayName: le.Username,
			Timestamp:   le.Timestamp,
		}

		return evt
	case TypePlayerLeave:
		evt := event.New(event.KindPlayerLeave)
		evt.PlayerLeave = &event.PlayerPayload{
			UserID:      le.UserID,
			DisplayName: le.Username,
			Timestamp:   le.Timestamp,
		}

		return evt
	case TypeDisconnected:
		return event.New(event.KindDisconnected)
	default:
		return event.New(event.KindLogRotated)
	}
}

// ChannelSource is a Source fed programmatically, used by the log-tail
// collaborator and by tests.
type ChannelSource struct {
	events chan event.Event
}

// NewChannelSource creates a source with a small delivery buffer.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{events: make(chan event.Event, 16)}
}

// Events returns the delivery channel.
func (s *ChannelSource) Events() <-chan event.Event {
	return s.events
}

// Emit normalizes and delivers one local event. The event is dropped
// when the consumer has stalled rather than blocking the log tailer.
func (s *ChannelSource) Emit(le *LocalEvent) {
	select {
	case s.events <- Normalize(le):
	default:
	}
}

// Close closes the delivery channel.
func (s *ChannelSource) Close() {
	close(s.events)
}
