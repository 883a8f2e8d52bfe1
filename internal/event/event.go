package event

import (
	"time"
)

// Kind identifies the category of an event flowing through the pipeline.
type Kind string

const (
	KindFriendStatus    Kind = "friend_status"
	KindNotification    Kind = "notification"
	KindGroupMembership Kind = "group_membership"
	KindUserUpdate      Kind = "user_update"
	KindInstanceChange  Kind = "instance_change"
	KindPlayerJoin      Kind = "player_join"
	KindPlayerLeave     Kind = "player_leave"
	KindAvatarChange    Kind = "avatar_change"
	KindDisconnected    Kind = "disconnected"
	KindLogRotated      Kind = "log_rotated"
	KindError           Kind = "error"

	// KindConnected is the synthetic lifecycle event emitted when the
	// feed connection is established, so consumers can distinguish "no
	// data" from "between packets". KindDisconnected doubles as its
	// counterpart on connection loss.
	KindConnected Kind = "connected"

	// KindWildcard subscribes a handler to every event kind.
	KindWildcard Kind = "*"
)

// Event is the normalized unit delivered to subscribers. Exactly one of the
// payload pointers is set, matching Kind. Events are immutable once
// constructed; consumers copy what they need and never retain a reference.
type Event struct {
	Kind       Kind
	ReceivedAt time.Time

	FriendStatus    *FriendStatusPayload
	Notification    *NotificationPayload
	GroupMembership *GroupMembershipPayload
	UserUpdate      *UserUpdatePayload
	InstanceChange  *InstanceChangePayload
	PlayerJoin      *PlayerPayload
	PlayerLeave     *PlayerPayload
	AvatarChange    *AvatarChangePayload
	Error           *ErrorPayload

	// RawContent holds the undecoded content string when the nested
	// decoding pass failed or the kind carries no structured payload.
	RawContent string
}

// FriendStatusPayload describes a friend going online, offline, or moving.
type FriendStatusPayload struct {
	UserID      string
	DisplayName string
	Status      string
	Location    string
}

// NotificationPayload carries a platform notification, including group
// join requests which feed the rule engine.
type NotificationPayload struct {
	ID               string
	Type             string
	SenderUserID     string
	SenderUsername   string
	GroupID          string
	Message          string
}

// GroupMembershipPayload describes membership changes in a tracked group.
type GroupMembershipPayload struct {
	GroupID string
	UserID  string
	Change  string
}

// UserUpdatePayload carries profile updates for the operator's own account.
type UserUpdatePayload struct {
	UserID            string
	DisplayName       string
	StatusDescription string
}

// InstanceChangePayload describes the operator moving between instances.
// GroupID is empty when the destination is not a group instance.
type InstanceChangePayload struct {
	WorldID    string
	InstanceID string
	GroupID    string
	Timestamp  time.Time
}

// PlayerPayload describes another player entering or leaving the
// operator's current instance.
type PlayerPayload struct {
	UserID      string
	DisplayName string
	Timestamp   time.Time
}

// AvatarChangePayload describes a player switching avatars in the
// operator's current instance.
type AvatarChangePayload struct {
	UserID     string
	AvatarName string
}

// ErrorPayload carries a feed-reported error frame.
type ErrorPayload struct {
	Message string
}

// New constructs an event of the given kind stamped with the current time.
func New(kind Kind) Event {
	return Event{Kind: kind, ReceivedAt: time.Now()}
}

// Handler consumes a normalized event. Handlers run synchronously on the
// delivering loop and must not block for long.
type Handler func(Event)
