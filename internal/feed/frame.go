package feed

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/modryx/warden/internal/event"
)

// rawFrame is the outer shape of every feed frame. Content is either a
// plain string carrying inline JSON or a nested object, depending on the
// frame type.
type rawFrame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Err     string          `json:"err"`
}

// friendContent is the content payload of friend-* frames.
type friendContent struct {
	UserID   string `json:"userId"`
	Location string `json:"location"`
	User     struct {
		DisplayName string `json:"displayName"`
		Status      string `json:"status"`
	} `json:"user"`
}

// notificationContent is the content payload of notification frames.
type notificationContent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	SenderUserID   string `json:"senderUserId"`
	SenderUsername string `json:"senderUsername"`
	Message        string `json:"message"`
	GroupID        string `json:"groupId"`
}

// groupContent is the content payload of group-* frames.
type groupContent struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// userContent is the content payload of user-update frames.
type userContent struct {
	UserID string `json:"userId"`
	User   struct {
		DisplayName       string `json:"displayName"`
		StatusDescription string `json:"statusDescription"`
	} `json:"user"`
}

// decodeFrame normalizes one raw feed frame into a typed event. A frame
// carrying an explicit err field short-circuits to an error event. The
// content field gets a second decoding pass when it arrives as an
// inline-JSON string; failures there are tolerated and the payload is
// kept as the raw string.
func decodeFrame(data []byte) (event.Event, error) {
	var frame rawFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		return event.Event{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	if frame.Err != "" {
		evt := event.New(event.KindError)
		evt.Error = &event.ErrorPayload{Message: frame.Err}

		return evt, nil
	}

	content, raw := unwrapContent(frame.Content)

	evt := event.New(kindForFrameType(frame.Type))
	evt.RawContent = raw

	switch evt.Kind {
	case event.KindFriendStatus:
		var payload friendContent
		if err := sonic.Unmarshal(content, &payload); err == nil {
			evt.FriendStatus = &event.FriendStatusPayload{
				UserID:      payload.UserID,
				DisplayName: payload.User.DisplayName,
				Status:      statusForFrameType(frame.Type, payload.User.Status),
				Location:    payload.Location,
			}
		}
	case event.KindNotification:
		var payload notificationContent
		if err := sonic.Unmarshal(content, &payload); err == nil {
			evt.Notification = &event.NotificationPayload{
				ID:             payload.ID,
				Type:           payload.Type,
				SenderUserID:   payload.SenderUserID,
				SenderUsername: payload.SenderUsername,
				GroupID:        payload.GroupID,
				Message:        payload.Message,
			}
		}
	case event.KindGroupMembership:
		var payload groupContent
		if err := sonic.Unmarshal(content, &payload); err == nil {
			evt.GroupMembership = &event.GroupMembershipPayload{
				GroupID: payload.GroupID,
				UserID:  payload.UserID,
				Change:  frame.Type,
			}
		}
	case event.KindUserUpdate:
		var payload userContent
		if err := sonic.Unmarshal(content, &payload); err == nil {
			evt.UserUpdate = &event.UserUpdatePayload{
				UserID:            payload.UserID,
				DisplayName:       payload.User.DisplayName,
				StatusDescription: payload.User.StatusDescription,
			}
		}
	}

	return evt, nil
}

// unwrapContent resolves the two content encodings. An inline-JSON
// string is unquoted so the nested document can be decoded directly; if
// unquoting fails the bytes are used as-is.
func unwrapContent(content json.RawMessage) (json.RawMessage, string) {
	if len(content) == 0 {
		return nil, ""
	}

	if content[0] == '"' {
		var inner string
		if err := sonic.Unmarshal(content, &inner); err == nil {
			return json.RawMessage(inner), inner
		}
	}

	return content, string(content)
}

// kindForFrameType maps feed frame types onto normalized event kinds.
// Unknown types normalize to notifications so nothing is silently lost.
func kindForFrameType(frameType string) event.Kind {
	switch frameType {
	case "friend-online", "friend-offline", "friend-active", "friend-location", "friend-update":
		return event.KindFriendStatus
	case "group-joined", "group-left", "group-member-updated", "group-role-updated":
		return event.KindGroupMembership
	case "user-update", "user-location":
		return event.KindUserUpdate
	default:
		return event.KindNotification
	}
}

// statusForFrameType derives a friend status when the frame type itself
// is the signal and the payload carries none.
func statusForFrameType(frameType, payloadStatus string) string {
	if payloadStatus != "" {
		return payloadStatus
	}

	switch frameType {
	case "friend-online":
		return "online"
	case "friend-offline":
		return "offline"
	default:
		return ""
	}
}
