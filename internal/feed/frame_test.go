package feed

import (
	"testing"

	"github.com/modryx/warden/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrameErrorShortCircuits(t *testing.T) {
	t.Parallel()

	evt, err := decodeFrame([]byte(`{"type":"friend-online","content":"{}","err":"rate limited"}`))
	require.NoError(t, err)

	assert.Equal(t, event.KindError, evt.Kind)
	require.NotNil(t, evt.Error)
	assert.Equal(t, "rate limited", evt.Error.Message)
}

func TestDecodeFrameNestedContentString(t *testing.T) {
	t.Parallel()

	frame := `{"type":"friend-location","content":"{\"userId\":\"usr_1\",\"location\":\"wrld_A:1\",\"user\":{\"displayName\":\"Friend\"}}"}`

	evt, err := decodeFrame([]byte(frame))
	require.NoError(t, err)

	assert.Equal(t, event.KindFriendStatus, evt.Kind)
	require.NotNil(t, evt.FriendStatus)
	assert.Equal(t, "usr_1", evt.FriendStatus.UserID)
	assert.Equal(t, "wrld_A:1", evt.FriendStatus.Location)
	assert.Equal(t, "Friend", evt.FriendStatus.DisplayName)
}

func TestDecodeFrameNestedObjectContent(t *testing.T) {
	t.Parallel()

	frame := `{"type":"group-joined","content":{"groupId":"grp_1","userId":"usr_1"}}`

	evt, err := decodeFrame([]byte(frame))
	require.NoError(t, err)

	assert.Equal(t, event.KindGroupMembership, evt.Kind)
	require.NotNil(t, evt.GroupMembership)
	assert.Equal(t, "grp_1", evt.GroupMembership.GroupID)
	assert.Equal(t, "group-joined", evt.GroupMembership.Change)
}

func TestDecodeFrameBadNestedContentTolerated(t *testing.T) {
	t.Parallel()

	// The inner document is not valid JSON; the frame still normalizes
	// with the payload kept as the raw string
	frame := `{"type":"friend-online","content":"not json at all"}`

	evt, err := decodeFrame([]byte(frame))
	require.NoError(t, err)

	assert.Equal(t, event.KindFriendStatus, evt.Kind)
	assert.Nil(t, evt.FriendStatus)
	assert.Equal(t, "not json at all", evt.RawContent)
}

func TestDecodeFrameMalformedOuterFails(t *testing.T) {
	t.Parallel()

	_, err := decodeFrame([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeFrameJoinRequestNotification(t *testing.T) {
	t.Parallel()

	frame := `{"type":"notification","content":{"id":"not_1","type":"group.joinRequest","senderUserId":"usr_9","senderUsername":"Applicant","groupId":"grp_1","message":"let me in"}}`

	evt, err := decodeFrame([]byte(frame))
	require.NoError(t, err)

	assert.Equal(t, event.KindNotification, evt.Kind)
	require.NotNil(t, evt.Notification)
	assert.Equal(t, "group.joinRequest", evt.Notification.Type)
	assert.Equal(t, "usr_9", evt.Notification.SenderUserID)
	assert.Equal(t, "grp_1", evt.Notification.GroupID)
}

func TestDecodeFrameOnlineStatusFromType(t *testing.T) {
	t.Parallel()

	evt, err := decodeFrame([]byte(`{"type":"friend-offline","content":{"userId":"usr_1"}}`))
	require.NoError(t, err)

	require.NotNil(t, evt.FriendStatus)
	assert.Equal(t, "offline", evt.FriendStatus.Status)
}
