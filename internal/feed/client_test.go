package feed

import (
	"context"
	"testing"
	"time"

	"github.com/modryx/warden/internal/event"
	"github.com/modryx/warden/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	return NewClient(&config.Feed{Endpoint: "ws://localhost:0"}, zaptest.NewLogger(t))
}

func TestHandleFrameDedupsIdenticalRawFrames(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	var received []event.Event

	client.Subscribe(event.KindFriendStatus, func(evt event.Event) {
		received = append(received, evt)
	})

	frame := []byte(`{"type":"friend-online","content":{"userId":"usr_1"}}`)

	// The identical raw frame twice in a row yields exactly one event
	client.handleFrame(frame)
	client.handleFrame(frame)

	assert.Len(t, received, 1)

	// A different frame passes through
	client.handleFrame([]byte(`{"type":"friend-online","content":{"userId":"usr_2"}}`))
	assert.Len(t, received, 2)

	// And the original frame, no longer consecutive, passes again
	client.handleFrame(frame)
	assert.Len(t, received, 3)
}

func TestHandleFrameDropsMalformedFrames(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	var received int

	client.Subscribe(event.KindWildcard, func(event.Event) {
		received++
	})

	client.handleFrame([]byte(`{broken`))
	assert.Zero(t, received)

	client.handleFrame([]byte(`{"type":"friend-online","content":{}}`))
	assert.Equal(t, 1, received)
}

func TestSubscribeDistinctClosuresBothReceive(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	// Two closures built from the same literal are distinct subscriptions
	counts := make([]int, 2)
	for i := range counts {
		i := i
		client.Subscribe(event.KindFriendStatus, func(event.Event) { counts[i]++ })
	}

	client.handleFrame([]byte(`{"type":"friend-online","content":{}}`))

	assert.Equal(t, []int{1, 1}, counts)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	calls := 0
	id := client.Subscribe(event.KindFriendStatus, func(event.Event) { calls++ })

	client.handleFrame([]byte(`{"type":"friend-online","content":{"userId":"usr_1"}}`))
	assert.Equal(t, 1, calls)

	client.Unsubscribe(event.KindFriendStatus, id)

	client.handleFrame([]byte(`{"type":"friend-online","content":{"userId":"usr_2"}}`))
	assert.Equal(t, 1, calls)

	// Unknown tokens are a no-op
	client.Unsubscribe(event.KindFriendStatus, id)
}

func TestDispatchOrderAndWildcard(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	var order []string

	client.Subscribe(event.KindFriendStatus, func(event.Event) {
		order = append(order, "kind")
	})
	client.Subscribe(event.KindWildcard, func(event.Event) {
		order = append(order, "wildcard")
	})

	client.handleFrame([]byte(`{"type":"friend-online","content":{}}`))

	// Kind-specific subscribers run before wildcard subscribers
	assert.Equal(t, []string{"kind", "wildcard"}, order)
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	var survived bool

	client.Subscribe(event.KindFriendStatus, func(event.Event) {
		panic("bad subscriber")
	})
	client.Subscribe(event.KindWildcard, func(event.Event) {
		survived = true
	})

	client.handleFrame([]byte(`{"type":"friend-online","content":{}}`))

	assert.True(t, survived)
}

func TestClientStartsDisconnected(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	assert.Equal(t, StateDisconnected, client.State())
}

func TestAwaitIntervalWaitsFullInterval(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	client.interval = 50 * time.Millisecond
	client.running.Store(true)

	start := time.Now()
	ok := client.awaitInterval(context.Background())

	assert.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAwaitIntervalCutShortByCancel(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	client.interval = time.Minute
	client.running.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, client.awaitInterval(ctx))
}
