package ws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/pkg/types"
)

func subscribe(h *Hub, id string, channels map[string]bool) chan types.ServerMessage {
	outbox := make(chan types.ServerMessage, 8)
	h.inbox <- join{clientID: id, channels: channels, outbox: outbox}
	return outbox
}

func recvFrame(t *testing.T, ch chan types.ServerMessage) types.ServerMessage {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return types.ServerMessage{}
	}
}

func expectNoFrame(t *testing.T, ch chan types.ServerMessage) {
	t.Helper()
	select {
	case frame := <-ch:
		t.Fatalf("unexpected frame: %+v", frame)
	default:
	}
}

func TestHubBroadcastsToWatchers(t *testing.T) {
	h := NewHub(context.Background(), zap.NewNop())
	defer h.Shutdown()

	all := subscribe(h, "all", nil)
	chanA := subscribe(h, "a", map[string]bool{"chA": true})
	chanB := subscribe(h, "b", map[string]bool{"chB": true})

	err := h.Notify(context.Background(), notify.Notification{
		Channels: []string{"chA"},
		Event:    notify.EventTeamSearching,
		Message:  "searching",
	})
	require.NoError(t, err)

	frame := recvFrame(t, all)
	assert.Equal(t, "Notification", frame.Type)
	assert.Equal(t, string(notify.EventTeamSearching), frame.Event)

	frame = recvFrame(t, chanA)
	assert.Equal(t, []string{"chA"}, frame.Channels)

	// Notify replied, so the broadcast already ran; nothing for chB.
	expectNoFrame(t, chanB)
}

func TestHubDropsDepartedClient(t *testing.T) {
	h := NewHub(context.Background(), zap.NewNop())
	defer h.Shutdown()

	gone := subscribe(h, "gone", nil)
	stay := subscribe(h, "stay", nil)
	h.inbox <- leave{clientID: "gone"}

	err := h.Notify(context.Background(), notify.Notification{
		Channels: []string{"chA"},
		Event:    notify.EventMatchReady,
	})
	require.NoError(t, err)

	recvFrame(t, stay)
	expectNoFrame(t, gone)
}

func TestHubDisconnectsSlowSubscriber(t *testing.T) {
	h := NewHub(context.Background(), zap.NewNop())
	defer h.Shutdown()

	// Buffer of one, never drained: the second broadcast overflows it.
	slow := make(chan types.ServerMessage, 1)
	h.inbox <- join{clientID: "slow", channels: nil, outbox: slow}

	for i := 0; i < 2; i++ {
		err := h.Notify(context.Background(), notify.Notification{
			Channels: []string{"chA"},
			Event:    notify.EventLineupUpdated,
		})
		require.NoError(t, err)
	}

	// The hub closes the outbox of a dropped subscriber.
	recvFrame(t, slow)
	select {
	case _, ok := <-slow:
		assert.False(t, ok, "outbox should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("outbox never closed")
	}
}

func TestHubDepartAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub(context.Background(), zap.NewNop())
	h.Shutdown()
	select {
	case <-h.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub never shut down")
	}

	// Enough departures to overflow the undrained inbox buffer; every one
	// of them must still return.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*cap(h.inbox); i++ {
			h.depart(fmt.Sprintf("c%d", i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("departure blocked on a dead hub")
	}
}

func TestHubNotifyAfterShutdown(t *testing.T) {
	h := NewHub(context.Background(), zap.NewNop())
	h.Shutdown()

	// Shutdown drains through the inbox; wait for the context to fall.
	select {
	case <-h.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub never shut down")
	}

	err := h.Notify(context.Background(), notify.Notification{Event: notify.EventMatchReady})
	assert.Error(t, err)
}
