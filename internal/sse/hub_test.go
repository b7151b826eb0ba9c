package sse

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewSSEHub(log)
}

func TestBroadcastReachesSubscribedChannelOnly(t *testing.T) {
	hub := newTestHub(t)

	wall := hub.NewSSEClient()
	hub.AddChannel(wall, ChannelWall)
	other := hub.NewSSEClient()
	hub.AddChannel(other, "admin")

	payload := TranscriptReadyPayload{ID: uuid.New(), Transcript: "hello"}
	hub.Broadcast(SSEMessage{Channel: ChannelWall, Event: SSEEventTranscriptReady, Data: payload})

	select {
	case msg := <-wall.Outbound:
		if msg.Event != SSEEventTranscriptReady {
			t.Fatalf("event = %q", msg.Event)
		}
		got, ok := msg.Data.(TranscriptReadyPayload)
		if !ok || got.Transcript != "hello" {
			t.Fatalf("payload = %+v", msg.Data)
		}
	default:
		t.Fatalf("subscribed client received nothing")
	}

	select {
	case msg := <-other.Outbound:
		t.Fatalf("unsubscribed channel received %+v", msg)
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, ChannelWall)

	// One past the buffer; the overflow message must be dropped
	// without blocking the broadcaster.
	for i := 0; i < cap(client.Outbound)+1; i++ {
		hub.Broadcast(SSEMessage{Channel: ChannelWall, Event: SSEEventMediaCreated})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("buffered = %d, want %d", got, cap(client.Outbound))
	}
}

func TestRemoveClientStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, ChannelWall)
	hub.RemoveClient(client)

	hub.Broadcast(SSEMessage{Channel: ChannelWall, Event: SSEEventMediaDeleted})
	if len(client.Outbound) != 0 {
		t.Fatalf("removed client still receives broadcasts")
	}
	if len(client.Channels) != 0 {
		t.Fatalf("subscriptions survived removal")
	}
}

func TestBroadcastIgnoresBlankChannel(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient()
	hub.AddChannel(client, "")

	hub.Broadcast(SSEMessage{Channel: "", Event: SSEEventMediaCreated})
	if len(client.Outbound) != 0 {
		t.Fatalf("blank channel delivered a message")
	}
}
