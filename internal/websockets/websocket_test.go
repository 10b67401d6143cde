package websockets

import (
	"testing"

	"ineed/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(m *Manager, id, identity string) *Client {
	client := &Client{ID: id, Identity: identity, Manager: m, send: make(chan Message, 4)}
	m.registerClient(client)
	return client
}

func TestManager_ForwardsEventsByIdentity(t *testing.T) {
	bus := events.New(nil)
	manager, err := New(bus)
	require.NoError(t, err)

	clientView := newTestClient(manager, "a", "client:1")
	professionalView := newTestClient(manager, "b", "professional:9")

	require.NoError(t, bus.Publish(events.NOTIFICATION_CHANNEL, events.Event{
		Type:     events.TOAST,
		Identity: "client:1",
		Data:     map[string]any{"notificationId": "5"},
	}))

	require.Len(t, clientView.send, 1)
	message := <-clientView.send
	assert.Equal(t, "toast", message.Type)
	assert.Equal(t, "notifications", message.Channel)
	assert.Equal(t, "5", message.Data["notificationId"])
	assert.NotEmpty(t, message.ID)
	assert.Empty(t, professionalView.send)
}

func TestManager_SessionClosedDisconnectsViews(t *testing.T) {
	bus := events.New(nil)
	manager, err := New(bus)
	require.NoError(t, err)

	view := newTestClient(manager, "a", "client:1")
	newTestClient(manager, "b", "professional:9")

	require.NoError(t, bus.Publish(events.SESSION_CHANNEL, events.Event{
		Type:     events.SESSION_CLOSED,
		Identity: "client:1",
	}))

	message, ok := <-view.send
	require.True(t, ok)
	assert.Equal(t, "session_closed", message.Type)

	_, ok = <-view.send
	assert.False(t, ok)
	assert.Equal(t, 1, manager.ClientCount())

	manager.unregisterClient(view)
	assert.Equal(t, 1, manager.ClientCount())
}

func TestClient_PingIsAnswered(t *testing.T) {
	manager, err := New(events.New(nil))
	require.NoError(t, err)

	client := newTestClient(manager, "a", "client:1")
	client.routeMessage(Message{Type: MESSAGE_TYPE_PING})

	require.Len(t, client.send, 1)
	assert.Equal(t, MESSAGE_TYPE_PONG, (<-client.send).Type)

	manager.unregisterClient(client)
	assert.False(t, client.enqueue(Message{Type: MESSAGE_TYPE_PONG}))
}
