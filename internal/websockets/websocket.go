package websockets

import (
	"time"

	"ineed/internal/events"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	MESSAGE_TYPE_PING    = "ping"
	MESSAGE_TYPE_PONG    = "pong"
	MESSAGE_TYPE_WELCOME = "welcome"
	MESSAGE_TYPE_ERROR   = "error"
	PING_INTERVAL        = 30 * time.Second
	PONG_TIMEOUT         = 60 * time.Second
	WRITE_TIMEOUT        = 10 * time.Second
	MAX_MESSAGE_SIZE     = 64 * 1024
	SEND_CHANNEL_SIZE    = 64
	// Locals keys set by the gateway before the upgrade
	IDENTITY_LOCAL_KEY = "identity"
	SNAPSHOT_LOCAL_KEY = "snapshot"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel,omitempty"`
	Identity  string         `json:"identity,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Client is one connected view. It only receives events of its identity.
type Client struct {
	ID         string
	Identity   string
	Connection *websocket.Conn
	Manager    *Manager
	send       chan Message
}

type Manager struct {
	hub      *Hub
	log      logger.Logger
	eventBus *events.EventBus
}

func New(eventBus *events.EventBus) (*Manager, error) {
	log := logger.New("websockets")

	manager := &Manager{
		hub: &Hub{
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
		},
		log:      log,
		eventBus: eventBus,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	for _, channel := range []events.Channel{
		events.NOTIFICATION_CHANNEL,
		events.UNREAD_CHANNEL,
		events.SESSION_CHANNEL,
	} {
		if err := eventBus.Subscribe(channel, manager.forwardEvent); err != nil {
			return nil, log.Err("failed to subscribe to events", err, "channel", channel)
		}
	}

	return manager, nil
}

// HandleWebSocket serves one view of the identity stored in the connection locals.
// The view first receives a welcome message carrying the current badges.
func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	identity, _ := c.Locals(IDENTITY_LOCAL_KEY).(string)
	if identity == "" {
		log.Warn("Rejecting websocket without session")
		_ = c.WriteJSON(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_ERROR,
			Data:      map[string]any{"reason": "No session"},
			Timestamp: time.Now(),
		})
		_ = c.Close()
		return
	}

	client := &Client{
		ID:         uuid.New().String(),
		Identity:   identity,
		Connection: c,
		Manager:    m,
		send:       make(chan Message, SEND_CHANNEL_SIZE),
	}

	snapshot, _ := c.Locals(SNAPSHOT_LOCAL_KEY).(map[string]any)
	welcome := Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_WELCOME,
		Identity:  identity,
		Data:      snapshot,
		Timestamp: time.Now(),
	}
	if err := c.WriteJSON(welcome); err != nil {
		log.Er("failed to send welcome", err, "identity", identity)
		_ = c.Close()
		return
	}

	m.hub.register <- client
	defer func() {
		log.Info("Client disconnected", "clientID", client.ID, "identity", identity)
		m.hub.unregister <- client
		_ = c.Close()
	}()

	go client.readPump()
	client.writePump()
}

// forwardEvent pushes a bus event to every view of the event's identity. A closed
// session also disconnects its views.
func (m *Manager) forwardEvent(event events.Event) error {
	message := Message{
		ID:        event.ID,
		Type:      string(event.Type),
		Channel:   string(event.Channel),
		Identity:  event.Identity,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	m.SendToIdentity(event.Identity, message)

	if event.Type == events.SESSION_CLOSED {
		m.disconnectIdentity(event.Identity)
	}
	return nil
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.unregister <- c
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
			log.Er("failed to set read deadline in pong handler", err, "clientID", c.ID)
		}
		return nil
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			break
		}

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	switch message.Type {
	case MESSAGE_TYPE_PING:
		c.enqueue(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_PONG,
			Identity:  c.Identity,
			Timestamp: time.Now(),
		})
	default:
		c.Manager.log.Function("routeMessage").Warn("Unknown message type", "type", message.Type, "clientID", c.ID)
	}
}

func (c *Client) enqueue(message Message) bool {
	defer func() {
		// send is closed once the client unregisters
		_ = recover()
	}()

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "messageType", message.Type)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
