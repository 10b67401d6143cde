package websockets

import (
	"sync"
)

type Hub struct {
	register   chan *Client
	unregister chan *Client
	clients    map[string]*Client
	mutex      sync.RWMutex
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client
	m.log.Function("registerClient").Info("Client registered", "clientID", client.ID, "identity", client.Identity)
}

// unregisterClient is reached from both pumps; only the first call closes send.
func (m *Manager) unregisterClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if _, ok := m.hub.clients[client.ID]; !ok {
		return
	}
	delete(m.hub.clients, client.ID)
	close(client.send)

	m.log.Function("unregisterClient").Info("Client unregistered", "clientID", client.ID, "identity", client.Identity)
}

// SendToIdentity queues message for every view of identity and reports how many
// accepted it. Views with a full queue miss the message.
func (m *Manager) SendToIdentity(identity string, message Message) int {
	log := m.log.Function("SendToIdentity")

	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()

	sent := 0
	for _, client := range m.hub.clients {
		if client.Identity != identity {
			continue
		}
		select {
		case client.send <- message:
			sent++
		default:
			log.Warn("Client send channel full, dropping message", "clientID", client.ID, "type", message.Type)
		}
	}

	log.Debug("Message sent to identity", "identity", identity, "type", message.Type, "sentTo", sent)
	return sent
}

func (m *Manager) disconnectIdentity(identity string) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	for id, client := range m.hub.clients {
		if client.Identity == identity {
			delete(m.hub.clients, id)
			close(client.send)
		}
	}
}

func (m *Manager) ClientCount() int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return len(m.hub.clients)
}
