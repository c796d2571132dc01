// Package livesync implements LiveSyncHub (spec §4.5): a process-wide
// registry of full-duplex push channels, fanning out typed change
// envelopes to connected clients. Grounded on the gorilla/websocket hub
// pattern (adopted from the r3e-network example repo, since the teacher's
// own "push" surface is Slack/Mattermost webhooks rather than a literal
// client-facing WS channel — see DESIGN.md).
package livesync

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/freightplan/planningserver/internal/telemetry"
)

// EnvelopeType is the discriminator for the typed JSON messages the hub
// pushes (spec §4.5).
type EnvelopeType string

const (
	EnvelopeWelcome          EnvelopeType = "welcome"
	EnvelopeUserConnected    EnvelopeType = "user_connected"
	EnvelopeUserDisconnected EnvelopeType = "user_disconnected"
	EnvelopeConnectedUsers   EnvelopeType = "connected_users"
	EnvelopeDataChanged      EnvelopeType = "data_changed"
	EnvelopeRefreshRequired  EnvelopeType = "refresh_required"
	EnvelopePong             EnvelopeType = "pong"
	EnvelopeUserMessage      EnvelopeType = "user_message"
)

// ChangeAction is the mutation kind carried by a data_changed envelope.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
	ChangeRefresh ChangeAction = "refresh"
)

// Envelope is the wire shape of every message the hub sends (spec §4.5).
type Envelope struct {
	Type    EnvelopeType `json:"type"`
	Data    any          `json:"data,omitempty"`
}

// WelcomeData is the payload of the welcome envelope.
type WelcomeData struct {
	ClientID       string   `json:"client_id"`
	ConnectedUsers []string `json:"connected_users"`
}

// PresenceData is the payload of user_connected/user_disconnected envelopes.
type PresenceData struct {
	Username string `json:"username"`
}

// DataChangedData is the payload of a data_changed envelope.
type DataChangedData struct {
	Entity    string        `json:"entity"`
	Action    ChangeAction  `json:"action"`
	EntityID  *int64        `json:"entity_id,omitempty"`
	ChangedBy string        `json:"changed_by"`
}

// RefreshRequiredData is the payload of a refresh_required envelope.
type RefreshRequiredData struct {
	Entity string `json:"entity,omitempty"`
}

// Client is a single attached push channel.
type Client struct {
	ID       string
	Username string
	send     chan Envelope
}

// Hub is the process-wide push-channel registry (spec §4.5). Safe for
// concurrent use by many HTTP handler goroutines and the publish path.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Attach registers a new client under a freshly minted client_id, queues the
// welcome envelope on its send channel, and returns it. Broadcasts
// user_connected to every other client.
func (h *Hub) Attach(username string) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		Username: username,
		send:     make(chan Envelope, 32),
	}

	h.mu.Lock()
	connected := h.connectedUsernamesLocked()
	h.clients[c.ID] = c
	h.mu.Unlock()
	telemetry.LiveSyncConnectedClients.Set(float64(h.Size()))

	c.send <- Envelope{Type: EnvelopeWelcome, Data: WelcomeData{ClientID: c.ID, ConnectedUsers: connected}}
	h.broadcastExcept(c.ID, Envelope{Type: EnvelopeUserConnected, Data: PresenceData{Username: username}})
	return c
}

// Detach removes a client from the registry and broadcasts
// user_disconnected to the remaining clients.
func (h *Hub) Detach(clientID string) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	telemetry.LiveSyncConnectedClients.Set(float64(h.Size()))
	h.broadcastExcept(clientID, Envelope{Type: EnvelopeUserDisconnected, Data: PresenceData{Username: c.Username}})
}

// DetachUser evicts every channel owned by username (spec §8 scenario 6:
// force disconnect must close push channels within 1s).
func (h *Hub) DetachUser(username string) {
	h.mu.RLock()
	var ids []string
	for id, c := range h.clients {
		if c.Username == username {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Detach(id)
	}
}

func (h *Hub) connectedUsernamesLocked() []string {
	out := make([]string, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.Username)
	}
	return out
}

// ConnectedUsers returns the usernames of every currently attached client
// (spec §4.5 connected_users reply).
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectedUsernamesLocked()
}

// Size returns the number of attached clients (GET /ws/status, spec §6).
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish enqueues env on a single client's send channel without blocking
// the caller; a full channel evicts the client, and a send on a channel
// already closed by Detach is dropped (spec §4.5: "a
// publish to one client never blocks publishes to others").
func (h *Hub) publish(c *Client, env Envelope) {
	defer func() {
		// send may be closed concurrently by Detach; recover turns that race
		// into a no-op instead of a panic.
		_ = recover()
	}()
	select {
	case c.send <- env:
		telemetry.LiveSyncEnvelopesPublishedTotal.WithLabelValues(string(env.Type)).Inc()
	default:
		h.logger.Warn("push channel full, evicting client", "client_id", c.ID, "username", c.Username)
		go h.Detach(c.ID)
	}
}

// Broadcast sends env to every attached client, including the originator
// (spec §4.5 data_changed: "broadcast to all clients, including the
// originator; clients suppress self-echo using changed_by").
func (h *Hub) Broadcast(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.publish(c, env)
	}
}

func (h *Hub) broadcastExcept(exceptID string, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == exceptID {
			continue
		}
		h.publish(c, env)
	}
}

// PublishDataChanged broadcasts a data_changed envelope to every client. No
// domain handler in this module calls it; mutations are not fanned out.
func (h *Hub) PublishDataChanged(entity string, action ChangeAction, entityID *int64, changedBy string) {
	h.Broadcast(Envelope{
		Type: EnvelopeDataChanged,
		Data: DataChangedData{Entity: entity, Action: action, EntityID: entityID, ChangedBy: changedBy},
	})
}

// PublishRefreshRequired broadcasts a hint that clients should invalidate
// and re-read (spec §4.5).
func (h *Hub) PublishRefreshRequired(entity string) {
	h.Broadcast(Envelope{Type: EnvelopeRefreshRequired, Data: RefreshRequiredData{Entity: entity}})
}

// SendTo delivers env only to c (used for pong replies and connected_users
// replies, which are per-client, not broadcast).
func (h *Hub) SendTo(c *Client, env Envelope) {
	h.publish(c, env)
}

// MarshalEnvelope is a small helper kept for callers (e.g. tests) that want
// to inspect the wire bytes without going through the websocket conn.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
