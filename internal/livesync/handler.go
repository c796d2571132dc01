package livesync

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Close codes for token validation failures (spec §6).
	closeTokenExpired = 4001
	closeTokenInvalid = 4002
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The desktop/web clients in this domain are same-origin deployments
	// behind a reverse proxy; origin is not otherwise restricted here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades /ws connections and serves /ws/status (spec §6).
type Handler struct {
	hub     *Hub
	authSvc *auth.Service
	logger  *slog.Logger
}

// NewHandler creates a livesync Handler.
func NewHandler(hub *Hub, authSvc *auth.Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, authSvc: authSvc, logger: logger}
}

// Routes mounts /ws (public at the router level; authenticated via the
// token query parameter, not the bearer-header middleware) and /ws/status.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleUpgrade)
	r.Get("/status", h.handleStatus)
	return r
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	identity, err := h.authSvc.Authenticate(r.Context(), token)

	conn, upErr := upgrader.Upgrade(w, r, nil)
	if upErr != nil {
		h.logger.Warn("websocket upgrade failed", "error", upErr)
		return
	}

	if err != nil {
		code := closeTokenInvalid
		if aerr, ok := apperr.As(err); ok && aerr.Kind == apperr.KindAuthFailed && token != "" {
			code = closeTokenExpired
		}
		closeMsg := websocket.FormatCloseMessage(code, "token validation failed")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	client := h.hub.Attach(identity.Username)
	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case env, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientMessage is the inbound shape clients may send: ping, get_users, or
// a user-sourced broadcast (spec §4.5).
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer h.hub.Detach(client.ID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			h.hub.SendTo(client, Envelope{Type: EnvelopePong})
		case "get_users":
			h.hub.SendTo(client, Envelope{Type: EnvelopeConnectedUsers, Data: h.hub.ConnectedUsers()})
		case "user_message":
			h.hub.Broadcast(Envelope{Type: EnvelopeUserMessage, Data: msg.Data})
		}
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"connected_clients": h.hub.Size()})
}
