package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/clearledger/reconcile-backend/internal/progress"
)

// WSHandler upgrades clients onto the progress hub.
type WSHandler struct {
	hub      *progress.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a websocket handler bound to the hub.
func NewWSHandler(hub *progress.Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Origin policy is enforced by the CORS middleware for the
			// rest of the API; the stream carries no sensitive data.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws - upgrades the connection and registers it for
// progress events until the client disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.hub.Register(conn)
	h.logger.Debug("progress client connected", "clients", h.hub.ClientCount())

	// Drain the connection. Clients never send meaningful messages; the
	// read loop exists to detect disconnects.
	go func() {
		defer func() {
			h.hub.Unregister(conn)
			_ = conn.Close()
			h.logger.Debug("progress client disconnected", "clients", h.hub.ClientCount())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
