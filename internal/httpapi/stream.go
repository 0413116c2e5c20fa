package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"utmcore/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The registration/telemetry paths carry their own bearer auth; the
	// browser-facing stream endpoint is read-only, so any origin may open
	// it once authenticated.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleCommandStream upgrades to a websocket and pushes every command
// issued to the authenticated drone until the connection closes, replaying
// any still-unexpired delivered command on connect (store.Subscribe).
func (a *API) handleCommandStream(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequireDrone(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn(r.Context(), "websocket upgrade failed", "drone_id", principal.Name, "error", err)
		return
	}
	defer conn.Close()

	commands, unsubscribe := a.store.Subscribe(principal.Name)
	defer unsubscribe()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Drain client-initiated control frames (pong/close) on their own
	// goroutine so the main loop only has to select on commands/ticker.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cmd); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
