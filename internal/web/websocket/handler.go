package websocket

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/middleware"
)

// Handler upgrades requests to the activity feed. origins lists the allowed
// browser origins; requests without an Origin header are always accepted.
// ?types=sync.*,advisor.replied limits the feed.
func Handler(hub *Hub, origins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(origin, origins)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Debug("upgrade failed", zap.Error(err))
			return
		}

		var userID string
		if p, ok := auth.FromContext(r.Context()); ok {
			userID = p.UserID
		}
		var types []string
		if raw := r.URL.Query().Get("types"); raw != "" {
			types = strings.Split(raw, ",")
		}

		c := newClient(uuid.NewString(), userID, conn, hub, types)
		select {
		case hub.register <- c:
		case <-hub.done:
			conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}
