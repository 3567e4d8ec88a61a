package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/confluence/internal/domain"
)

var upgrader = websocket.Upgrader{
	// Mirrors the teacher's local-only CORS posture: only localhost origins
	// may open a stream, since this surface is a read-only dashboard feed,
	// not a public API.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	},
}

// streamSnapshot is the read-only payload relayed to connected clients,
// named by its literal fields rather than anything query-model specific.
type streamSnapshot struct {
	Timestamp time.Time                       `json:"timestamp"`
	Alerts    []domain.Alert                  `json:"active_alerts"`
}

// Stream relays a read-only snapshot of active alerts to the client every
// few seconds over a websocket, per the §6/§9 boundary: interpretation and
// chat logic live outside this module, so the relay forwards raw rows only.
func (h *handlers) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alerts, err := h.store.Alerts().ListByStatus(ctx, domain.AlertActive)
			if err != nil {
				log.Warn().Err(err).Msg("stream: list active alerts")
				continue
			}
			snapshot := streamSnapshot{Timestamp: time.Now().UTC(), Alerts: alerts}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		}
	}
}
