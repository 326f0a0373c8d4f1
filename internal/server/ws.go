package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// levelInterval is how often a level frame is pushed to each websocket
// client, fast enough for a responsive meter without flooding.
const levelInterval = 100 * time.Millisecond

// levelFrame is one websocket meter update.
type levelFrame struct {
	Level    float64 `json:"level"`
	Damped   float64 `json:"damped"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
}

// handleLevels implements the /ws/levels endpoint. Each client gets a
// level frame every levelInterval until it disconnects.
func (h *HTTPServer) handleLevels(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local control API, no origin policy
	})
	if err != nil {
		slog.Warn("Websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	slog.Debug("Level feed client connected", "remote", r.RemoteAddr)

	ctx := r.Context()
	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := h.engine.Status()
			frame := levelFrame{
				Level:    status.RawLevel,
				Damped:   status.DampedLevel,
				State:    status.State,
				Progress: status.Progress,
			}

			if err := wsjson.Write(ctx, conn, frame); err != nil {
				slog.Debug("Level feed client disconnected", "remote", r.RemoteAddr)
				return
			}
		}
	}
}
