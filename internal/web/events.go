package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zombor/lotto-checker/internal/flow"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// stateEvent is pushed to the browser on every transition
type stateEvent struct {
	State flow.StateName `json:"state"`
}

// handleEvents upgrades to a websocket and streams the session's state changes
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		slog.Warn("Websocket upgrade failed", "session", sess.ID(), "error", err)
		return
	}
	defer conn.Close()

	// The client never sends anything; reading only detects the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(st flow.State) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(stateEvent{State: st.Name()})
	}

	if err := send(sess.State()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := send(st); err != nil {
				slog.Debug("Websocket write failed", "session", sess.ID(), "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
