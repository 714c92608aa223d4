package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mind-engage/pruefungstrainer/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type timerFrame struct {
	session.TimerState
	Finished bool `json:"finished"`
}

// TimerStreamHandler upgrades GET /sessions/{id}/timer/ws and pushes the
// countdown once per tick. The stream ends after the first frame with the
// countdown stopped, or when the client goes away.
func TimerStreamHandler(m *session.Manager, tick time.Duration) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			st := s.State()
			// An expired countdown is reported together with the finished
			// session, never before it.
			settling := !st.Timer.Running && st.Timer.Expired && !st.Finished
			if !settling {
				if err := conn.WriteJSON(timerFrame{TimerState: st.Timer, Finished: st.Finished}); err != nil {
					return
				}
			}
			if !st.Timer.Running && !settling {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "timer stopped"),
					time.Now().Add(time.Second))
				return
			}
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case <-t.C:
			}
		}
	})
}
