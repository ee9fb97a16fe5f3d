package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kalambet/creatorswipe/internal/session"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

const (
	wsIdleTimeout  = 2 * time.Minute
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin may connect, matching the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsReply struct {
	Snapshot *sessionView         `json:"snapshot,omitempty"`
	Outcome  *swipe.Outcome       `json:"outcome,omitempty"`
	Decision *swipe.DecisionEvent `json:"decision,omitempty"`
	Error    *wsError             `json:"error,omitempty"`
}

type wsError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func handleSessionSocket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, err := deps.Sessions.Get(id)
		if err != nil {
			sessionError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
			return
		}
		defer conn.Close()

		deps.Logger.Debug("websocket connected", "session_id", id)
		if err := writeFrame(conn, wsReply{Snapshot: &sessionView{ID: id, Snapshot: snap}}); err != nil {
			return
		}

		for {
			conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					deps.Logger.Debug("websocket read ended", "session_id", id, "error", err)
				}
				return
			}

			reply, stop := handleFrame(deps.Sessions, id, msg)
			if err := writeFrame(conn, reply); err != nil {
				deps.Logger.Debug("websocket write failed", "session_id", id, "error", err)
				return
			}
			if stop {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(wsWriteTimeout))
				return
			}
		}
	}
}

// handleFrame applies one client frame: a gesture, or {"type":"like"|"reject"}.
// stop is true once the session no longer exists.
func handleFrame(sessions *session.Manager, id string, msg []byte) (reply wsReply, stop bool) {
	var f swipe.Gesture
	if err := json.Unmarshal(msg, &f); err != nil {
		return wsReply{Error: &wsError{Message: "invalid JSON: " + err.Error(), Type: "invalid_request_error"}}, false
	}

	var (
		resp actionResponse
		err  error
	)
	switch f.Type {
	case swipe.GestureType(swipe.Like), swipe.GestureType(swipe.Reject):
		resp, err = applyDecision(sessions, id, swipe.Decision(f.Type))
	default:
		resp, err = applyGesture(sessions, id, f)
	}
	if err != nil {
		reply.Error = frameError(err)
		if snap, gerr := sessions.Get(id); gerr == nil {
			reply.Snapshot = &sessionView{ID: id, Snapshot: snap}
		}
		return reply, errors.Is(err, session.ErrNotFound)
	}

	return wsReply{Snapshot: &resp.Snapshot, Outcome: resp.Outcome, Decision: resp.Decision}, false
}

func frameError(err error) *wsError {
	t := "server_error"
	switch {
	case errors.Is(err, session.ErrNotFound):
		t = "not_found"
	case errors.Is(err, swipe.ErrGestureActive):
		t = "gesture_active"
	case errors.Is(err, swipe.ErrNoProfile):
		t = "no_profile"
	case errors.Is(err, swipe.ErrFeedExhausted):
		t = "feed_exhausted"
	case errors.Is(err, swipe.ErrUnknownGesture):
		t = "invalid_request_error"
	}
	return &wsError{Message: err.Error(), Type: t}
}

func writeFrame(conn *websocket.Conn, v wsReply) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
