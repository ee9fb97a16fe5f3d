package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/session"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

type sessionView struct {
	ID string `json:"id"`
	swipe.Snapshot
}

type createSessionRequest struct {
	Profiles []draftRequest `json:"profiles"`
}

type actionResponse struct {
	Snapshot sessionView          `json:"snapshot"`
	Outcome  *swipe.Outcome       `json:"outcome,omitempty"`
	Decision *swipe.DecisionEvent `json:"decision,omitempty"`
}

// sessionError maps engine and session errors onto HTTP responses.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, session.ErrLimitReached):
		httpError(w, http.StatusServiceUnavailable, "session_limit", "%v", err)
	case errors.Is(err, swipe.ErrGestureActive):
		httpError(w, http.StatusConflict, "gesture_active", "%v", err)
	case errors.Is(err, swipe.ErrNoProfile):
		httpError(w, http.StatusNotFound, "no_profile", "%v", err)
	case errors.Is(err, swipe.ErrFeedExhausted):
		httpError(w, http.StatusConflict, "feed_exhausted", "%v", err)
	case errors.Is(err, swipe.ErrUnknownGesture):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "server_error", "%v", err)
	}
}

func localRecords(deps Deps, reqs []draftRequest) ([]profile.Record, error) {
	drafts := make([]profile.Draft, 0, len(reqs))
	for _, req := range reqs {
		d, err := req.toDraft()
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return deps.Profiles.Local(drafts)
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		local, err := localRecords(deps, req.Profiles)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		id, snap, err := deps.Sessions.Create(r.Context(), local)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionView{ID: id, Snapshot: snap})
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, err := deps.Sessions.Get(id)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{ID: id, Snapshot: snap})
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// applyGesture feeds one gesture to the session engine and returns the
// resulting view. Shared by the HTTP and websocket transports.
func applyGesture(sessions *session.Manager, id string, g swipe.Gesture) (actionResponse, error) {
	resp := actionResponse{Snapshot: sessionView{ID: id}}
	err := sessions.Do(id, func(e *swipe.Engine) error {
		out, err := e.Handle(g)
		if err != nil {
			return err
		}
		if g.Type == swipe.GestureEnd {
			resp.Outcome = &out
			resp.Decision = out.Event
		}
		resp.Snapshot.Snapshot = e.Snapshot()
		return nil
	})
	return resp, err
}

func applyDecision(sessions *session.Manager, id string, d swipe.Decision) (actionResponse, error) {
	resp := actionResponse{Snapshot: sessionView{ID: id}}
	err := sessions.Do(id, func(e *swipe.Engine) error {
		ev, err := e.Decide(d)
		if err != nil {
			return err
		}
		resp.Decision = &ev
		resp.Snapshot.Snapshot = e.Snapshot()
		return nil
	})
	return resp, err
}

func handleGesture(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g swipe.Gesture
		if err := decodeBody(w, r, &g); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		resp, err := applyGesture(deps.Sessions, chi.URLParam(r, "id"), g)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSessionDecision(deps Deps, d swipe.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := applyDecision(deps.Sessions, chi.URLParam(r, "id"), d)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleAddSessionProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		local, err := localRecords(deps, []draftRequest{req})
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		id := chi.URLParam(r, "id")
		snap, err := deps.Sessions.AddLocal(r.Context(), id, local[0])
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{ID: id, Snapshot: snap})
	}
}

func handleRefreshSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, err := deps.Sessions.Refresh(r.Context(), id)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{ID: id, Snapshot: snap})
	}
}
