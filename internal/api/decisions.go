package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/creatorswipe/internal/storage"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

type decisionRequest struct {
	ProfileID string    `json:"profileId"`
	Decision  string    `json:"decision"`
	SessionID string    `json:"sessionId,omitempty"`
	At        time.Time `json:"at,omitzero"`
}

func handleCreateDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decisionRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		req.ProfileID = strings.TrimSpace(req.ProfileID)
		if req.ProfileID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "profileId is required")
			return
		}
		d, err := swipe.ParseDecision(req.Decision)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		ev, err := deps.Recorder.Record(swipe.DecisionEvent{
			ProfileID: req.ProfileID,
			Decision:  d,
			At:        req.At,
		}, req.SessionID)
		if err != nil {
			deps.Logger.Error("recording decision", "profile_id", req.ProfileID, "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to record decision")
			return
		}
		writeJSON(w, http.StatusCreated, ev)
	}
}

func handleListDecisions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		ds, err := deps.Decisions.ListDecisions(limit, offset)
		if err != nil {
			deps.Logger.Error("listing decisions", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to list decisions")
			return
		}
		if ds == nil {
			ds = []storage.Decision{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"decisions": ds,
			"limit":     limit,
			"offset":    offset,
		})
	}
}
