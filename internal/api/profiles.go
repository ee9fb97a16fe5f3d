package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/storage"
)

// draftRequest accepts tags either as a JSON array or as the comma-separated
// string the web form submits.
type draftRequest struct {
	profile.Draft
	RawTags json.RawMessage `json:"tags"`
}

func (d draftRequest) toDraft() (profile.Draft, error) {
	out := d.Draft
	out.Tags = nil
	raw := strings.TrimSpace(string(d.RawTags))
	if raw == "" || raw == "null" {
		return out, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(d.RawTags, &s); err != nil {
			return out, err
		}
		out.Tags = profile.ParseTags(s)
		return out, nil
	}
	if err := json.Unmarshal(d.RawTags, &out.Tags); err != nil {
		return out, errors.New("tags must be a string or an array of strings")
	}
	return out, nil
}

type profileView struct {
	profile.Record
	storage.DecisionCounts
}

func handleListProfiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := deps.Catalog.Profiles()
		if err != nil {
			deps.Logger.Error("listing profiles", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to list profiles")
			return
		}
		writeJSON(w, http.StatusOK, rs)
	}
}

func handleCreateProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		d, err := req.toDraft()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		rec, err := deps.Profiles.Create(d)
		if err != nil {
			var invalid *profile.InvalidRecordError
			if errors.As(err, &invalid) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", invalid.Error())
				return
			}
			deps.Logger.Error("creating profile", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to save profile")
			return
		}

		deps.Logger.Info("profile created", "profile_id", rec.ID, "name", rec.Name)
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Profile created successfully",
			"id":      rec.ID,
		})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := deps.Catalog.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "profile %q not found", id)
			return
		}
		if err != nil {
			deps.Logger.Error("getting profile", "profile_id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to load profile")
			return
		}

		view := profileView{Record: rec}
		if deps.Decisions != nil {
			counts, err := deps.Decisions.DecisionCounts(id)
			if err != nil {
				deps.Logger.Warn("counting decisions", "profile_id", id, "error", err)
			} else {
				view.DecisionCounts = counts
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleListIdeas(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ideas, err := deps.Catalog.Ideas()
		if err != nil {
			deps.Logger.Error("listing ideas", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to list ideas")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ideas": ideas})
	}
}

type matchRequest struct {
	NewIdea string `json:"new_idea"`
}

func handleMatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}
		if strings.TrimSpace(req.NewIdea) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "new_idea is required")
			return
		}

		ideas, err := deps.Catalog.Ideas()
		if err != nil {
			deps.Logger.Error("listing ideas", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "failed to list ideas")
			return
		}
		if len(ideas) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no existing ideas to compare against")
			return
		}

		rankings, err := deps.Matcher.Rank(r.Context(), ideas, req.NewIdea)
		if err != nil {
			if errors.Is(err, matcher.ErrNoModel) {
				httpError(w, http.StatusServiceUnavailable, "model_unavailable", "%v", err)
				return
			}
			deps.Logger.Error("ranking ideas", "error", err)
			httpError(w, http.StatusBadGateway, "model_error", "failed to rank ideas: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"new_idea": req.NewIdea,
			"rankings": rankings,
		})
	}
}
