package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/pruefungstrainer/internal/auth/middleware"
	"github.com/mind-engage/pruefungstrainer/internal/rbac"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
)

// GET /results?user_id=...&limit=50
// Callers without results:view-all only ever see their own results.
func ListResultsHandler(store results.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !rbac.Can(r.Context(), rbac.PermResultsViewAll) {
			userID = authmw.SubjectFromContext(r.Context())
		}
		list, err := store.ListByUser(r.Context(), userID, parseIntDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []results.Result{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /results/{resultID}
func GetResultHandler(store results.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.Get(r.Context(), chi.URLParam(r, "resultID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if res.UserID != authmw.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), rbac.PermResultsViewAll) {
			writeError(w, results.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// PUT /me/preferences/timer {"enabled": false}
func SetTimerPreferenceHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "enabled required", http.StatusBadRequest)
			return
		}
		if err := m.SetTimerPreference(r.Context(), authmw.SubjectFromContext(r.Context()), *req.Enabled); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
