package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
	"github.com/mind-engage/pruefungstrainer/internal/matching"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
	"github.com/mind-engage/pruefungstrainer/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrLevelNotFound),
		errors.Is(err, content.ErrThemeNotFound),
		errors.Is(err, content.ErrVersionNotFound),
		errors.Is(err, content.ErrPartNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, results.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrSubmitted),
		errors.Is(err, exam.ErrNotSubmitted),
		errors.Is(err, matching.ErrFillerClaimed):
		return http.StatusConflict
	case errors.Is(err, matching.ErrUnknownSlot),
		errors.Is(err, matching.ErrUnknownFiller),
		errors.Is(err, session.ErrInvalidValue),
		errors.Is(err, session.ErrNoVersions),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
