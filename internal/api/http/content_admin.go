package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/storage"
	syncx "github.com/mind-engage/pruefungstrainer/internal/sync"
)

const maxDocumentBytes = 16 << 20

// MountContent exposes the raw content documents to admins. Replacements
// are recorded in events when it is not nil; a failed record is logged and
// does not fail the upload.
func MountContent(r chi.Router, bs storage.BlobStore, lib *content.Library, events *syncx.EventRepo, log zerolog.Logger) {
	// GET /admin/content
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		keys, err := bs.List()
		if err != nil {
			writeError(w, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, http.StatusOK, keys)
	})

	// GET /admin/content/*
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			if statusFor(err) == http.StatusBadRequest {
				writeError(w, err)
				return
			}
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, rc)
	})

	// PUT /admin/content/*  replaces a document. It must parse before it is
	// stored; the cached catalog is swapped in place.
	r.Put("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		cat, err := content.Parse(body)
		if err != nil {
			http.Error(w, "invalid document: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		stored, err := bs.Put(key, bytes.NewReader(body))
		if err != nil {
			writeError(w, err)
			return
		}
		lib.Put(stored, cat)
		if events != nil {
			ev, err := syncx.NewEvent(syncx.TypeContentReplaced, stored, map[string]interface{}{
				"bytes":  len(body),
				"levels": cat.LevelKeys(),
			})
			if err == nil {
				err = events.Append(r.Context(), ev)
			}
			if err != nil {
				log.Error().Err(err).Str("key", stored).Msg("content replaced, audit event not recorded")
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": stored, "levels": cat.LevelKeys()})
	})
}

// GET /admin/events?after=0&limit=100
func ListEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after := int64(parseIntDefault(r.URL.Query().Get("after"), 0))
		list, err := events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
