package http

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/pruefungstrainer/internal/auth/middleware"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/rbac"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
)

// MountSessions wires the exam session routes under /sessions.
func MountSessions(r chi.Router, m *session.Manager) {
	r.Post("/", StartSessionHandler(m))
	r.Route("/{sessionID}", func(sr chi.Router) {
		sr.Get("/", withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			writeJSON(w, http.StatusOK, s.State())
		}))
		sr.Delete("/", DeleteSessionHandler(m))

		sr.Post("/next", stateAction(m, (*session.Session).Next))
		sr.Post("/prev", stateAction(m, (*session.Session).Prev))
		sr.Post("/retry", stateAction(m, (*session.Session).Retry))
		sr.Post("/leave", stateAction(m, (*session.Session).Leave))
		sr.Post("/resume", stateAction(m, (*session.Session).Resume))
		sr.Post("/finish", FinishHandler(m))
		sr.Post("/version", SwitchVersionHandler(m))
		sr.Post("/goto", GoToHandler(m))
		sr.Get("/results", SessionResultsHandler(m))
		sr.Get("/timer", withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			writeJSON(w, http.StatusOK, s.TimerState())
		}))

		sr.Route("/parts/{part}", func(pr chi.Router) {
			pr.Get("/", partAction(m, func(s *session.Session, part string, _ *http.Request) error { return nil }))
			pr.Put("/responses/{item}", RecordResponseHandler(m))
			pr.Delete("/responses/{item}", partAction(m, func(s *session.Session, part string, r *http.Request) error {
				return s.Clear(part, chi.URLParam(r, "item"))
			}))
			pr.Post("/assign", pairAction(m, (*session.Session).Record))
			pr.Post("/drop", pairAction(m, func(s *session.Session, part, slot string, filler interface{}) error {
				f, _ := filler.(string)
				return s.Drop(part, slot, f)
			}))
			pr.Post("/release", ReleaseHandler(m))
			pr.Post("/select", SelectHandler(m))
			pr.Post("/toggle", ToggleHandler(m))
			pr.Get("/score", ScoreHandler(m))
			pr.Get("/topics", TopicsHandler(m))
			pr.Get("/check", CheckTopicsHandler(m))
		})
	})
}

// owner is the subject a session lookup is scoped to; roles allowed to see
// every result may open any session.
func owner(r *http.Request) string {
	if rbac.Can(r.Context(), rbac.PermResultsViewAll) {
		return ""
	}
	return authmw.SubjectFromContext(r.Context())
}

func withSession(m *session.Manager, fn func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(chi.URLParam(r, "sessionID"), owner(r))
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, s)
	}
}

func stateAction(m *session.Manager, fn func(*session.Session) session.State) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, fn(s))
	})
}

// partAction runs fn and answers with the updated part view.
func partAction(m *session.Manager, fn func(s *session.Session, part string, r *http.Request) error) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		part := chi.URLParam(r, "part")
		if err := fn(s, part, r); err != nil {
			writeError(w, err)
			return
		}
		pv, err := s.Part(part)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pv)
	})
}

type pairRequest struct {
	Slot   string      `json:"slot"`
	Filler interface{} `json:"filler"`
}

func pairAction(m *session.Manager, fn func(s *session.Session, part, slot string, filler interface{}) error) http.HandlerFunc {
	return partAction(m, func(s *session.Session, part string, r *http.Request) error {
		var req pairRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return session.ErrInvalidValue
		}
		return fn(s, part, req.Slot, req.Filler)
	})
}

// POST /sessions  {"module","level","theme","version","section"}
func StartSessionHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req session.StartRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		s, err := m.Start(r.Context(), authmw.SubjectFromContext(r.Context()), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.State())
	}
}

func DeleteSessionHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		m.Delete(s.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

// POST /sessions/{id}/finish
func FinishHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		res, _ := s.Finish(results.ReasonManual)
		writeJSON(w, http.StatusOK, res)
	})
}

// POST /sessions/{id}/version {"version":"2"}
func SwitchVersionHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req struct {
			Version string `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Version == "" {
			http.Error(w, "version required", http.StatusBadRequest)
			return
		}
		st, err := s.SwitchVersion(req.Version)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// POST /sessions/{id}/goto {"part":"teil-2"}
func GoToHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req struct {
			Part string `json:"part"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Part == "" {
			http.Error(w, "part required", http.StatusBadRequest)
			return
		}
		st, err := s.GoTo(req.Part)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// GET /sessions/{id}/results returns the final result, or a live preview
// while the session is still open.
func SessionResultsHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		res, final := s.Results()
		writeJSON(w, http.StatusOK, map[string]interface{}{"final": final, "result": res})
	})
}

// PUT /sessions/{id}/parts/{part}/responses/{item}  {"value": "a"|true}
func RecordResponseHandler(m *session.Manager) http.HandlerFunc {
	return partAction(m, func(s *session.Session, part string, r *http.Request) error {
		var req struct {
			Value interface{} `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return session.ErrInvalidValue
		}
		return s.Record(part, chi.URLParam(r, "item"), req.Value)
	})
}

// POST .../release {"filler":"b"}
func ReleaseHandler(m *session.Manager) http.HandlerFunc {
	return pairAction(m, func(s *session.Session, part, _ string, filler interface{}) error {
		f, ok := filler.(string)
		if !ok || f == "" {
			return session.ErrInvalidValue
		}
		return s.Release(part, f)
	})
}

// POST .../select {"slot":"1"} or {"filler":"b"}
func SelectHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		part := chi.URLParam(r, "part")
		var req struct {
			Slot   string `json:"slot"`
			Filler string `json:"filler"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Slot == "") == (req.Filler == "") {
			http.Error(w, "exactly one of slot and filler required", http.StatusBadRequest)
			return
		}
		assigned, err := s.Select(part, req.Slot, req.Filler)
		if err != nil {
			writeError(w, err)
			return
		}
		pv, err := s.Part(part)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"assigned": assigned, "part": pv})
	})
}

// POST .../toggle submits an open part or resets a submitted one.
func ToggleHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		part := chi.URLParam(r, "part")
		if _, err := s.Toggle(part); err != nil {
			writeError(w, err)
			return
		}
		pv, err := s.Part(part)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pv)
	})
}

func ScoreHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		b, err := s.Score(chi.URLParam(r, "part"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	})
}

// GET .../topics?q=wetter&shuffle=1&seed=42
func TopicsHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		q := r.URL.Query()
		topics, err := s.Topics(chi.URLParam(r, "part"), q.Get("q"))
		if err != nil {
			writeError(w, err)
			return
		}
		if topics == nil {
			topics = []content.Topic{}
		}
		out := map[string]interface{}{"topics": topics}
		if q.Get("shuffle") == "1" {
			seed := time.Now().UnixNano()
			if v, err := strconv.ParseInt(q.Get("seed"), 10, 64); err == nil {
				seed = v
			}
			out["order"] = content.ShuffleOrder(len(topics), rand.New(rand.NewSource(seed)))
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func CheckTopicsHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		sum, err := s.CheckTopics(chi.URLParam(r, "part"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})
}
