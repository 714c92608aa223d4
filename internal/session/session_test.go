package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
	"github.com/mind-engage/pruefungstrainer/internal/grading"
	"github.com/mind-engage/pruefungstrainer/internal/matching"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
)

const doc = `{"levels": {"b1": {"themes": {"arbeit": {
  "versionOrder": ["1", "2"],
  "versions": {
    "1": {"lesen": {"parts": {
      "teil-1": {"content": {
        "texts": [{"id": 1}, {"id": 2}],
        "headlines": [{"id": "a"}, {"id": "b"}],
        "answers": [{"textId": 1, "headlineId": "b"}, {"textId": 2, "headlineId": "a"}]
      }},
      "teil-2": {"content": {"questions": [{"id": "q1", "options": [{"id": "a"}, {"id": "b"}], "answerId": "a"}]}}
    }}},
    "2": {"lesen": {"parts": {
      "teil-1": {"content": {
        "texts": [{"id": 1}],
        "headlines": [{"id": "a"}],
        "answers": [{"textId": 1, "headlineId": "a"}]
      }}
    }}}
  },
  "hören": {"parts": {"aussagen": {"content": {"topics": [
    {"title": "Wetter", "statements": [{"id": "h1", "number": 1, "correct": true}, {"id": "h2", "number": 2}]}
  ]}}}}
}}}}}`

func modules(minutes float64) config.Modules {
	return config.Modules{Default: "lesen", List: []config.Module{{
		Name:     "lesen",
		DataFile: "lesen.json",
		Timer:    config.Timer{Enabled: true, DurationMinutes: minutes},
		Score:    grading.DefaultConfig(),
	}}}
}

func newManager(t *testing.T, minutes float64, opts ...session.Option) *session.Manager {
	t.Helper()
	cat, err := content.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lib := content.NewLibrary(nil)
	lib.Put("lesen.json", cat)
	return session.NewManager(lib, modules(minutes), opts...)
}

func start(t *testing.T, m *session.Manager, req session.StartRequest) *session.Session {
	t.Helper()
	s, err := m.Start(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitFinished(s *session.Session, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if s.State().Finished {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestNavigationFinishesFromLastPart(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Version: "1"})

	st := s.Prev()
	if st.Index != 0 || st.Current != "teil-1" || st.View != session.ViewExam {
		t.Fatalf("prev at first part: %+v", st)
	}
	if !st.Timer.Running {
		t.Errorf("reading session should be timed: %+v", st.Timer)
	}
	if err := s.Record("teil-1", "1", "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("teil-1", "2", "a"); err != nil {
		t.Fatal(err)
	}
	st = s.Next()
	if st.Current != "teil-2" || st.Finished {
		t.Fatalf("next: %+v", st)
	}
	if err := s.Record("teil-2", "q1", "b"); err != nil {
		t.Fatal(err)
	}

	st = s.Next()
	if !st.Finished || st.View != session.ViewResults || st.Index != 1 {
		t.Fatalf("next from last part should show results: %+v", st)
	}
	if st.Timer.Running {
		t.Errorf("timer must stop on finish")
	}
	res, final := s.Results()
	if !final || res.Reason != results.ReasonManual {
		t.Fatalf("result: %+v", res)
	}
	// teil-1: 2 of 2 at 5 points, teil-2: 0 of 1 at 5 points.
	if res.TotalEarned != 10 || res.TotalMax != 15 || res.Percent != 67 || !res.Passed {
		t.Errorf("totals: %+v", res)
	}
	if err := s.Record("teil-2", "q1", "a"); !errors.Is(err, exam.ErrSubmitted) {
		t.Errorf("record after finish: got %v", err)
	}
	again, fresh := s.Finish(results.ReasonManual)
	if fresh || again.ID != res.ID {
		t.Errorf("finish must score once")
	}
}

func TestRecordValidation(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Version: "1"})
	cases := []struct {
		name  string
		part  string
		item  string
		value interface{}
		want  error
	}{
		{"bool for reading part", "teil-1", "1", true, session.ErrInvalidValue},
		{"unknown slot", "teil-1", "9", "a", matching.ErrUnknownSlot},
		{"unknown choice", "teil-2", "q1", "z", matching.ErrUnknownFiller},
		{"unknown part", "teil-9", "1", "a", content.ErrPartNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := s.Record(c.part, c.item, c.value); !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
		})
	}
	if err := s.Record("teil-1", "1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("teil-1", "2", "a"); !errors.Is(err, matching.ErrFillerClaimed) {
		t.Errorf("claimed headline: got %v", err)
	}
}

func TestPartViewHidesAnswersUntilSubmitted(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Version: "1"})
	_ = s.Record("teil-1", "1", "b")

	pv, err := s.Part("teil-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pv.Part.Answers) != 0 || pv.Score != nil {
		t.Errorf("open part leaks the key: %+v", pv)
	}
	if pv.Used["b"] != "1" || pv.Progress.Answered != 1 {
		t.Errorf("used/progress: %+v %+v", pv.Used, pv.Progress)
	}

	submitted, err := s.Toggle("teil-1")
	if err != nil || !submitted {
		t.Fatalf("toggle: %v %v", submitted, err)
	}
	pv, _ = s.Part("teil-1")
	if len(pv.Part.Answers) != 2 || pv.Score == nil || pv.Score.CorrectCount != 1 {
		t.Errorf("submitted view: %+v", pv)
	}

	submitted, _ = s.Toggle("teil-1")
	pv, _ = s.Part("teil-1")
	if submitted || pv.State.Submitted || len(pv.State.Responses) != 0 {
		t.Errorf("second toggle should reset the part: %+v", pv.State)
	}
}

func TestRetryClearsCurrentVersion(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Version: "1"})
	_ = s.Record("teil-1", "1", "b")
	s.Next()
	s.Finish(results.ReasonManual)

	st := s.Retry()
	if st.Finished || st.Index != 0 || st.View != session.ViewExam || !st.Timer.Running {
		t.Fatalf("retry: %+v", st)
	}
	pv, _ := s.Part("teil-1")
	if pv.State.Submitted || len(pv.State.Responses) != 0 {
		t.Errorf("retry must clear responses: %+v", pv.State)
	}
	if err := s.Record("teil-1", "1", "a"); err != nil {
		t.Errorf("record after retry: %v", err)
	}
}

func TestSwitchVersionStartsFresh(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Version: "1"})
	_ = s.Record("teil-1", "1", "b")

	st, err := s.SwitchVersion("2")
	if err != nil {
		t.Fatal(err)
	}
	if st.Version != "2" || len(st.Order) != 1 || st.Index != 0 {
		t.Fatalf("switched: %+v", st)
	}
	pv, _ := s.Part("teil-1")
	if len(pv.State.Responses) != 0 {
		t.Errorf("version 2 must not see version 1 answers: %+v", pv.State.Responses)
	}
	if _, err := s.SwitchVersion("7"); !errors.Is(err, content.ErrVersionNotFound) {
		t.Errorf("unknown version: got %v", err)
	}
	if s.State().Version != "2" {
		t.Errorf("failed switch must keep the version")
	}
}

func TestTimerExpiryFinishesOnce(t *testing.T) {
	store := results.NewInMemoryStore()
	m := newManager(t, 0.0005, session.WithResults(store))
	s := start(t, m, session.StartRequest{Version: "1"})
	_ = s.Record("teil-1", "1", "b")

	if !waitFinished(s, 2*time.Second) {
		t.Fatal("timer expiry did not finish the session")
	}
	res, _ := s.Results()
	if res.Reason != results.ReasonTimer {
		t.Errorf("reason: %q", res.Reason)
	}
	time.Sleep(50 * time.Millisecond)
	saved, _ := store.ListByUser(context.Background(), "u1", 10)
	if len(saved) != 1 {
		t.Errorf("expected exactly one persisted result, got %d", len(saved))
	}
	if err := s.Record("teil-2", "q1", "a"); !errors.Is(err, exam.ErrSubmitted) {
		t.Errorf("expiry must submit every part: %v", err)
	}
}

func TestZeroDurationNeverExpires(t *testing.T) {
	s := start(t, newManager(t, 0), session.StartRequest{Version: "1"})
	st := s.State()
	if st.Timer.Enabled || st.Timer.Running || st.Timer.RemainingMs != 0 {
		t.Errorf("zero duration: %+v", st.Timer)
	}
	if waitFinished(s, 50*time.Millisecond) {
		t.Errorf("zero duration must not auto-finish")
	}
}

func TestLeaveStopsTimer(t *testing.T) {
	s := start(t, newManager(t, 0.002), session.StartRequest{Version: "1"})
	st := s.Leave()
	if st.View != session.ViewMenu || st.Timer.Running {
		t.Fatalf("leave: %+v", st)
	}
	if waitFinished(s, 200*time.Millisecond) {
		t.Errorf("timer fired outside the exam view")
	}
	if st := s.Resume(); st.View != session.ViewExam || !st.Timer.Running {
		t.Errorf("resume: %+v", st)
	}
}

func TestTimerPreferenceOverridesModule(t *testing.T) {
	store := results.NewInMemoryStore()
	_ = store.SetTimerPreference(context.Background(), "u1", false)
	m := newManager(t, 90, session.WithResults(store))
	s := start(t, m, session.StartRequest{})
	if s.State().Timer.Enabled {
		t.Fatalf("stored preference should disable the timer")
	}
	if err := m.SetTimerPreference(context.Background(), "u1", true); err != nil {
		t.Fatal(err)
	}
	if !s.State().Timer.Running {
		t.Errorf("enabling should restart the countdown")
	}
}

func TestHoerenSession(t *testing.T) {
	s := start(t, newManager(t, 90), session.StartRequest{Section: session.SectionHoeren})
	st := s.State()
	if st.Timer.Enabled || st.Current != "aussagen" || st.Version != "" {
		t.Fatalf("hören state: %+v", st)
	}
	if err := s.Record("aussagen", "h1", "ja"); !errors.Is(err, session.ErrInvalidValue) {
		t.Errorf("string for statement: got %v", err)
	}
	if _, err := s.CheckTopics("aussagen"); !errors.Is(err, exam.ErrNotSubmitted) {
		t.Errorf("check before submit: got %v", err)
	}
	topics, _ := s.Topics("aussagen", "wett")
	if len(topics) != 1 || topics[0].Statements[0].Correct {
		t.Errorf("public topics: %+v", topics)
	}
	_ = s.Record("aussagen", "h1", true)
	_ = s.Record("aussagen", "h2", false)
	if _, err := s.Toggle("aussagen"); err != nil {
		t.Fatal(err)
	}
	sum, err := s.CheckTopics("aussagen")
	if err != nil || sum.Correct != 1 || sum.Total != 1 {
		t.Errorf("topics: %+v %v", sum, err)
	}
	if _, err := s.SwitchVersion("1"); !errors.Is(err, session.ErrNoVersions) {
		t.Errorf("hören has no versions: %v", err)
	}
}

func TestManagerOwnershipAndSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, 90, session.WithClock(func() time.Time { return now }), session.WithIdleTimeout(time.Hour))
	s := start(t, m, session.StartRequest{})

	if _, err := m.Get(s.ID, "u2"); !errors.Is(err, session.ErrForbidden) {
		t.Errorf("foreign owner: %v", err)
	}
	if _, err := m.Get("nope", "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if got, err := m.Get(s.ID, ""); err != nil || got != s {
		t.Errorf("unchecked get: %v", err)
	}

	if n := m.Sweep(); n != 0 {
		t.Errorf("fresh session swept")
	}
	now = now.Add(2 * time.Hour)
	if n := m.Sweep(); n != 1 || m.Len() != 0 {
		t.Errorf("idle session kept: swept %d, left %d", n, m.Len())
	}
}
