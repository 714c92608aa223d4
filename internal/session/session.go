package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
	"github.com/mind-engage/pruefungstrainer/internal/grading"
	"github.com/mind-engage/pruefungstrainer/internal/matching"
	"github.com/mind-engage/pruefungstrainer/internal/results"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrForbidden    = errors.New("session belongs to another user")
	ErrInvalidValue = errors.New("invalid response value")
	ErrNoVersions   = errors.New("section has no versions")
)

type Section string

const (
	SectionLesen  Section = "lesen"
	SectionHoeren Section = "hoeren"
)

// View is where the learner currently is.
type View string

const (
	ViewExam    View = "exam"
	ViewResults View = "results"
	ViewMenu    View = "menu"
)

// State is the navigable outline of a session.
type State struct {
	ID       string                      `json:"id"`
	Module   string                      `json:"module"`
	Section  Section                     `json:"section"`
	Level    string                      `json:"level"`
	Theme    string                      `json:"theme"`
	Version  string                      `json:"version,omitempty"`
	Versions []string                    `json:"versions,omitempty"`
	Order    []string                    `json:"order"`
	Index    int                         `json:"index"`
	Current  string                      `json:"current"`
	View     View                        `json:"view"`
	Finished bool                        `json:"finished"`
	Timer    TimerState                  `json:"timer"`
	Progress map[string]grading.Progress `json:"progress"`
}

// PartView is one part as the learner sees it. Answers and Hören truth
// values are only included once the part is submitted.
type PartView struct {
	Part     content.Part       `json:"part"`
	State    exam.PartState     `json:"state"`
	Used     map[string]string  `json:"used,omitempty"`
	Progress grading.Progress   `json:"progress"`
	Score    *grading.Breakdown `json:"score,omitempty"`
}

// Session is one learner working through the parts of a theme. All methods
// are safe for concurrent use.
type Session struct {
	ID      string
	Owner   string
	Module  config.Module
	Section Section
	Level   string
	Theme   string

	mu       sync.Mutex
	theme    *content.Theme
	version  string
	parts    *content.Section
	order    []string
	index    int
	view     View
	run      uint64
	finished bool
	result   *results.Result
	seen     time.Time

	store    *exam.Store
	match    *matching.Engine
	grader   *grading.Engine
	timer    *Timer
	override *bool
	onFinish func(results.Result)
	now      func() time.Time
}

func newSession(owner string, mod config.Module, sec Section, level string, th *content.Theme) *Session {
	store := exam.NewStore()
	return &Session{
		ID:      uuid.NewString(),
		Owner:   owner,
		Module:  mod,
		Section: sec,
		Level:   level,
		Theme:   th.Key,
		theme:   th,
		view:    ViewMenu,
		store:   store,
		match:   matching.New(store),
		grader:  grading.NewEngine(mod.Score),
		timer:   NewTimer(),
		now:     time.Now,
	}
}

func (s *Session) key(part string) exam.Key {
	return exam.Key{Level: s.Level, Theme: s.Theme, Version: s.version, Part: part}
}

func (s *Session) touch() { s.seen = s.now() }

// LastSeen is the time of the most recent interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// load points the session at the parts of version v; Hören ignores v.
func (s *Session) load(v string) error {
	if s.Section == SectionHoeren {
		sec, ok := s.theme.Hoeren()
		if !ok {
			return fmt.Errorf("%w: theme %s has no listening parts", content.ErrPartNotFound, s.Theme)
		}
		s.version, s.parts = "", sec
	} else {
		ver, err := s.theme.Version(v)
		if err != nil {
			return err
		}
		if ver.Lesen == nil {
			return fmt.Errorf("%w: %s/%s has no reading parts", content.ErrPartNotFound, s.Theme, v)
		}
		s.version, s.parts = v, ver.Lesen
	}
	s.order = s.parts.Order()
	s.index = 0
	return nil
}

// startLocked enters the exam view and restarts the countdown. Only
// reading sessions are timed.
func (s *Session) startLocked() {
	s.view = ViewExam
	s.run++
	if s.finished || s.Section != SectionLesen {
		s.timer.Stop()
		return
	}
	run := s.run
	enabled, d := s.Module.Timer.Resolve(s.override)
	s.timer.Start(d, enabled, func() { s.expire(run) })
}

func (s *Session) expire(run uint64) {
	s.mu.Lock()
	if run != s.run || s.finished || s.view != ViewExam {
		s.mu.Unlock()
		return
	}
	res := s.finishLocked(results.ReasonTimer)
	cb := s.onFinish
	s.mu.Unlock()
	if cb != nil {
		cb(res)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:       s.ID,
		Module:   s.Module.Name,
		Section:  s.Section,
		Level:    s.Level,
		Theme:    s.Theme,
		Version:  s.version,
		Order:    append([]string(nil), s.order...),
		Index:    s.index,
		View:     s.view,
		Finished: s.finished,
		Timer:    s.timer.State(),
		Progress: map[string]grading.Progress{},
	}
	if s.Section == SectionLesen {
		st.Versions = s.theme.VersionKeys()
	}
	if s.index < len(s.order) {
		st.Current = s.order[s.index]
	}
	for _, key := range s.order {
		if p, err := s.parts.Part(key); err == nil {
			st.Progress[key] = grading.Measure(p, s.store.Get(s.key(key)).Responses)
		}
	}
	return st
}

func (s *Session) part(key string) (content.Part, error) {
	return s.parts.Part(key)
}

// Part returns the learner view of one part.
func (s *Session) Part(key string) (PartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(key)
	if err != nil {
		return PartView{}, err
	}
	k := s.key(key)
	ps := s.store.Get(k)
	pv := PartView{State: ps, Progress: grading.Measure(p, ps.Responses)}
	if p.Pairing() {
		pv.Used = s.match.Used(k, p)
	}
	if ps.Submitted {
		b := s.grader.Score(p, ps.Responses)
		pv.Part, pv.Score = p, &b
	} else {
		pv.Part = p.Public()
	}
	return pv, nil
}

// Record stores a response. Reading parts take a choice id and go through
// the assignment rules; Hören statements take a boolean.
func (s *Session) Record(part, item string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	p, err := s.part(part)
	if err != nil {
		return err
	}
	k := s.key(part)
	if p.Kind != content.KindAussagen {
		choice, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: want a choice id for %s", ErrInvalidValue, item)
		}
		return s.match.Assign(k, p, item, choice)
	}
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("%w: want true or false for %s", ErrInvalidValue, item)
	}
	if _, ok := p.Item(item); !ok {
		return fmt.Errorf("%w: %s", matching.ErrUnknownSlot, item)
	}
	return s.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		ps.Responses[item] = b
		return nil
	})
}

// Clear removes the response for item.
func (s *Session) Clear(part, item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	p, err := s.part(part)
	if err != nil {
		return err
	}
	return s.match.Unassign(s.key(part), p, item)
}

func (s *Session) Drop(part, slot, filler string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	p, err := s.part(part)
	if err != nil {
		return err
	}
	return s.match.Drop(s.key(part), p, slot, filler)
}

// Release frees whichever slot holds filler.
func (s *Session) Release(part, filler string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	p, err := s.part(part)
	if err != nil {
		return err
	}
	return s.match.Release(s.key(part), p, filler)
}

// Select is one click of the two-step pairing protocol. Exactly one of slot
// and filler is expected.
func (s *Session) Select(part, slot, filler string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	p, err := s.part(part)
	if err != nil {
		return false, err
	}
	if slot != "" {
		return s.match.SelectSlot(s.key(part), p, slot)
	}
	return s.match.SelectFiller(s.key(part), p, filler)
}

// Toggle submits an open part, or resets a submitted one so it can be
// retried. It reports the new submitted flag.
func (s *Session) Toggle(part string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if _, err := s.part(part); err != nil {
		return false, err
	}
	k := s.key(part)
	if s.store.Get(k).Submitted {
		s.store.Reset(k)
		return false, nil
	}
	s.store.SetSubmitted(k, true)
	return true, nil
}

// Score is the live breakdown of one part, submitted or not.
func (s *Session) Score(part string) (grading.Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(part)
	if err != nil {
		return grading.Breakdown{}, err
	}
	return s.grader.Score(p, s.store.Get(s.key(part)).Responses), nil
}

// CheckTopics is the per-topic feedback of a Hören part. Truth values are
// only revealed for submitted parts.
func (s *Session) CheckTopics(part string) (grading.TopicSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(part)
	if err != nil {
		return grading.TopicSummary{}, err
	}
	ps := s.store.Get(s.key(part))
	if !ps.Submitted {
		return grading.TopicSummary{}, exam.ErrNotSubmitted
	}
	return grading.CheckTopics(p, ps.Responses), nil
}

// Topics lists the public topics of a Hören part matching query.
func (s *Session) Topics(part, query string) ([]content.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(part)
	if err != nil {
		return nil, err
	}
	return content.FilterTopics(p.Public().Topics, query), nil
}

// Next moves forward; from the last part it finishes the session.
func (s *Session) Next() State {
	s.mu.Lock()
	s.touch()
	if s.index < len(s.order)-1 {
		s.index++
		s.mu.Unlock()
		return s.State()
	}
	s.mu.Unlock()
	s.Finish(results.ReasonManual)
	return s.State()
}

func (s *Session) Prev() State {
	s.mu.Lock()
	s.touch()
	if s.index > 0 {
		s.index--
	}
	s.mu.Unlock()
	return s.State()
}

// GoTo jumps to a part by key, re-entering the exam view if needed.
func (s *Session) GoTo(part string) (State, error) {
	s.mu.Lock()
	s.touch()
	idx := -1
	for i, k := range s.order {
		if k == part {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return State{}, fmt.Errorf("%w: %s", content.ErrPartNotFound, part)
	}
	s.index = idx
	if s.view != ViewExam {
		s.startLocked()
	}
	s.mu.Unlock()
	return s.State(), nil
}

// Finish submits every part and produces the result. Only the first call
// scores; later calls return the same result with fresh=false.
func (s *Session) Finish(reason string) (res results.Result, fresh bool) {
	s.mu.Lock()
	if s.finished {
		res = *s.result
		s.view = ViewResults
		s.timer.Stop()
		s.mu.Unlock()
		return res, false
	}
	res = s.finishLocked(reason)
	cb := s.onFinish
	s.mu.Unlock()
	if cb != nil {
		cb(res)
	}
	return res, true
}

func (s *Session) finishLocked(reason string) results.Result {
	s.timer.Stop()
	s.run++
	parts := make([]grading.Breakdown, 0, len(s.order))
	for _, key := range s.order {
		k := s.key(key)
		s.store.SetSubmitted(k, true)
		p, err := s.part(key)
		if err != nil {
			parts = append(parts, grading.Breakdown{Part: key, Kind: content.Kind(key)})
			continue
		}
		parts = append(parts, s.grader.Score(p, s.store.Get(k).Responses))
	}
	res := results.Result{
		ID:         uuid.NewString(),
		SessionID:  s.ID,
		UserID:     s.Owner,
		Module:     s.Module.Name,
		Section:    string(s.Section),
		Level:      s.Level,
		Theme:      s.Theme,
		Version:    s.version,
		Reason:     reason,
		FinishedAt: s.now().UTC(),
	}
	res.FromSummary(s.grader.Aggregate(parts))
	s.result = &res
	s.finished = true
	s.view = ViewResults
	return res
}

// Results returns the final result once finished, or a live preview.
func (s *Session) Results() (results.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return *s.result, true
	}
	parts := make([]grading.Breakdown, 0, len(s.order))
	for _, key := range s.order {
		if p, err := s.part(key); err == nil {
			parts = append(parts, s.grader.Score(p, s.store.Get(s.key(key)).Responses))
		}
	}
	res := results.Result{
		SessionID: s.ID, UserID: s.Owner, Module: s.Module.Name, Section: string(s.Section),
		Level: s.Level, Theme: s.Theme, Version: s.version,
	}
	res.FromSummary(s.grader.Aggregate(parts))
	return res, false
}

// Retry clears every part of the current version and starts over.
func (s *Session) Retry() State {
	s.mu.Lock()
	s.touch()
	keys := make([]exam.Key, len(s.order))
	for i, p := range s.order {
		keys[i] = s.key(p)
	}
	s.store.ResetAll(keys...)
	s.index = 0
	s.finished = false
	s.result = nil
	s.startLocked()
	s.mu.Unlock()
	return s.State()
}

// SwitchVersion starts the theme over under another version with fresh
// state for all its parts.
func (s *Session) SwitchVersion(v string) (State, error) {
	s.mu.Lock()
	s.touch()
	if s.Section != SectionLesen {
		s.mu.Unlock()
		return State{}, ErrNoVersions
	}
	if err := s.load(v); err != nil {
		s.mu.Unlock()
		return State{}, err
	}
	keys := make([]exam.Key, len(s.order))
	for i, p := range s.order {
		keys[i] = s.key(p)
	}
	s.store.ResetAll(keys...)
	s.finished = false
	s.result = nil
	s.startLocked()
	s.mu.Unlock()
	return s.State(), nil
}

// Leave returns to the menu and stops the countdown.
func (s *Session) Leave() State {
	s.mu.Lock()
	s.touch()
	s.view = ViewMenu
	s.run++
	s.timer.Stop()
	s.mu.Unlock()
	return s.State()
}

// Resume re-enters the exam view. The countdown restarts at its full
// duration.
func (s *Session) Resume() State {
	s.mu.Lock()
	s.touch()
	if s.finished {
		s.view = ViewResults
	} else {
		s.startLocked()
	}
	s.mu.Unlock()
	return s.State()
}

// SetTimerOverride changes the per-user enabled flag. A running countdown
// restarts under the new setting.
func (s *Session) SetTimerOverride(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &enabled
	if s.view == ViewExam && !s.finished {
		s.startLocked()
	}
}

func (s *Session) TimerState() TimerState { return s.timer.State() }

// Close stops the countdown for good.
func (s *Session) Close() {
	s.mu.Lock()
	s.run++
	s.view = ViewMenu
	s.timer.Stop()
	s.mu.Unlock()
}
