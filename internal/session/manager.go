package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/results"
)

// Catalogs resolves a module's content document. content.Library
// satisfies it.
type Catalogs interface {
	Catalog(name string) (*content.Catalog, error)
}

// StartRequest selects what to practise. Empty fields fall back to the
// catalog defaults.
type StartRequest struct {
	Module  string  `json:"module"`
	Level   string  `json:"level"`
	Theme   string  `json:"theme"`
	Version string  `json:"version"`
	Section Section `json:"section"`
}

type Manager struct {
	catalogs Catalogs
	modules  config.Modules
	results  results.Store
	log      zerolog.Logger
	idle     time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Manager)

// WithResults persists finished sessions and reads timer preferences.
func WithResults(s results.Store) Option { return func(m *Manager) { m.results = s } }

func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithIdleTimeout sets how long an untouched session survives Sweep.
func WithIdleTimeout(d time.Duration) Option { return func(m *Manager) { m.idle = d } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(c Catalogs, mods config.Modules, opts ...Option) *Manager {
	m := &Manager{
		catalogs: c,
		modules:  mods,
		log:      zerolog.Nop(),
		idle:     2 * time.Hour,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Modules() config.Modules { return m.modules }

// Start opens a new session in the exam view.
func (m *Manager) Start(ctx context.Context, owner string, req StartRequest) (*Session, error) {
	mod := m.modules.Lookup(req.Module)
	cat, err := m.catalogs.Catalog(mod.DataFile)
	if err != nil {
		return nil, err
	}
	lvl, err := cat.ResolveLevel(req.Level)
	if err != nil {
		return nil, err
	}
	th, err := lvl.ResolveTheme(req.Theme)
	if err != nil {
		return nil, err
	}
	sec := req.Section
	if sec == "" {
		sec = SectionLesen
	}
	if sec != SectionLesen && sec != SectionHoeren {
		return nil, ErrInvalidValue
	}

	s := newSession(owner, mod, sec, lvl.Key, th)
	s.now = m.now
	if err := s.load(th.ResolveVersion(req.Version)); err != nil {
		return nil, err
	}
	if m.results != nil && owner != "" {
		pref, err := m.results.TimerPreference(ctx, owner)
		if err != nil {
			m.log.Warn().Err(err).Str("user", owner).Msg("timer preference lookup failed")
		}
		s.override = pref
	}
	s.onFinish = m.persist

	s.mu.Lock()
	s.touch()
	s.startLocked()
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Info().Str("session", s.ID).Str("user", owner).Str("module", mod.Name).
		Str("section", string(sec)).Str("level", s.Level).Str("theme", s.Theme).
		Str("version", s.version).Msg("session started")
	return s, nil
}

// Get returns a session owned by owner. An empty owner skips the check.
func (m *Manager) Get(id, owner string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if owner != "" && s.Owner != owner {
		return nil, ErrForbidden
	}
	return s, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout and reports
// how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		m.log.Info().Int("count", len(stale)).Msg("idle sessions swept")
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// SetTimerPreference stores the user's timer choice and applies it to their
// open sessions.
func (m *Manager) SetTimerPreference(ctx context.Context, owner string, enabled bool) error {
	if m.results != nil {
		if err := m.results.SetTimerPreference(ctx, owner, enabled); err != nil {
			return err
		}
	}
	m.mu.RLock()
	var mine []*Session
	for _, s := range m.sessions {
		if s.Owner == owner {
			mine = append(mine, s)
		}
	}
	m.mu.RUnlock()
	for _, s := range mine {
		s.SetTimerOverride(enabled)
	}
	return nil
}

func (m *Manager) persist(r results.Result) {
	ev := m.log.Info().Str("session", r.SessionID).Str("user", r.UserID).Str("reason", r.Reason).
		Int("percent", r.Percent).Bool("passed", r.Passed)
	ev.Msg("session finished")
	if m.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.results.Save(ctx, r); err != nil {
		m.log.Error().Err(err).Str("result", r.ID).Msg("save result failed")
	}
}
