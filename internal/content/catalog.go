package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	ErrLevelNotFound   = errors.New("level not found")
	ErrThemeNotFound   = errors.New("theme not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrPartNotFound    = errors.New("part not found")
)

// DefaultVersion is the version key of themes that carry no versions map.
const DefaultVersion = "default"

type rawDoc struct {
	Level  string              `json:"level"`
	Levels map[string]rawLevel `json:"levels"`
	rawLevel
}

type rawLevel struct {
	Title      string              `json:"title"`
	ThemeOrder []string            `json:"themeOrder"`
	Themes     map[string]rawTheme `json:"themes"`
}

type rawTheme struct {
	Title          string                `json:"title"`
	DefaultVersion string                `json:"defaultVersion"`
	VersionOrder   []string              `json:"versionOrder"`
	Versions       map[string]rawVersion `json:"versions"`
	Lesen          *rawSection           `json:"lesen"`
	Hoeren         *rawSection           `json:"hören"`
	HoerenASCII    *rawSection           `json:"hoeren"`
}

type rawVersion struct {
	Title string      `json:"title"`
	Lesen *rawSection `json:"lesen"`
}

type rawSection struct {
	PartOrder []string           `json:"partOrder"`
	Parts     map[string]rawPart `json:"parts"`
}

type rawPart struct {
	Kind    string          `json:"kind"`
	Title   string          `json:"title"`
	Label   string          `json:"label"`
	Content json.RawMessage `json:"content"`
}

// Catalog is a fully normalized content document. It is immutable after
// Parse and safe for concurrent readers.
type Catalog struct {
	levels map[string]*Level
	order  []string
}

type Level struct {
	Key    string
	Title  string
	themes map[string]*Theme
	order  []string
}

type Theme struct {
	Key            string
	Title          string
	defaultVersion string
	versionOrder   []string
	versions       map[string]*Version
	hoeren         *Section
}

type Version struct {
	Key   string
	Title string
	Lesen *Section
}

// Section is the ordered set of parts of one Lesen version or of the Hören
// block of a theme.
type Section struct {
	order  []string
	parts  map[string]Part
	broken map[string]error
}

// Load reads and normalizes a content document.
func Load(r io.Reader) (*Catalog, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse normalizes a content document once. Parts whose content cannot be
// adapted are kept out of the catalog; asking for them later yields
// ErrPartNotFound wrapping the cause.
func Parse(b []byte) (*Catalog, error) {
	var doc rawDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	levels := doc.Levels
	if len(levels) == 0 && len(doc.Themes) > 0 {
		key := doc.Level
		if key == "" {
			key = "default"
		}
		levels = map[string]rawLevel{key: doc.rawLevel}
	}
	c := &Catalog{levels: map[string]*Level{}}
	for key, rl := range levels {
		c.levels[key] = buildLevel(key, rl)
		c.order = append(c.order, key)
	}
	sort.Strings(c.order)
	return c, nil
}

func buildLevel(key string, rl rawLevel) *Level {
	l := &Level{Key: key, Title: rl.Title, themes: map[string]*Theme{}}
	for tk, rt := range rl.Themes {
		l.themes[tk] = buildTheme(tk, rt)
	}
	l.order = orderedKeys(rl.ThemeOrder, l.themes)
	return l
}

func buildTheme(key string, rt rawTheme) *Theme {
	t := &Theme{Key: key, Title: rt.Title, defaultVersion: rt.DefaultVersion, versions: map[string]*Version{}}
	for vk, rv := range rt.Versions {
		t.versions[vk] = &Version{Key: vk, Title: rv.Title, Lesen: buildSection(rv.Lesen, false)}
	}
	if len(t.versions) == 0 && rt.Lesen != nil {
		t.versions[DefaultVersion] = &Version{Key: DefaultVersion, Title: rt.Title, Lesen: buildSection(rt.Lesen, false)}
	}
	t.versionOrder = orderedKeys(rt.VersionOrder, t.versions)
	h := rt.Hoeren
	if h == nil {
		h = rt.HoerenASCII
	}
	if h != nil {
		t.hoeren = buildSection(h, true)
	}
	return t
}

func buildSection(rs *rawSection, hoeren bool) *Section {
	s := &Section{parts: map[string]Part{}, broken: map[string]error{}}
	if rs == nil {
		return s
	}
	for key, rp := range rs.Parts {
		kind := Kind(rp.Kind)
		if kind == "" {
			kind = Kind(key)
			if hoeren {
				kind = KindAussagen
			}
		}
		p, err := Adapt(kind, rp.Content)
		if err != nil {
			s.broken[key] = err
			continue
		}
		p.Key = key
		p.Label = rp.Label
		if p.Title == "" {
			p.Title = rp.Title
		}
		s.parts[key] = p
	}
	known := func(k string) bool {
		_, ok := s.parts[k]
		_, bad := s.broken[k]
		return ok || bad
	}
	for _, k := range rs.PartOrder {
		if known(k) {
			s.order = append(s.order, k)
		}
	}
	if len(s.order) > 0 {
		return s
	}
	seen := map[string]bool{}
	if !hoeren {
		for _, k := range LesenKinds {
			if known(string(k)) {
				s.order = append(s.order, string(k))
				seen[string(k)] = true
			}
		}
	}
	var rest []string
	for k := range s.parts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	for k := range s.broken {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	s.order = append(s.order, rest...)
	return s
}

// orderedKeys keeps the explicit order filtered to existing keys and falls
// back to the sorted key set when the explicit order names none of them.
func orderedKeys[T any](explicit []string, m map[string]T) []string {
	var out []string
	for _, k := range explicit {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	if len(out) > 0 {
		return out
	}
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LevelKeys lists the levels in sorted order.
func (c *Catalog) LevelKeys() []string { return append([]string(nil), c.order...) }

// ResolveLevel returns the requested level, or the first one when key is
// empty or unknown.
func (c *Catalog) ResolveLevel(key string) (*Level, error) {
	if l, ok := c.levels[key]; ok {
		return l, nil
	}
	if len(c.order) == 0 {
		return nil, ErrLevelNotFound
	}
	return c.levels[c.order[0]], nil
}

func (l *Level) ThemeKeys() []string { return append([]string(nil), l.order...) }

// ResolveTheme returns the requested theme, or the first of the theme order.
func (l *Level) ResolveTheme(key string) (*Theme, error) {
	if t, ok := l.themes[key]; ok {
		return t, nil
	}
	if len(l.order) == 0 {
		return nil, fmt.Errorf("%w: level %q has no themes", ErrThemeNotFound, l.Key)
	}
	return l.themes[l.order[0]], nil
}

// VersionKeys lists versions in their declared order.
func (t *Theme) VersionKeys() []string { return append([]string(nil), t.versionOrder...) }

// ResolveVersion picks the requested version when it exists, then the
// theme's default, then the first declared one.
func (t *Theme) ResolveVersion(key string) string {
	if _, ok := t.versions[key]; ok {
		return key
	}
	if _, ok := t.versions[t.defaultVersion]; ok {
		return t.defaultVersion
	}
	if len(t.versionOrder) > 0 {
		return t.versionOrder[0]
	}
	return DefaultVersion
}

func (t *Theme) Version(key string) (*Version, error) {
	v, ok := t.versions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrVersionNotFound, t.Key, key)
	}
	return v, nil
}

// Hoeren returns the listening block of the theme, if any.
func (t *Theme) Hoeren() (*Section, bool) { return t.hoeren, t.hoeren != nil }

// Order is the part navigation order.
func (s *Section) Order() []string { return append([]string(nil), s.order...) }

func (s *Section) Part(key string) (Part, error) {
	if p, ok := s.parts[key]; ok {
		return p, nil
	}
	if err, ok := s.broken[key]; ok {
		return Part{}, fmt.Errorf("%w: %s: %v", ErrPartNotFound, key, err)
	}
	return Part{}, fmt.Errorf("%w: %s", ErrPartNotFound, key)
}

// Summary is the browsable outline of a catalog.
type Summary struct {
	Key    string         `json:"key"`
	Title  string         `json:"title,omitempty"`
	Themes []ThemeSummary `json:"themes"`
}

type ThemeSummary struct {
	Key            string   `json:"key"`
	Title          string   `json:"title,omitempty"`
	DefaultVersion string   `json:"default_version"`
	Versions       []string `json:"versions"`
	Hoeren         []string `json:"hoeren,omitempty"`
}

func (c *Catalog) Outline() []Summary {
	out := make([]Summary, 0, len(c.order))
	for _, lk := range c.order {
		l := c.levels[lk]
		s := Summary{Key: l.Key, Title: l.Title}
		for _, tk := range l.order {
			t := l.themes[tk]
			ts := ThemeSummary{Key: t.Key, Title: t.Title, DefaultVersion: t.ResolveVersion(""), Versions: t.VersionKeys()}
			if t.hoeren != nil {
				ts.Hoeren = t.hoeren.Order()
			}
			s.Themes = append(s.Themes, ts)
		}
		out = append(out, s)
	}
	return out
}

// FilterTopics keeps topics whose title or tag contains query,
// case-insensitively. A blank query keeps everything.
func FilterTopics(topics []Topic, query string) []Topic {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return topics
	}
	var out []Topic
	for _, t := range topics {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Tag), q) {
			out = append(out, t)
		}
	}
	return out
}
