package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/grading"
)

const (
	DefaultModuleName   = "lesen"
	DefaultDataFile     = "lesen.json"
	DefaultTimerMinutes = 90
	DefaultTimerEnabled = true
)

// Timer is the countdown configuration of a module.
type Timer struct {
	Enabled         bool    `json:"enabled"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Resolve applies a per-user override of Enabled and converts the duration.
// Negative durations clamp to zero.
func (t Timer) Resolve(override *bool) (bool, time.Duration) {
	enabled := t.Enabled
	if override != nil {
		enabled = *override
	}
	mins := t.DurationMinutes
	if mins < 0 {
		mins = 0
	}
	return enabled, time.Duration(mins * float64(time.Minute))
}

// Module is one exam module: a content document plus timer and scoring.
type Module struct {
	Name     string         `json:"name"`
	DataFile string         `json:"data_file"`
	Timer    Timer          `json:"timer"`
	Score    grading.Config `json:"score"`
}

// Modules is the resolved module configuration.
type Modules struct {
	Default string   `json:"default"`
	List    []Module `json:"modules"`
}

// Lookup returns the named module, or the default one when name is empty
// or unknown.
func (m Modules) Lookup(name string) Module {
	for _, mod := range m.List {
		if mod.Name == name {
			return mod
		}
	}
	for _, mod := range m.List {
		if mod.Name == m.Default {
			return mod
		}
	}
	if len(m.List) > 0 {
		return m.List[0]
	}
	return DefaultModule()
}

func DefaultModule() Module {
	return Module{
		Name:     DefaultModuleName,
		DataFile: DefaultDataFile,
		Timer:    Timer{Enabled: DefaultTimerEnabled, DurationMinutes: DefaultTimerMinutes},
		Score:    grading.DefaultConfig(),
	}
}

func DefaultModules() Modules {
	return Modules{Default: DefaultModuleName, List: []Module{DefaultModule()}}
}

type rawTimer struct {
	Enabled         *bool    `mapstructure:"enabled"`
	DurationMinutes *float64 `mapstructure:"durationMinutes"`
}

type rawPartScore struct {
	PointsPerQuestion *float64 `mapstructure:"pointsPerQuestion"`
}

type rawScore struct {
	PassPercent *float64                `mapstructure:"passPercent"`
	Parts       map[string]rawPartScore `mapstructure:"parts"`
}

type rawModule struct {
	Name        string    `mapstructure:"name"`
	DataFile    string    `mapstructure:"dataFile"`
	Timer       *rawTimer `mapstructure:"timer"`
	ScoreConfig *rawScore `mapstructure:"scoreConfig"`
}

// LoadModules reads the module config file. A missing file yields the
// built-in default module; every missing field falls back to its default.
func LoadModules(path string) (Modules, error) {
	if path == "" {
		return DefaultModules(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultModules(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Modules{}, fmt.Errorf("read module config: %w", err)
	}
	return modulesFrom(v)
}

func modulesFrom(v *viper.Viper) (Modules, error) {
	var entries []rawModule
	if v.IsSet("modules") {
		if err := v.UnmarshalKey("modules", &entries); err != nil {
			return Modules{}, fmt.Errorf("decode modules: %w", err)
		}
	}
	if len(entries) == 0 {
		var flat rawModule
		if err := v.Unmarshal(&flat); err != nil {
			return Modules{}, fmt.Errorf("decode module: %w", err)
		}
		if flat.Name == "" {
			flat.Name = v.GetString("defaultModule")
		}
		entries = []rawModule{flat}
	}
	out := Modules{}
	for _, e := range entries {
		out.List = append(out.List, buildModule(e))
	}
	out.Default = v.GetString("defaultModule")
	if out.Default == "" {
		out.Default = out.List[0].Name
	}
	return out, nil
}

func buildModule(e rawModule) Module {
	m := DefaultModule()
	if e.Name != "" {
		m.Name = e.Name
	}
	if e.DataFile != "" {
		m.DataFile = e.DataFile
	}
	if t := e.Timer; t != nil {
		if t.Enabled != nil {
			m.Timer.Enabled = *t.Enabled
		}
		if t.DurationMinutes != nil {
			m.Timer.DurationMinutes = *t.DurationMinutes
		}
	}
	if s := e.ScoreConfig; s != nil {
		if s.PassPercent != nil {
			m.Score.PassPercent = *s.PassPercent
		}
		for kind, ps := range s.Parts {
			if ps.PointsPerQuestion != nil {
				m.Score.Points[content.Kind(kind)] = *ps.PointsPerQuestion
			}
		}
	}
	return m
}
