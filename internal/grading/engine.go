package grading

import (
	"math"
	"strconv"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
)

// Tally is the raw correctness count of one part.
type Tally struct {
	Correct int
	Total   int
}

// Strategy counts correct answers for one part kind. Implementations are
// pure functions of content and responses.
type Strategy interface {
	Count(p content.Part, resp exam.Responses) Tally
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(p content.Part, resp exam.Responses) Tally

func (f StrategyFunc) Count(p content.Part, resp exam.Responses) Tally { return f(p, resp) }

// Breakdown is the score of one part.
type Breakdown struct {
	Part              string       `json:"part"`
	Kind              content.Kind `json:"kind"`
	CorrectCount      int          `json:"correct_count"`
	TotalCount        int          `json:"total_count"`
	PointsPerQuestion float64      `json:"points_per_question"`
	MaxPoints         float64      `json:"max_points"`
	EarnedPoints      float64      `json:"earned_points"`
}

// Summary aggregates part breakdowns into a pass/fail result.
type Summary struct {
	Parts       []Breakdown `json:"parts"`
	TotalEarned float64     `json:"total_earned"`
	TotalMax    float64     `json:"total_max"`
	Percent     int         `json:"percent"`
	PassPercent float64     `json:"pass_percent"`
	Passed      bool        `json:"passed"`
}

// Engine routes parts to the strategy of their kind and applies the
// configured points.
type Engine struct {
	cfg        Config
	strategies map[content.Kind]Strategy
}

// Engine options

type Option func(*Engine)

// WithStrategy overrides or adds the strategy for a part kind.
func WithStrategy(k content.Kind, s Strategy) Option {
	return func(e *Engine) { e.strategies[k] = s }
}

// NewEngine installs the built-in strategies.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		strategies: map[content.Kind]Strategy{
			content.KindTeil1:    keyedStrategy{fold: content.Normalize},
			content.KindTeil2:    exactStrategy{},
			content.KindTeil3:    keyedStrategy{fold: content.Normalize},
			content.KindSprach1:  keyedStrategy{fold: content.Normalize, answerKeyTotal: true},
			content.KindSprach2:  keyedStrategy{fold: content.Normalize, answerKeyTotal: true},
			content.KindAussagen: StrategyFunc(countPerfectTopics),
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Count returns the raw tally; unknown kinds score zero of zero.
func (e *Engine) Count(p content.Part, resp exam.Responses) Tally {
	s, ok := e.strategies[p.Kind]
	if !ok {
		return Tally{}
	}
	return s.Count(p, resp)
}

// Score computes the breakdown of one part.
func (e *Engine) Score(p content.Part, resp exam.Responses) Breakdown {
	t := e.Count(p, resp)
	ppq := e.cfg.PointsFor(p.Kind)
	return Breakdown{
		Part:              p.Key,
		Kind:              p.Kind,
		CorrectCount:      t.Correct,
		TotalCount:        t.Total,
		PointsPerQuestion: ppq,
		MaxPoints:         float64(t.Total) * ppq,
		EarnedPoints:      float64(t.Correct) * ppq,
	}
}

// Aggregate sums breakdowns and applies the pass threshold.
func (e *Engine) Aggregate(parts []Breakdown) Summary {
	s := Summary{Parts: parts, PassPercent: e.cfg.PassPercent}
	for _, b := range parts {
		s.TotalEarned += b.EarnedPoints
		s.TotalMax += b.MaxPoints
	}
	s.Percent = Percent(s.TotalEarned, s.TotalMax)
	s.Passed = float64(s.Percent) >= e.cfg.PassPercent
	return s
}

// Percent is round(100*earned/max), 0 when max is 0.
func Percent(earned, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(100 * earned / max))
}

// FormatPoints renders points with one decimal, dropping a trailing ".0".
func FormatPoints(v float64) string {
	r := math.Round(v*10) / 10
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// --- Strategies ---

// keyedStrategy walks the answer key and compares folded values. The total
// is the number of key entries; matching parts fall back to the item count
// when the key is empty.
type keyedStrategy struct {
	fold           func(string) string
	answerKeyTotal bool
}

func (s keyedStrategy) Count(p content.Part, resp exam.Responses) Tally {
	var t Tally
	for _, a := range p.Answers {
		v, ok := resp[a.Item]
		if !ok || !exam.Answered(v) {
			continue
		}
		if s.fold(exam.Text(v)) == s.fold(a.Choice) {
			t.Correct++
		}
	}
	t.Total = len(p.Answers)
	if t.Total == 0 && !s.answerKeyTotal {
		t.Total = len(p.Items)
	}
	return t
}

// exactStrategy compares choice ids verbatim; every item counts.
type exactStrategy struct{}

func (exactStrategy) Count(p content.Part, resp exam.Responses) Tally {
	t := Tally{Total: len(p.Items)}
	for _, it := range p.Items {
		want, ok := p.AnswerFor(it.ID)
		v := resp[it.ID]
		if ok && exam.Answered(v) && exam.Text(v) == want {
			t.Correct++
		}
	}
	return t
}

func countPerfectTopics(p content.Part, resp exam.Responses) Tally {
	sum := CheckTopics(p, resp)
	return Tally{Correct: sum.Correct, Total: sum.Total}
}
