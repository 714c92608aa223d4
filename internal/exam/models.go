package exam

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrSubmitted is returned when a locked (submitted) part is modified.
	ErrSubmitted    = errors.New("part already submitted")
	ErrNotSubmitted = errors.New("part not submitted yet")
)

// Key identifies one independent part state.
type Key struct {
	Level   string `json:"level"`
	Theme   string `json:"theme"`
	Version string `json:"version"`
	Part    string `json:"part"`
}

func (k Key) String() string {
	return strings.Join([]string{k.Level, k.Theme, k.Version, k.Part}, "|")
}

// Responses maps item id -> response payload (choice id, word, or bool for
// true/false statements). A missing key means unanswered.
type Responses map[string]interface{}

func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text returns the response for item rendered as a string.
func (r Responses) Text(item string) string { return Text(r[item]) }

// Selection is the pending half of a two-step pairing.
type Selection struct {
	Slot   string `json:"slot,omitempty"`
	Filler string `json:"filler,omitempty"`
}

type PartState struct {
	Responses Responses `json:"responses"`
	Submitted bool      `json:"submitted"`
	Active    Selection `json:"active"`
}

func newPartState() *PartState { return &PartState{Responses: Responses{}} }

func (s PartState) clone() PartState {
	s.Responses = s.Responses.Clone()
	return s
}

// Text renders a response payload the way it is compared and displayed.
func Text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// Answered is the single completion rule for every part kind: present and
// not blank once trimmed. An explicit false counts as answered.
func Answered(v interface{}) bool {
	if v == nil {
		return false
	}
	return strings.TrimSpace(Text(v)) != ""
}
