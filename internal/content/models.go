package content

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind identifies the exercise type of a part.
type Kind string

const (
	KindTeil1    Kind = "teil-1"            // text <-> headline matching
	KindTeil2    Kind = "teil-2"            // multiple choice over a passage
	KindTeil3    Kind = "teil-3"            // situation <-> ad matching, "X" = no match
	KindSprach1  Kind = "sprachbausteine-1" // blank <-> per-blank option list
	KindSprach2  Kind = "sprachbausteine-2" // blank <-> shared word bank
	KindAussagen Kind = "aussagen"          // Hören true/false statements
)

// LesenKinds is the canonical part order of a Lesen exam.
var LesenKinds = []Kind{KindTeil1, KindTeil2, KindTeil3, KindSprach1, KindSprach2}

// NoMatch is the teil-3 choice meaning "no suitable ad".
const NoMatch = "X"

// Normalize folds case and surrounding whitespace.
func Normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Item is an answerable slot: a text, question, situation, blank or statement.
type Item struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Text    string   `json:"text,omitempty"`
	Options []Choice `json:"options,omitempty"`
}

// Answer is one answer-key entry. Choice is a choice id for teil-1/2/3 and
// the expected word for the sprachbausteine parts.
type Answer struct {
	Item   string `json:"item"`
	Choice string `json:"choice"`
}

type Passage struct {
	Title      string   `json:"title,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
}

// Segment is a piece of cloze text: either literal text or a blank.
type Segment struct {
	Type    string   `json:"type"`
	Value   string   `json:"value,omitempty"`
	ID      string   `json:"id,omitempty"`
	Options []string `json:"options,omitempty"`
}

type Statement struct {
	ID      string `json:"id"`
	Number  int    `json:"number"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Topic struct {
	Title      string      `json:"title,omitempty"`
	Tag        string      `json:"tag,omitempty"`
	Statements []Statement `json:"statements"`
}

// Part is the canonical, load-time normalized shape of one exam part.
type Part struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	Label       string    `json:"label,omitempty"`
	Title       string    `json:"title,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	Passage     *Passage  `json:"passage,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
	Items       []Item    `json:"items"`
	Choices     []Choice  `json:"choices,omitempty"`
	Answers     []Answer  `json:"answers,omitempty"`
	Topics      []Topic   `json:"topics,omitempty"`
}

// Pairing reports whether fillers are consumed one-to-one across slots.
func (p Part) Pairing() bool {
	switch p.Kind {
	case KindTeil1, KindTeil3, KindSprach2:
		return true
	}
	return false
}

func (p Part) Item(id string) (Item, bool) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ChoicesFor returns the choices offered to an item: its own options when it
// has any, the shared part choices otherwise.
func (p Part) ChoicesFor(itemID string) []Choice {
	if it, ok := p.Item(itemID); ok && len(it.Options) > 0 {
		return it.Options
	}
	return p.Choices
}

// HasChoice reports whether choice is offered to itemID. Word-bank parts
// compare case-insensitively.
func (p Part) HasChoice(itemID, choice string) bool {
	_, ok := p.Choice(itemID, choice)
	return ok
}

// Choice resolves choice to the canonical entry offered to itemID.
func (p Part) Choice(itemID, choice string) (Choice, bool) {
	for _, c := range p.ChoicesFor(itemID) {
		if c.ID == choice {
			return c, true
		}
	}
	if p.Kind == KindSprach2 {
		for _, c := range p.Choices {
			if Normalize(c.ID) == Normalize(choice) {
				return c, true
			}
		}
	}
	return Choice{}, false
}

// AnswerFor looks up the expected choice for an item.
func (p Part) AnswerFor(itemID string) (string, bool) {
	for _, a := range p.Answers {
		if a.Item == itemID {
			return a.Choice, true
		}
	}
	return "", false
}

// Statements flattens Hören topics.
func (p Part) Statements() []Statement {
	var out []Statement
	for _, t := range p.Topics {
		out = append(out, t.Statements...)
	}
	return out
}

// Public strips everything that reveals the solution.
func (p Part) Public() Part {
	out := p
	out.Answers = nil
	if len(p.Topics) > 0 {
		out.Topics = make([]Topic, len(p.Topics))
		for i, t := range p.Topics {
			t.Statements = append([]Statement(nil), t.Statements...)
			for j := range t.Statements {
				t.Statements[j].Correct = false
			}
			out.Topics[i] = t
		}
	}
	return out
}
