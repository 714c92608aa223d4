package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Adapter turns the raw content block of one part into the canonical Part.
// Missing collections are treated as empty.
type Adapter interface {
	Adapt(raw json.RawMessage) (Part, error)
}

type AdapterFunc func(raw json.RawMessage) (Part, error)

func (f AdapterFunc) Adapt(raw json.RawMessage) (Part, error) { return f(raw) }

var registry = map[Kind]Adapter{}

// Register installs the adapter for a part kind.
func Register(k Kind, a Adapter) { registry[k] = a }

// Lookup returns the adapter registered for a part kind.
func Lookup(k Kind) (Adapter, bool) { a, ok := registry[k]; return a, ok }

func init() {
	Register(KindTeil1, AdapterFunc(adaptTeil1))
	Register(KindTeil2, AdapterFunc(adaptTeil2))
	Register(KindTeil3, AdapterFunc(adaptTeil3))
	Register(KindSprach1, AdapterFunc(adaptSprach1))
	Register(KindSprach2, AdapterFunc(adaptSprach2))
	Register(KindAussagen, AdapterFunc(adaptAussagen))
}

type rawEntry struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (e rawEntry) item() Item     { return Item{ID: e.ID.String(), Title: e.Title, Text: e.Text} }
func (e rawEntry) choice() Choice { return Choice{ID: e.ID.String(), Text: e.Text} }

type rawHeader struct {
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func adaptTeil1(raw json.RawMessage) (Part, error) {
	var c struct {
		rawHeader
		Texts     []rawEntry `json:"texts"`
		Headlines []rawEntry `json:"headlines"`
		Answers   []struct {
			TextID     ID `json:"textId"`
			HeadlineID ID `json:"headlineId"`
		} `json:"answers"`
	}
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := Part{Kind: KindTeil1, Title: c.Title, Instruction: c.Instruction}
	for _, t := range c.Texts {
		p.Items = append(p.Items, t.item())
	}
	for _, h := range c.Headlines {
		p.Choices = append(p.Choices, h.choice())
	}
	for _, a := range c.Answers {
		p.Answers = append(p.Answers, Answer{Item: a.TextID.String(), Choice: a.HeadlineID.String()})
	}
	return p, nil
}

func adaptTeil2(raw json.RawMessage) (Part, error) {
	var c struct {
		rawHeader
		Passage   *Passage `json:"passage"`
		Questions []struct {
			ID       ID         `json:"id"`
			Prompt   string     `json:"prompt"`
			Options  []rawEntry `json:"options"`
			AnswerID ID         `json:"answerId"`
		} `json:"questions"`
	}
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := Part{Kind: KindTeil2, Title: c.Title, Instruction: c.Instruction, Passage: c.Passage}
	for _, q := range c.Questions {
		it := Item{ID: q.ID.String(), Text: q.Prompt}
		for _, o := range q.Options {
			it.Options = append(it.Options, o.choice())
		}
		p.Items = append(p.Items, it)
		p.Answers = append(p.Answers, Answer{Item: it.ID, Choice: q.AnswerID.String()})
	}
	return p, nil
}

func adaptTeil3(raw json.RawMessage) (Part, error) {
	var c struct {
		rawHeader
		Situations []rawEntry `json:"situations"`
		Ads        []rawEntry `json:"ads"`
		Answers    []struct {
			SituationID ID `json:"situationId"`
			AdID        ID `json:"adId"`
		} `json:"answers"`
	}
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := Part{Kind: KindTeil3, Title: c.Title, Instruction: c.Instruction}
	for _, s := range c.Situations {
		p.Items = append(p.Items, s.item())
	}
	for _, a := range c.Ads {
		p.Choices = append(p.Choices, a.choice())
	}
	for _, a := range c.Answers {
		p.Answers = append(p.Answers, Answer{Item: a.SituationID.String(), Choice: a.AdID.String()})
	}
	return p, nil
}

type rawBlank struct {
	ID      ID       `json:"id"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
	Text    string   `json:"text"`
}

type rawSegment struct {
	Type    string   `json:"type"`
	Value   string   `json:"value"`
	ID      ID       `json:"id"`
	Options []string `json:"options"`
}

type rawCloze struct {
	rawHeader
	Segments []rawSegment `json:"segments"`
	Blanks   []rawBlank   `json:"blanks"`
	Answers  []rawBlank   `json:"answers"`
	Options  []string     `json:"options"`
	WordBank []bankWord   `json:"wordBank"`
}

// bankWord is one word-bank entry: a bare string or number, or an object
// carrying the word in text or answer.
type bankWord string

func (w *bankWord) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var o struct {
			Text   string `json:"text"`
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return err
		}
		*w = bankWord(o.Text)
		if o.Text == "" {
			*w = bankWord(o.Answer)
		}
		return nil
	}
	var id ID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	*w = bankWord(id.String())
	return nil
}

// cloze fills the parts shared by both sprachbausteine kinds: segments,
// blank items and the answer key. The answer key comes from the explicit
// answers list when present, from the blanks otherwise; later entries for the
// same blank win.
func (c rawCloze) cloze(k Kind) Part {
	p := Part{Kind: k, Title: c.Title, Instruction: c.Instruction}
	for _, s := range c.Segments {
		p.Segments = append(p.Segments, Segment{Type: s.Type, Value: s.Value, ID: s.ID.String(), Options: s.Options})
	}
	blanks := c.Blanks
	if len(blanks) == 0 {
		blanks = c.Answers
	}
	for _, b := range blanks {
		p.Items = append(p.Items, Item{ID: b.ID.String()})
	}
	key := c.Answers
	if len(key) == 0 {
		key = c.Blanks
	}
	index := map[string]int{}
	for _, b := range key {
		word := b.Answer
		if word == "" {
			word = b.Text
		}
		id := b.ID.String()
		if i, ok := index[id]; ok {
			p.Answers[i].Choice = word
			continue
		}
		index[id] = len(p.Answers)
		p.Answers = append(p.Answers, Answer{Item: id, Choice: word})
	}
	return p
}

func adaptSprach1(raw json.RawMessage) (Part, error) {
	var c rawCloze
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := c.cloze(KindSprach1)
	segOpts := map[string][]string{}
	for _, s := range c.Segments {
		if s.Type == "blank" && len(s.Options) > 0 {
			segOpts[s.ID.String()] = s.Options
		}
	}
	blankOpts := map[string][]string{}
	for _, b := range c.Blanks {
		blankOpts[b.ID.String()] = b.Options
	}
	for i, it := range p.Items {
		opts := blankOpts[it.ID]
		if len(opts) == 0 {
			opts = segOpts[it.ID]
		}
		for _, o := range opts {
			p.Items[i].Options = append(p.Items[i].Options, Choice{ID: o, Text: o})
		}
	}
	return p, nil
}

func adaptSprach2(raw json.RawMessage) (Part, error) {
	var c rawCloze
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := c.cloze(KindSprach2)
	p.Choices = wordBank(c)
	return p, nil
}

// wordBank prefers the explicit bank, then the shared options, then the
// blanks' answers; a source without any usable word falls through to the
// next. Words are deduplicated by their normalized form; the first spelling
// wins. The word text doubles as the choice id.
func wordBank(c rawCloze) []Choice {
	var bank, answers []string
	for _, w := range c.WordBank {
		bank = append(bank, string(w))
	}
	blanks := c.Blanks
	if len(blanks) == 0 {
		blanks = c.Answers
	}
	for _, b := range blanks {
		word := b.Answer
		if word == "" {
			word = b.Text
		}
		answers = append(answers, word)
	}
	for _, words := range [][]string{bank, c.Options, answers} {
		if out := dedupeWords(words); len(out) > 0 {
			return out
		}
	}
	return nil
}

func dedupeWords(words []string) []Choice {
	seen := map[string]bool{}
	var out []Choice
	for _, w := range words {
		n := Normalize(w)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, Choice{ID: w, Text: w})
	}
	return out
}

func adaptAussagen(raw json.RawMessage) (Part, error) {
	var c struct {
		rawHeader
		Topics []struct {
			Title      string `json:"title"`
			Tag        string `json:"tag"`
			Statements []struct {
				ID      ID     `json:"id"`
				Number  int    `json:"number"`
				Text    string `json:"text"`
				Correct bool   `json:"correct"`
			} `json:"statements"`
		} `json:"topics"`
	}
	if err := decode(raw, &c); err != nil {
		return Part{}, err
	}
	p := Part{Kind: KindAussagen, Title: c.Title, Instruction: c.Instruction}
	for _, t := range c.Topics {
		topic := Topic{Title: t.Title, Tag: t.Tag}
		for _, s := range t.Statements {
			st := Statement{ID: s.ID.String(), Number: s.Number, Text: s.Text, Correct: s.Correct}
			topic.Statements = append(topic.Statements, st)
			p.Items = append(p.Items, Item{ID: st.ID, Text: st.Text})
		}
		p.Topics = append(p.Topics, topic)
	}
	return p, nil
}

// Adapt normalizes the raw content of a part of the given kind.
func Adapt(k Kind, raw json.RawMessage) (Part, error) {
	a, ok := Lookup(k)
	if !ok {
		return Part{}, fmt.Errorf("unsupported part kind %q", k)
	}
	return a.Adapt(raw)
}
