package content_test

import (
	"errors"
	"io"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/mind-engage/pruefungstrainer/internal/content"
)

const doc = `{
  "levels": {
    "b1": {
      "title": "B1",
      "themeOrder": ["arbeit", "reisen"],
      "themes": {
        "reisen": {"title": "Reisen", "lesen": {"parts": {"teil-2": {"content": {"questions": [{"id": 1, "prompt": "?", "options": [{"id": "a", "text": "A"}], "answerId": "a"}]}}}}},
        "arbeit": {
          "title": "Arbeit",
          "defaultVersion": "2",
          "versionOrder": ["1", "2"],
          "versions": {
            "1": {"lesen": {
              "partOrder": ["teil-1", "teil-3", "sprachbausteine-2", "missing"],
              "parts": {
                "teil-1": {"label": "Teil 1", "content": {
                  "instruction": "Ordnen Sie zu.",
                  "texts": [{"id": 1, "text": "Erster"}, {"id": 2, "text": "Zweiter"}],
                  "headlines": [{"id": "a", "text": "Alpha"}, {"id": "b", "text": "Beta"}],
                  "answers": [{"textId": 1, "headlineId": "b"}, {"textId": 2, "headlineId": "a"}]
                }},
                "teil-3": {"content": {
                  "situations": [{"id": "s1", "text": "S1"}],
                  "ads": [{"id": "a", "text": "Ad"}, {"id": "X", "text": "keine"}],
                  "answers": [{"situationId": "s1", "adId": "X"}]
                }},
                "sprachbausteine-2": {"content": {
                  "blanks": [{"id": 31, "answer": "Haus"}, {"id": 32, "answer": "haus "}, {"id": 33, "answer": "Baum"}]
                }},
                "teil-2": {"content": "broken"}
              }
            }},
            "2": {"lesen": {"parts": {
              "sprachbausteine-1": {"content": {
                "segments": [{"type": "text", "value": "Ich "}, {"type": "blank", "id": 21, "options": ["bin", "ist"]}],
                "blanks": [{"id": 21, "answer": "bin"}]
              }},
              "teil-1": {"content": {"texts": [{"id": "t1"}]}}
            }}}
          },
          "hören": {"parts": {"teil-1": {"content": {"topics": [
            {"title": "Wetter", "tag": "natur", "statements": [{"id": "h1", "number": 1, "correct": true}, {"id": "h2", "number": 2}]},
            {"title": "Bahn", "statements": [{"id": "h3", "number": 3}]}
          ]}}}}
        }
      }
    }
  }
}`

func mustParse(t *testing.T) *content.Catalog {
	t.Helper()
	c, err := content.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func TestResolveFallbacks(t *testing.T) {
	c := mustParse(t)
	l, err := c.ResolveLevel("c1")
	if err != nil || l.Key != "b1" {
		t.Fatalf("level fallback: %v %v", l, err)
	}
	th, err := l.ResolveTheme("")
	if err != nil || th.Key != "arbeit" {
		t.Fatalf("theme fallback: got %v %v", th, err)
	}
	if v := th.ResolveVersion("9"); v != "2" {
		t.Errorf("version fallback: got %q, want default 2", v)
	}
	if v := th.ResolveVersion("1"); v != "1" {
		t.Errorf("explicit version: got %q", v)
	}
	reisen, _ := l.ResolveTheme("reisen")
	if v := reisen.ResolveVersion(""); v != content.DefaultVersion {
		t.Errorf("unversioned theme: got %q", v)
	}
	if _, err := reisen.Version(content.DefaultVersion); err != nil {
		t.Errorf("unversioned theme exposes lesen as default: %v", err)
	}
}

func TestEmptyCatalog(t *testing.T) {
	c, err := content.Parse([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ResolveLevel("b1"); !errors.Is(err, content.ErrLevelNotFound) {
		t.Errorf("got %v, want ErrLevelNotFound", err)
	}
}

func TestPartOrderAndBrokenParts(t *testing.T) {
	c := mustParse(t)
	l, _ := c.ResolveLevel("b1")
	th, _ := l.ResolveTheme("arbeit")
	v1, _ := th.Version("1")
	want := []string{"teil-1", "teil-3", "sprachbausteine-2"}
	if got := v1.Lesen.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
	if _, err := v1.Lesen.Part("teil-2"); !errors.Is(err, content.ErrPartNotFound) {
		t.Errorf("broken part: got %v", err)
	}
	v2, _ := th.Version("2")
	if got := v2.Lesen.Order(); !reflect.DeepEqual(got, []string{"teil-1", "sprachbausteine-1"}) {
		t.Errorf("canonical order: got %v", got)
	}
}

func TestTeil1Normalization(t *testing.T) {
	c := mustParse(t)
	l, _ := c.ResolveLevel("b1")
	th, _ := l.ResolveTheme("arbeit")
	v1, _ := th.Version("1")
	p, err := v1.Lesen.Part("teil-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != content.KindTeil1 || p.Label != "Teil 1" || p.Instruction == "" {
		t.Errorf("header: %+v", p)
	}
	if len(p.Items) != 2 || p.Items[0].ID != "1" {
		t.Errorf("numeric ids should become strings: %+v", p.Items)
	}
	if got, _ := p.AnswerFor("1"); got != "b" {
		t.Errorf("answer for 1: got %q", got)
	}
	if !p.Pairing() || !p.HasChoice("1", "a") || p.HasChoice("1", "z") {
		t.Errorf("choices: %+v", p.Choices)
	}
	if pub := p.Public(); len(pub.Answers) != 0 {
		t.Errorf("public view leaks answers")
	}
}

func TestWordBankDerivedFromBlanks(t *testing.T) {
	c := mustParse(t)
	l, _ := c.ResolveLevel("b1")
	th, _ := l.ResolveTheme("arbeit")
	v1, _ := th.Version("1")
	p, _ := v1.Lesen.Part("sprachbausteine-2")
	var words []string
	for _, ch := range p.Choices {
		words = append(words, ch.ID)
	}
	if !reflect.DeepEqual(words, []string{"Haus", "Baum"}) {
		t.Errorf("word bank: got %v", words)
	}
	if !p.HasChoice("31", "HAUS") {
		t.Errorf("word bank lookup should be case-insensitive")
	}
	if len(p.Answers) != 3 {
		t.Errorf("answers from blanks: got %d", len(p.Answers))
	}
}

func TestSprach1OptionsFromSegments(t *testing.T) {
	c := mustParse(t)
	l, _ := c.ResolveLevel("b1")
	th, _ := l.ResolveTheme("arbeit")
	v2, _ := th.Version("2")
	p, _ := v2.Lesen.Part("sprachbausteine-1")
	if got := p.ChoicesFor("21"); len(got) != 2 || got[0].ID != "bin" {
		t.Errorf("per-blank options: got %+v", got)
	}
	if p.Pairing() {
		t.Errorf("sprachbausteine-1 is not a pairing part")
	}
}

func TestHoerenTopics(t *testing.T) {
	c := mustParse(t)
	l, _ := c.ResolveLevel("b1")
	th, _ := l.ResolveTheme("arbeit")
	h, ok := th.Hoeren()
	if !ok {
		t.Fatal("expected hören section")
	}
	p, err := h.Part("teil-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != content.KindAussagen || len(p.Statements()) != 3 {
		t.Errorf("statements: %+v", p)
	}
	for _, s := range p.Public().Statements() {
		if s.Correct {
			t.Errorf("public statement %s leaks correctness", s.ID)
		}
	}
	if !p.Topics[0].Statements[0].Correct {
		t.Errorf("Public must not mutate the original part")
	}
	if got := content.FilterTopics(p.Topics, "NATUR"); len(got) != 1 || got[0].Title != "Wetter" {
		t.Errorf("filter by tag: %+v", got)
	}
	if got := content.FilterTopics(p.Topics, "  "); len(got) != 2 {
		t.Errorf("blank filter keeps all")
	}
}

func TestShuffleOrderIsPermutation(t *testing.T) {
	got := content.ShuffleOrder(6, rand.New(rand.NewSource(7)))
	sorted := append([]int(nil), got...)
	sort.Ints(sorted)
	if !reflect.DeepEqual(sorted, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("not a permutation: %v", got)
	}
}

func TestLibraryCachesCatalog(t *testing.T) {
	src := &countingSource{data: doc}
	lib := content.NewLibrary(src)
	for i := 0; i < 3; i++ {
		if _, err := lib.Catalog("lesen.json"); err != nil {
			t.Fatal(err)
		}
	}
	if src.opens != 1 {
		t.Errorf("opens: got %d, want 1", src.opens)
	}
	if _, err := lib.Catalog("missing.json"); err == nil {
		t.Errorf("expected error for missing document")
	}
}

type countingSource struct {
	data  string
	opens int
}

func (s *countingSource) Get(key string) (io.ReadCloser, error) {
	if key != "lesen.json" {
		return nil, errors.New("not found")
	}
	s.opens++
	return io.NopCloser(strings.NewReader(s.data)), nil
}
