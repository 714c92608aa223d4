package matching_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
	"github.com/mind-engage/pruefungstrainer/internal/matching"
)

func teil1() content.Part {
	p := content.Part{Key: "teil-1", Kind: content.KindTeil1}
	for i := 1; i <= 5; i++ {
		p.Items = append(p.Items, content.Item{ID: fmt.Sprintf("T%d", i)})
		p.Choices = append(p.Choices, content.Choice{ID: fmt.Sprintf("H%d", i)})
	}
	return p
}

func teil3() content.Part {
	return content.Part{
		Key:     "teil-3",
		Kind:    content.KindTeil3,
		Items:   []content.Item{{ID: "S1"}, {ID: "S2"}, {ID: "S3"}},
		Choices: []content.Choice{{ID: "A"}, {ID: "B"}, {ID: content.NoMatch}},
	}
}

func sprach2() content.Part {
	return content.Part{
		Key:     "sprachbausteine-2",
		Kind:    content.KindSprach2,
		Items:   []content.Item{{ID: "1"}, {ID: "2"}},
		Choices: []content.Choice{{ID: "Haus", Text: "Haus"}, {ID: "Baum", Text: "Baum"}},
	}
}

func key(part string) exam.Key {
	return exam.Key{Level: "b1", Theme: "arbeit", Version: "1", Part: part}
}

func TestClaimedFillerRejectedUntilUnassigned(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil1(), key("teil-1")

	if err := eng.Assign(k, p, "T1", "H3"); err != nil {
		t.Fatalf("assign T1: %v", err)
	}
	err := eng.Assign(k, p, "T2", "H3")
	if !errors.Is(err, matching.ErrFillerClaimed) {
		t.Fatalf("assign T2: got %v, want ErrFillerClaimed", err)
	}
	resp := store.Get(k).Responses
	if resp.Text("T1") != "H3" {
		t.Errorf("T1 must keep H3, got %q", resp.Text("T1"))
	}
	if _, ok := resp["T2"]; ok {
		t.Errorf("T2 must stay unanswered")
	}

	if err := eng.Unassign(k, p, "T1"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Assign(k, p, "T2", "H3"); err != nil {
		t.Fatalf("assign after unassign: %v", err)
	}
	if got := eng.Used(k, p)["H3"]; got != "T2" {
		t.Errorf("H3 holder: got %q", got)
	}
}

func TestReassignSameSlotAllowed(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil1(), key("teil-1")
	for _, f := range []string{"H1", "H1", "H2"} {
		if err := eng.Assign(k, p, "T1", f); err != nil {
			t.Fatalf("assign %s: %v", f, err)
		}
	}
	if got := store.Get(k).Responses.Text("T1"); got != "H2" {
		t.Errorf("got %q", got)
	}
}

func TestSentinelMayBeSharedInTeil3(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil3(), key("teil-3")
	for _, s := range []string{"S1", "S2", "S3"} {
		if err := eng.Assign(k, p, s, content.NoMatch); err != nil {
			t.Fatalf("assign %s: %v", s, err)
		}
	}
	if used := eng.Used(k, p); len(used) != 0 {
		t.Errorf("sentinel must not appear in the used index: %v", used)
	}
	if err := eng.Assign(k, p, "S1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Assign(k, p, "S2", "A"); !errors.Is(err, matching.ErrFillerClaimed) {
		t.Errorf("non-sentinel must stay unique: %v", err)
	}
}

func TestOneToOneUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, p := range []content.Part{teil1(), teil3()} {
		store := exam.NewStore()
		eng := matching.New(store)
		k := key(p.Key)
		rules := matching.RulesFor(p)
		for step := 0; step < 500; step++ {
			slot := p.Items[rng.Intn(len(p.Items))].ID
			switch rng.Intn(4) {
			case 0:
				_ = eng.Unassign(k, p, slot)
			default:
				_ = eng.Assign(k, p, slot, p.Choices[rng.Intn(len(p.Choices))].ID)
			}
			seen := map[string]string{}
			for s, v := range store.Get(k).Responses {
				f := exam.Text(v)
				if f == rules.Sentinel && rules.Sentinel != "" {
					continue
				}
				if other, dup := seen[f]; dup {
					t.Fatalf("%s step %d: %s held by %s and %s", p.Kind, step, f, other, s)
				}
				seen[f] = s
			}
		}
	}
}

func TestWordBankFoldsCase(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := sprach2(), key("sprachbausteine-2")
	if err := eng.Assign(k, p, "1", "haus"); err != nil {
		t.Fatal(err)
	}
	if got := store.Get(k).Responses.Text("1"); got != "Haus" {
		t.Errorf("stored word should use bank spelling, got %q", got)
	}
	if err := eng.Assign(k, p, "2", " HAUS"); !errors.Is(err, matching.ErrFillerClaimed) {
		t.Errorf("got %v, want ErrFillerClaimed", err)
	}
}

func TestWordBankUsedKeyedByChoiceID(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := sprach2(), key("sprachbausteine-2")
	if err := eng.Assign(k, p, "2", "BAUM"); err != nil {
		t.Fatal(err)
	}
	used := eng.Used(k, p)
	if used["Baum"] != "2" {
		t.Errorf("used should be keyed by the bank spelling: %v", used)
	}
	if _, ok := used["baum"]; ok {
		t.Errorf("normalized key leaked into used: %v", used)
	}
}

func TestUnknownSlotAndFiller(t *testing.T) {
	eng := matching.New(exam.NewStore())
	p, k := teil1(), key("teil-1")
	if err := eng.Assign(k, p, "T9", "H1"); !errors.Is(err, matching.ErrUnknownSlot) {
		t.Errorf("got %v", err)
	}
	if err := eng.Assign(k, p, "T1", "H9"); !errors.Is(err, matching.ErrUnknownFiller) {
		t.Errorf("got %v", err)
	}
}

func TestSubmittedPartIsLocked(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil1(), key("teil-1")
	_ = eng.Assign(k, p, "T1", "H1")
	store.SetSubmitted(k, true)
	if err := eng.Assign(k, p, "T2", "H2"); !errors.Is(err, exam.ErrSubmitted) {
		t.Errorf("assign: got %v", err)
	}
	if err := eng.Unassign(k, p, "T1"); !errors.Is(err, exam.ErrSubmitted) {
		t.Errorf("unassign: got %v", err)
	}
	if store.Get(k).Responses.Text("T1") != "H1" {
		t.Errorf("locked part changed")
	}
}

func TestTwoStepSelection(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil1(), key("teil-1")

	// filler first, then slot
	if ok, err := eng.SelectFiller(k, p, "H2"); err != nil || ok {
		t.Fatalf("pending filler: ok=%v err=%v", ok, err)
	}
	if ok, err := eng.SelectSlot(k, p, "T1"); err != nil || !ok {
		t.Fatalf("slot completes pair: ok=%v err=%v", ok, err)
	}
	ps := store.Get(k)
	if ps.Responses.Text("T1") != "H2" || ps.Active.Filler != "" || ps.Active.Slot != "T1" {
		t.Errorf("after pairing: %+v", ps)
	}

	// slot first, then filler
	if ok, _ := eng.SelectSlot(k, p, "T2"); ok {
		t.Fatalf("no filler pending, nothing to assign")
	}
	if ok, err := eng.SelectFiller(k, p, "H4"); err != nil || !ok {
		t.Fatalf("filler completes pair: ok=%v err=%v", ok, err)
	}

	// claimed filler: selection becomes the active target, no steal
	if ok, _ := eng.SelectSlot(k, p, "T3"); ok {
		t.Fatal("unexpected assignment")
	}
	ok, err := eng.SelectFiller(k, p, "H2")
	if err != nil || ok {
		t.Fatalf("claimed filler: ok=%v err=%v", ok, err)
	}
	ps = store.Get(k)
	if ps.Active != (exam.Selection{Filler: "H2"}) {
		t.Errorf("active: got %+v", ps.Active)
	}
	if ps.Responses.Text("T1") != "H2" {
		t.Errorf("T1 lost its filler")
	}
	if _, ok := ps.Responses["T3"]; ok {
		t.Errorf("T3 must stay empty")
	}
	if ok, _ := eng.SelectSlot(k, p, "T3"); ok {
		t.Errorf("pending claimed filler must still be rejected")
	}
	if got := store.Get(k).Active; got != (exam.Selection{Slot: "T3"}) {
		t.Errorf("slot becomes active target: %+v", got)
	}
}

func TestDropAndRelease(t *testing.T) {
	store := exam.NewStore()
	eng := matching.New(store)
	p, k := teil1(), key("teil-1")
	if err := eng.Drop(k, p, "T1", "H5"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Drop(k, p, "T2", "H5"); !errors.Is(err, matching.ErrFillerClaimed) {
		t.Errorf("drop onto other slot: got %v", err)
	}
	if err := eng.Release(k, p, "H5"); err != nil {
		t.Fatal(err)
	}
	if len(store.Get(k).Responses) != 0 {
		t.Errorf("release should clear the holder")
	}
	if err := eng.Release(k, p, "H1"); err != nil {
		t.Errorf("releasing an unused filler is a no-op: %v", err)
	}
}

func TestNonPairingPartsAllowRepeats(t *testing.T) {
	p := content.Part{
		Key:  "teil-2",
		Kind: content.KindTeil2,
		Items: []content.Item{
			{ID: "1", Options: []content.Choice{{ID: "a"}, {ID: "b"}}},
			{ID: "2", Options: []content.Choice{{ID: "a"}, {ID: "b"}}},
		},
	}
	eng := matching.New(exam.NewStore())
	k := key("teil-2")
	if err := eng.Assign(k, p, "1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Assign(k, p, "2", "a"); err != nil {
		t.Errorf("teil-2 options are per question: %v", err)
	}
	if err := eng.Assign(k, p, "2", "A"); !errors.Is(err, matching.ErrUnknownFiller) {
		t.Errorf("teil-2 ids are exact: %v", err)
	}
}
