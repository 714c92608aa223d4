// Package matching pairs slots (texts, situations, blanks) with fillers
// (headlines, ads, words) on top of the response store.
package matching

import (
	"errors"
	"fmt"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
)

var (
	ErrFillerClaimed = errors.New("filler is assigned to another slot")
	ErrUnknownSlot   = errors.New("unknown slot")
	ErrUnknownFiller = errors.New("unknown filler")
)

// Rules describe how fillers are consumed in one part kind.
type Rules struct {
	Unique   bool                // a filler may be held by one slot at a time
	Sentinel string              // filler exempt from Unique
	Fold     func(string) string // filler identity, nil = exact
}

// RulesFor returns the pairing rules of a part.
func RulesFor(p content.Part) Rules {
	switch p.Kind {
	case content.KindTeil1:
		return Rules{Unique: true}
	case content.KindTeil3:
		return Rules{Unique: true, Sentinel: content.NoMatch}
	case content.KindSprach2:
		return Rules{Unique: true, Fold: content.Normalize}
	}
	return Rules{}
}

func (r Rules) fold(s string) string {
	if r.Fold == nil {
		return s
	}
	return r.Fold(s)
}

func (r Rules) exempt(filler string) bool { return r.Sentinel != "" && filler == r.Sentinel }

// UsedBy derives filler -> holding slot from the responses. It is computed
// on every call and never cached.
func UsedBy(resp exam.Responses, r Rules) map[string]string {
	used := map[string]string{}
	if !r.Unique {
		return used
	}
	for slot, v := range resp {
		f := exam.Text(v)
		if !exam.Answered(v) || r.exempt(f) {
			continue
		}
		used[r.fold(f)] = slot
	}
	return used
}

// Holder reports which slot currently holds filler.
func Holder(resp exam.Responses, r Rules, filler string) (string, bool) {
	if !r.Unique || r.exempt(filler) {
		return "", false
	}
	slot, ok := UsedBy(resp, r)[r.fold(filler)]
	return slot, ok
}

// Engine applies pairing operations to parts held in a store.
type Engine struct{ store *exam.Store }

func New(store *exam.Store) *Engine { return &Engine{store: store} }

// Used returns the derived filler -> slot index of a part, keyed by the
// filler ids the part offers.
func (e *Engine) Used(k exam.Key, p content.Part) map[string]string {
	resp := e.store.Get(k).Responses
	used := map[string]string{}
	for f, slot := range UsedBy(resp, RulesFor(p)) {
		if c, ok := p.Choice(slot, exam.Text(resp[slot])); ok {
			f = c.ID
		}
		used[f] = slot
	}
	return used
}

func resolve(p content.Part, slot, filler string) (string, error) {
	if _, ok := p.Item(slot); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	c, ok := p.Choice(slot, filler)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFiller, filler)
	}
	return c.ID, nil
}

func assign(ps *exam.PartState, r Rules, slot, filler string) error {
	if holder, ok := Holder(ps.Responses, r, filler); ok && holder != slot {
		return fmt.Errorf("%w: %s holds %s", ErrFillerClaimed, holder, filler)
	}
	ps.Responses[slot] = filler
	ps.Active = exam.Selection{Slot: slot}
	return nil
}

// Assign pairs slot with filler. It fails without mutation when another
// slot holds the filler, unless the filler is the sentinel.
func (e *Engine) Assign(k exam.Key, p content.Part, slot, filler string) error {
	canon, err := resolve(p, slot, filler)
	if err != nil {
		return err
	}
	r := RulesFor(p)
	return e.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		return assign(ps, r, slot, canon)
	})
}

// Drop is the drag-and-drop path into Assign.
func (e *Engine) Drop(k exam.Key, p content.Part, slot, filler string) error {
	return e.Assign(k, p, slot, filler)
}

// Unassign clears a slot. Clearing an empty slot is a no-op.
func (e *Engine) Unassign(k exam.Key, p content.Part, slot string) error {
	if _, ok := p.Item(slot); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return e.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		delete(ps.Responses, slot)
		return nil
	})
}

// Release clears whichever slot holds filler.
func (e *Engine) Release(k exam.Key, p content.Part, filler string) error {
	r := RulesFor(p)
	return e.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		if slot, ok := Holder(ps.Responses, r, filler); ok {
			delete(ps.Responses, slot)
		}
		return nil
	})
}

// SelectSlot is the slot half of the two-step protocol. With a filler
// pending it attempts the assignment; otherwise, or when the filler is taken,
// the slot becomes the active target. It reports whether an assignment
// happened.
func (e *Engine) SelectSlot(k exam.Key, p content.Part, slot string) (bool, error) {
	if _, ok := p.Item(slot); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	r := RulesFor(p)
	assigned := false
	err := e.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		if pending := ps.Active.Filler; pending != "" {
			if c, ok := p.Choice(slot, pending); ok && assign(ps, r, slot, c.ID) == nil {
				assigned = true
				return nil
			}
		}
		ps.Active = exam.Selection{Slot: slot}
		return nil
	})
	return assigned, err
}

// SelectFiller is the filler half of the two-step protocol.
func (e *Engine) SelectFiller(k exam.Key, p content.Part, filler string) (bool, error) {
	r := RulesFor(p)
	assigned := false
	err := e.store.Update(k, func(ps *exam.PartState) error {
		if ps.Submitted {
			return exam.ErrSubmitted
		}
		if slot := ps.Active.Slot; slot != "" {
			c, ok := p.Choice(slot, filler)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownFiller, filler)
			}
			if assign(ps, r, slot, c.ID) == nil {
				assigned = true
				return nil
			}
			ps.Active = exam.Selection{Filler: c.ID}
			return nil
		}
		if !offered(p, filler) {
			return fmt.Errorf("%w: %s", ErrUnknownFiller, filler)
		}
		ps.Active = exam.Selection{Filler: filler}
		return nil
	})
	return assigned, err
}

func offered(p content.Part, filler string) bool {
	if _, ok := p.Choice("", filler); ok {
		return true
	}
	for _, it := range p.Items {
		if p.HasChoice(it.ID, filler) {
			return true
		}
	}
	return false
}
