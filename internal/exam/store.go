package exam

import (
	"sort"
	"sync"
)

// Store holds part states keyed by Key. States are created on first access;
// every operation is total over unknown keys. Readers get copies.
type Store struct {
	mu    sync.RWMutex
	parts map[Key]*PartState
}

func NewStore() *Store {
	return &Store{parts: map[Key]*PartState{}}
}

func (s *Store) ensure(k Key) *PartState {
	ps, ok := s.parts[k]
	if !ok {
		ps = newPartState()
		s.parts[k] = ps
	}
	return ps
}

// Get returns a snapshot of the state under k.
func (s *Store) Get(k Key) PartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(k).clone()
}

// Update runs fn on the live state under k while holding the store lock.
// fn must not call back into the store.
func (s *Store) Update(k Key, fn func(*PartState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ensure(k))
}

// Record sets the response for item. It never touches the submitted flag.
func (s *Store) Record(k Key, item string, v interface{}) {
	s.mu.Lock()
	s.ensure(k).Responses[item] = v
	s.mu.Unlock()
}

// Delete removes the response for item, if any.
func (s *Store) Delete(k Key, item string) {
	s.mu.Lock()
	delete(s.ensure(k).Responses, item)
	s.mu.Unlock()
}

func (s *Store) SetSubmitted(k Key, submitted bool) {
	s.mu.Lock()
	s.ensure(k).Submitted = submitted
	s.mu.Unlock()
}

func (s *Store) SetActive(k Key, sel Selection) {
	s.mu.Lock()
	s.ensure(k).Active = sel
	s.mu.Unlock()
}

// Reset returns the state under k to empty responses, not submitted and no
// active selection. Other keys are untouched.
func (s *Store) Reset(k Key) {
	s.mu.Lock()
	s.parts[k] = newPartState()
	s.mu.Unlock()
}

// ResetAll resets every given key atomically.
func (s *Store) ResetAll(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.parts[k] = newPartState()
	}
}

// Keys lists the keys that have been touched, in string order.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Key, 0, len(s.parts))
	for k := range s.parts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
