package transport

import (
	"sort"
	"sync"
)

// Listeners is a registry of Listeners shared by Transport implementations.
// The zero value is ready to use.
type Listeners struct {
	mu   sync.Mutex
	next int
	m    map[int]Listener
}

// Add registers l and returns a func that removes it. Removing twice is safe.
func (s *Listeners) Add(l Listener) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		s.m = make(map[int]Listener)
	}
	id := s.next
	s.next++
	s.m[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.m, id)
	}
}

// Len returns the number of registered listeners.
func (s *Listeners) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Dispatch hands events to every listener, in registration order. Listeners
// are called without the registry lock held, so they may add or remove
// listeners.
func (s *Listeners) Dispatch(events []Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.m[id])
	}
	s.mu.Unlock()

	for _, l := range ls {
		l.OnDataChanged(events)
	}
}
