// Package session keeps per-chat wizard state in memory.
package session

import (
	"maps"
	"sync"

	"relief-bot/api/internal/relief"
)

type entry struct {
	mu   sync.Mutex
	sess *relief.Session
}

// Store maps chat ids to sessions. Each session has its own lock so that
// slow work in one chat never waits on another.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[int64]*entry)}
}

func (s *Store) entry(id int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{sess: &relief.Session{ID: id, Fields: map[relief.Field]string{}}}
		s.entries[id] = e
	}
	return e
}

// Update runs fn with exclusive access to the session for id, creating an
// idle session on first use. fn must not block on I/O.
func (s *Store) Update(id int64, fn func(*relief.Session) error) error {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sess)
}

// View returns a copy of the session for read-only use.
func (s *Store) View(id int64) relief.Session {
	var out relief.Session
	_ = s.Update(id, func(sess *relief.Session) error {
		out = *sess
		out.Fields = maps.Clone(sess.Fields)
		return nil
	})
	return out
}

// Range calls fn for every session, each under its own lock. fn must not
// call back into the store.
func (s *Store) Range(fn func(*relief.Session)) {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		fn(e.sess)
		e.mu.Unlock()
	}
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
