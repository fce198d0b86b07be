package memoservice

import "github.com/starford/memos/internal/models"

// EventKind names a memo change.
type EventKind string

// Change kinds.
const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventArchived EventKind = "archived"
	EventRestored EventKind = "restored"
	EventDeleted  EventKind = "deleted"
)

// Event describes a committed change. Memo is nil for deletions.
type Event struct {
	Kind EventKind
	ID   int64
	Memo *models.Memo
}

// Listener is called synchronously after each committed change.
type Listener func(Event)

// OnChange registers l for change events.
func (s *Service) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) emit(ev Event) {
	s.mu.RLock()
	ls := s.listeners
	s.mu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}
