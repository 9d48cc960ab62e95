package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ivlev/svg2video/internal/session"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry хранит сессии по UUID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	factory  func() *session.Session
}

func NewRegistry(factory func() *session.Session) *Registry {
	return &Registry{sessions: make(map[string]*session.Session), factory: factory}
}

func (r *Registry) Create() (string, *session.Session) {
	id := uuid.NewString()
	s := r.factory()
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, s
}

func (r *Registry) Get(id string) (*session.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete останавливает предпросмотр и забывает сессию.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
