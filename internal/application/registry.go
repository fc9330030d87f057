package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	"github.com/six502/emuctl/internal/domain"
)

// Registry tracks every session created during a run so each one is
// either deleted by the end or reported as leaked. Lookups are by
// identifier equality only; the lock guards membership, never a network
// call.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*emuhttp.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[domain.SessionID]*emuhttp.Session{}}
}

func (r *Registry) Add(session *emuhttp.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already tracked", session.ID)
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *Registry) Get(id domain.SessionID) (*emuhttp.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotTracked, id)
	}
	return session, nil
}

func (r *Registry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns the tracked sessions sorted by id for stable reporting;
// the order carries no semantic meaning.
func (r *Registry) List() []*emuhttp.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*emuhttp.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions
}

type Leak struct {
	ID  domain.SessionID
	Err error
}

// CleanupAll deletes every tracked session. It is best-effort and
// non-short-circuiting: a failed delete is reported as a leak and the
// remaining deletions are still attempted.
func (r *Registry) CleanupAll(ctx context.Context) []Leak {
	var leaks []Leak
	for _, session := range r.List() {
		if err := session.Delete(ctx); err != nil {
			leaks = append(leaks, Leak{ID: session.ID, Err: err})
			continue
		}
		r.Remove(session.ID)
	}
	return leaks
}
