package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certsherpa/quiz-app/internal/metrics"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

var ErrSessionNotFound = errors.New("session not found")

type registryEntry struct {
	session  *quiz.Session
	lastSeen time.Time
}

// Registry holds the live sessions of the service. Sessions idle for longer
// than the TTL are closed by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*registryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *Registry) Add(session *quiz.Session) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.sessions[id] = &registryEntry{session: session, lastSeen: r.now()}
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return id
}

func (r *Registry) Get(id string) (*quiz.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = r.now()
	return entry.session, nil
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.session.Close()
	metrics.ActiveSessions.Dec()
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle past the TTL and returns how many it removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.ttl)
	var expired []*quiz.Session

	r.mu.Lock()
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range expired {
		session.Close()
		metrics.ActiveSessions.Dec()
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done, then closes what is left.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range sessions {
		entry.session.Close()
		metrics.ActiveSessions.Dec()
	}
}
