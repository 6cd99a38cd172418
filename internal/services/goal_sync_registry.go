package services

import (
	"sync"

	"github.com/Dias221467/savings-goals/internal/metrics"
)

// SyncRegistry tracks live GoalSync sessions so the scheduler can refresh them when
// calendar time moves on without any store change.
type SyncRegistry struct {
	mu       sync.Mutex
	sessions map[*GoalSync]struct{}
}

func NewSyncRegistry() *SyncRegistry {
	return &SyncRegistry{sessions: map[*GoalSync]struct{}{}}
}

// Add registers s and returns a function that unregisters it.
func (r *SyncRegistry) Add(s *GoalSync) (remove func()) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	metrics.LiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sessions, s)
		metrics.LiveSessions.Set(float64(len(r.sessions)))
	}
}

// Len returns the number of registered sessions.
func (r *SyncRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RefreshAll re-runs the derivation pass of every registered session and returns how
// many it touched.
func (r *SyncRegistry) RefreshAll() int {
	r.mu.Lock()
	sessions := make([]*GoalSync, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Refresh()
	}
	return len(sessions)
}
