package livesync

import (
	"sync"

	"talk-n-share/internal/models"
)

// Reconciler remembers the newest version delivered per session and rejects
// anything that is not newer.
type Reconciler struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewReconciler() *Reconciler {
	return &Reconciler{versions: make(map[string]int64)}
}

// Accept records s and reports whether it should be delivered.
func (r *Reconciler) Accept(s *models.MatchSession) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.versions[s.ID]; ok && s.Version <= last {
		return false
	}
	r.versions[s.ID] = s.Version
	return true
}

func (r *Reconciler) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.versions, sessionID)
	r.mu.Unlock()
}
