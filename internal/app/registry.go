package app

import (
	"context"
	"sync"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is the process-local connection registry: userId -> live connection count.
// Use the redis registry when several gateway processes share users.
type Registry struct {
	mu     sync.Mutex
	counts map[domain.UserID]int64
}

func NewRegistry() *Registry {
	return &Registry{counts: make(map[domain.UserID]int64)}
}

func (r *Registry) Register(_ context.Context, id domain.UserID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]++
	n := r.counts[id]
	log.Debug().Str("module", "app.registry").Str("user", string(id)).Int64("count", n).Msg("connection registered")
	return n, nil
}

func (r *Registry) Deregister(_ context.Context, id domain.UserID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[id]
	if !ok {
		log.Warn().Str("module", "app.registry").Str("user", string(id)).Msg("deregister without entry")
		return false, nil
	}
	if n <= 1 {
		delete(r.counts, id)
		log.Debug().Str("module", "app.registry").Str("user", string(id)).Msg("last connection closed")
		return true, nil
	}
	r.counts[id] = n - 1
	return false, nil
}

func (r *Registry) Count(id domain.UserID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

// Users is the number of users with at least one live connection.
func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}
