package core

import (
	"sync"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name   domain.RoomName
	mu     sync.RWMutex
	byConn map[domain.ConnID]MemberSession
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name:   name,
		byConn: make(map[domain.ConnID]MemberSession),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

func (r *roomImpl) AddMember(ms MemberSession) {
	meta := ms.Meta()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[meta.Conn] = ms
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(meta.Conn)).Str("user", string(meta.Principal.ID)).Msg("member added")
}

// RemoveMember returns the number of members left.
func (r *roomImpl) RemoveMember(conn domain.ConnID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, conn)
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(conn)).Msg("member removed")
	return len(r.byConn)
}

func (r *roomImpl) Broadcast(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, m := range r.byConn {
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
