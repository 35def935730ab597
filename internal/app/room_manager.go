package app

import (
	"slices"
	"sync"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/dkeye/coachline/internal/observability"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the process-local RoomRouter.
type RoomManagerImpl struct {
	mu          sync.RWMutex
	rooms       map[domain.RoomName]core.RoomService
	memberships map[domain.ConnID][]domain.RoomName

	Policy  Policy
	Metrics *observability.Metrics
}

func NewRoomManager(policy Policy, metrics *observability.Metrics) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms:       make(map[domain.RoomName]core.RoomService),
		memberships: make(map[domain.ConnID][]domain.RoomName),
		Policy:      policy,
		Metrics:     metrics,
	}
}

func (f *RoomManagerImpl) Join(name domain.RoomName, ms core.MemberSession) {
	conn := ms.Meta().Conn
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		room = core.NewRoomService(name)
		f.rooms[name] = room
	}
	room.AddMember(ms)
	if !slices.Contains(f.memberships[conn], name) {
		f.memberships[conn] = append(f.memberships[conn], name)
	}
}

func (f *RoomManagerImpl) Leave(conn domain.ConnID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range f.memberships[conn] {
		room, ok := f.rooms[name]
		if !ok {
			continue
		}
		if room.RemoveMember(conn) == 0 {
			delete(f.rooms, name)
		}
	}
	delete(f.memberships, conn)
}

func (f *RoomManagerImpl) Broadcast(name domain.RoomName, data core.Frame) core.PublishResult {
	f.mu.RLock()
	room, ok := f.rooms[name]
	f.mu.RUnlock()
	if !ok {
		return core.PublishResult{}
	}

	res := room.Broadcast(data)
	if len(res.Dropped) > 0 {
		f.Metrics.FramesDropped(len(res.Dropped))
	}
	if f.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch f.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.rooms").Str("room", string(name)).Str("conn", string(slow.Meta().Conn)).Msg("kicking slow member")
			slow.Signal().Close()
		case DropFrame, NoAction:
		}
	}
	return res
}

func (f *RoomManagerImpl) Rooms(conn domain.ConnID) []domain.RoomName {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.memberships[conn])
}

func (f *RoomManagerImpl) MemberCount(name domain.RoomName) int {
	f.mu.RLock()
	room, ok := f.rooms[name]
	f.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.MemberCount()
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	return out
}
