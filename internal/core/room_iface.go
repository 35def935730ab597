package core

import (
	"github.com/dkeye/coachline/internal/domain"
)

// PublishResult reports delivery stats/backpressure of one broadcast.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int

	AddMember(ms MemberSession)
	RemoveMember(conn domain.ConnID) int
	Broadcast(data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// RoomRouter is the only delivery primitive: connections join rooms and
// frames are fanned out to every member of a room.
type RoomRouter interface {
	Join(room domain.RoomName, ms MemberSession)
	// Leave removes the connection from every room it joined.
	Leave(conn domain.ConnID)
	Broadcast(room domain.RoomName, data Frame) PublishResult
	List() []RoomInfo
}
