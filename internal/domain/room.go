package domain

import "strings"

type RoomName string

const (
	StaffRoom      RoomName = "staff"
	userRoomPrefix          = "room:"
	connRoomPrefix          = "conn:"
)

// UserRoom is the private room of an end-user.
func UserRoom(id UserID) RoomName { return RoomName(userRoomPrefix + string(id)) }

// ConnRoom addresses exactly one connection.
func ConnRoom(id ConnID) RoomName { return RoomName(connRoomPrefix + string(id)) }

// HomeRoom is the room a principal joins on connect.
func HomeRoom(p Principal) RoomName {
	if p.IsStaff() {
		return StaffRoom
	}
	return UserRoom(p.ID)
}

// UserFromRoom extracts the user id of a private room name.
func UserFromRoom(name string) (UserID, bool) {
	if !strings.HasPrefix(name, userRoomPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, userRoomPrefix)
	if id == "" {
		return "", false
	}
	return UserID(id), true
}
