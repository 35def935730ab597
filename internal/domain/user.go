// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

type UserID string

// Role is the signaling role of a principal. Trainers and admins collapse into RoleStaff.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
)

// Raw account roles as issued in tokens.
const (
	TitleUser    = "user"
	TitleTrainer = "trainer"
	TitleAdmin   = "admin"
)

var ErrUnknownRole = errors.New("unknown role")

// Principal is an authenticated identity behind a connection.
type Principal struct {
	ID    UserID `json:"id"`
	Role  Role   `json:"role"`
	Title string `json:"-"` // raw account role, used as the message sender role
}

// RoleFromTitle maps a raw account role to its signaling role.
func RoleFromTitle(title string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case TitleUser:
		return RoleUser, nil
	case TitleTrainer, TitleAdmin:
		return RoleStaff, nil
	default:
		return "", ErrUnknownRole
	}
}

func NewPrincipal(id UserID, title string) (Principal, error) {
	role, err := RoleFromTitle(title)
	if err != nil {
		return Principal{}, err
	}
	t := strings.ToLower(strings.TrimSpace(title))
	return Principal{ID: id, Role: role, Title: t}, nil
}

func (p Principal) IsStaff() bool { return p.Role == RoleStaff }

// SenderRole is the role recorded on messages the principal authors.
func (p Principal) SenderRole() string {
	if p.Title != "" {
		return p.Title
	}
	if p.Role == RoleStaff {
		return TitleTrainer
	}
	return TitleUser
}
