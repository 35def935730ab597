package domain

import "github.com/google/uuid"

// ConnID identifies one live transport connection.
type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }

// Member represents a connection's participation meta.
// No transport or lifecycle logic here.
type Member struct {
	Principal Principal
	Conn      ConnID
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(p Principal, conn ConnID) *Member {
	return &Member{Principal: p, Conn: conn}
}
