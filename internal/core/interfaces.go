package core

import (
	"context"
	"time"

	"github.com/dkeye/coachline/internal/domain"
)

// TokenVerifier resolves a bearer credential to a principal.
// Any failure is reported as domain.ErrUnauthorized.
type TokenVerifier interface {
	Resolve(ctx context.Context, credential string) (domain.Principal, error)
}

// ConnectionRegistry counts live connections per user.
type ConnectionRegistry interface {
	Register(ctx context.Context, id domain.UserID) (int64, error)
	// Deregister reports whether the user's last connection just closed.
	Deregister(ctx context.Context, id domain.UserID) (wasLast bool, err error)
}

// KVStore is a string key-value store with per-key expiry.
type KVStore interface {
	// Set stores value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan returns one page of keys matching a glob pattern; a zero next cursor ends the scan.
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)
}

// NewMessage is an append request against a user's chat.
type NewMessage struct {
	UserID     domain.UserID // chat owner
	SenderID   domain.UserID
	SenderRole string
	Type       domain.MessageType
	Content    string
	MediaIDs   []string
}

// MessageStore durably appends chat and call-history entries.
type MessageStore interface {
	Append(ctx context.Context, msg NewMessage) (*domain.Message, error)
}

// CallStore owns every call session, at most one per end-user. Each
// transition is evaluated against the stored state at mutation time.
type CallStore interface {
	Offer(ctx context.Context, caller domain.Principal, conn domain.ConnID) (domain.CallSession, error)
	Answer(ctx context.Context, staff domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error)
	// Relay authorizes an ICE candidate from actor on the session of user.
	Relay(ctx context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error)
	// End removes the session of user; ended is false when there was none.
	End(ctx context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (s domain.CallSession, ended bool, err error)
	Get(ctx context.Context, user domain.UserID) (domain.CallSession, bool, error)
	// Owned lists the users whose session may have conn as one of its legs.
	Owned(ctx context.Context, conn domain.ConnID) ([]domain.UserID, error)
	// Release removes the session of user only if conn is still one of its legs.
	Release(ctx context.Context, user domain.UserID, conn domain.ConnID) (domain.CallSession, bool, error)
}

// UserLocker serializes work on one user: call transitions with their
// history and delivery, and connection counting with presence.
type UserLocker interface {
	Lock(ctx context.Context, id domain.UserID) (unlock func(), err error)
}
