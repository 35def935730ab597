// Package orch is the signaling gateway core: it owns the authenticated
// connection lifecycle and turns protocol events into call, chat and
// presence transitions. It knows nothing about the transport.
package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/coachline/internal/app"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/dkeye/coachline/internal/observability"
	"github.com/rs/zerolog/log"
)

const (
	defaultCleanupTimeout = 10 * time.Second
	lockWait              = 5 * time.Second
)

type Orchestrator struct {
	Registry core.ConnectionRegistry
	Rooms    core.RoomRouter
	Calls    core.CallStore
	// Locks orders work per user: a call transition, its history record and
	// its delivery happen as one step, and so do connection counting and presence.
	Locks    core.UserLocker
	Presence *app.Presence
	Chat     *app.ChatService
	Limiter  *app.RateLimiter
	Metrics  *observability.Metrics

	// CleanupTimeout bounds the store calls of disconnect cleanup.
	CleanupTimeout time.Duration
}

// OnConnect registers an authenticated connection and joins its rooms.
// A registry failure rejects the connection before it joins anything.
func (o *Orchestrator) OnConnect(ctx context.Context, ms core.MemberSession) error {
	m := ms.Meta()
	p := m.Principal
	unlock, err := o.lock(ctx, p.ID)
	if err != nil {
		return err
	}
	defer unlock()
	n, err := o.Registry.Register(ctx, p.ID)
	if err != nil {
		return err
	}

	o.Rooms.Join(domain.HomeRoom(p), ms)
	o.Rooms.Join(domain.ConnRoom(m.Conn), ms)
	o.Metrics.ConnectionOpened(string(p.Role))

	if err := o.Presence.Heartbeat(ctx, p.ID); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("user", string(p.ID)).Msg("connect heartbeat failed")
	}
	log.Info().Str("module", "orch").Str("conn", string(m.Conn)).Str("user", string(p.ID)).Str("role", string(p.Role)).Int64("connections", n).Msg("connected")
	return nil
}

// OnDisconnect runs the full cleanup of a closed connection. It never fails:
// every step is attempted and failures are logged.
func (o *Orchestrator) OnDisconnect(ctx context.Context, m *domain.Member) {
	timeout := o.CleanupTimeout
	if timeout <= 0 {
		timeout = defaultCleanupTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	p := m.Principal
	o.Rooms.Leave(m.Conn)
	o.Metrics.ConnectionClosed(string(p.Role))

	o.releaseCalls(ctx, m)

	unlock := o.lockForCleanup(ctx, p.ID)
	defer unlock()
	last, err := o.Registry.Deregister(ctx, p.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user", string(p.ID)).Msg("deregister failed")
		return
	}
	if last {
		o.Limiter.Forget(p.ID)
		if err := o.Presence.MarkOffline(ctx, p.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("user", string(p.ID)).Msg("mark offline failed")
		}
	}
	log.Info().Str("module", "orch").Str("conn", string(m.Conn)).Str("user", string(p.ID)).Bool("last", last).Msg("disconnected")
}

// releaseCalls force-ends every session the closing connection takes part in.
func (o *Orchestrator) releaseCalls(ctx context.Context, m *domain.Member) {
	users, err := o.Calls.Owned(ctx, m.Conn)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("conn", string(m.Conn)).Msg("list owned calls failed")
		return
	}
	for _, user := range users {
		unlock := o.lockForCleanup(ctx, user)
		s, ok, err := o.Calls.Release(ctx, user, m.Conn)
		switch {
		case err != nil:
			log.Error().Err(err).Str("module", "orch").Str("user", string(user)).Str("conn", string(m.Conn)).Msg("release call failed")
		case ok:
			o.finishCall(ctx, s, m.Principal, "disconnected")
		}
		unlock()
	}
}

func (o *Orchestrator) lock(ctx context.Context, id domain.UserID) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	unlock, err := o.Locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}
	return unlock, nil
}

// lockForCleanup never fails: cleanup goes ahead unordered when the lock
// cannot be taken in time.
func (o *Orchestrator) lockForCleanup(ctx context.Context, id domain.UserID) func() {
	unlock, err := o.lock(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user", string(id)).Msg("cleanup without user lock")
		return func() {}
	}
	return unlock
}

// Heartbeat refreshes the sender's presence.
func (o *Orchestrator) Heartbeat(ctx context.Context, m *domain.Member) error {
	return o.Presence.Heartbeat(ctx, m.Principal.ID)
}

// touch is the opportunistic heartbeat after chat or call activity.
func (o *Orchestrator) touch(ctx context.Context, p domain.Principal) {
	if err := o.Presence.Heartbeat(ctx, p.ID); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("user", string(p.ID)).Msg("heartbeat failed")
	}
}

func (o *Orchestrator) allow(p domain.Principal) error {
	if !o.Limiter.Allow(p.ID) {
		return domain.Errorf(domain.KindForbidden, "rate limit exceeded")
	}
	return nil
}

func (o *Orchestrator) emit(room domain.RoomName, event string, data any) {
	f, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode event")
		return
	}
	res := o.Rooms.Broadcast(room, f)
	log.Debug().Str("module", "orch").Str("event", event).Str("room", string(room)).Int("sent_to", res.SendTo).Msg("emit")
}

// inconsistent logs a store write that failed after the in-memory transition was applied.
func (o *Orchestrator) inconsistent(err error, op string, user domain.UserID) {
	o.Metrics.Inconsistency(op)
	log.Warn().Err(err).Str("module", "orch").Str("inconsistency", op).Str("user", string(user)).Msg("store write failed after transition")
}
