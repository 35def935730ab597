package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallManager is the process-local CallStore.
// Each transition is a single check-and-set under mu, evaluated against the
// state at mutation time rather than what a handler observed earlier.
type CallManager struct {
	mu       sync.Mutex
	sessions map[domain.UserID]*domain.CallSession
	now      func() time.Time
}

func NewCallManager(now func() time.Time) *CallManager {
	if now == nil {
		now = time.Now
	}
	return &CallManager{
		sessions: make(map[domain.UserID]*domain.CallSession),
		now:      now,
	}
}

// Offer moves the caller's session from absent to ringing.
func (m *CallManager) Offer(_ context.Context, caller domain.Principal, conn domain.ConnID) (domain.CallSession, error) {
	s, err := domain.NewCall(caller, conn, m.now())
	if err != nil {
		return domain.CallSession{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[caller.ID]; ok {
		return domain.CallSession{}, domain.Errorf(domain.KindConflict, "call already in progress")
	}
	m.sessions[caller.ID] = &s
	log.Info().Str("module", "app.calls").Str("user", string(caller.ID)).Str("conn", string(conn)).Msg("call ringing")
	return s, nil
}

// Answer moves a ringing session to active; only the first staff answer wins.
func (m *CallManager) Answer(_ context.Context, staff domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error) {
	if err := domain.CanAnswer(staff); err != nil {
		return domain.CallSession{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok {
		return domain.CallSession{}, domain.Errorf(domain.KindNotFound, "call not found")
	}
	if err := s.Attach(staff, conn); err != nil {
		return domain.CallSession{}, err
	}
	log.Info().Str("module", "app.calls").Str("user", string(user)).Str("staff", string(staff.ID)).Str("conn", string(conn)).Msg("call answered")
	return *s, nil
}

func (m *CallManager) Relay(_ context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok {
		return domain.CallSession{}, domain.Errorf(domain.KindNotFound, "call not found")
	}
	if err := s.Authorize(actor, conn); err != nil {
		return domain.CallSession{}, err
	}
	return *s, nil
}

// End removes the session of user. Ending an absent session is a no-op.
func (m *CallManager) End(_ context.Context, actor domain.Principal, conn domain.ConnID, user domain.UserID) (domain.CallSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok {
		return domain.CallSession{}, false, nil
	}
	if err := s.Authorize(actor, conn); err != nil {
		return domain.CallSession{}, false, err
	}
	delete(m.sessions, user)
	log.Info().Str("module", "app.calls").Str("user", string(user)).Str("by", string(actor.ID)).Str("status", string(s.Status)).Msg("call ended")
	return *s, true, nil
}

func (m *CallManager) Get(_ context.Context, user domain.UserID) (domain.CallSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok {
		return domain.CallSession{}, false, nil
	}
	return *s, true, nil
}

func (m *CallManager) Owned(_ context.Context, conn domain.ConnID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserID
	for user, s := range m.sessions {
		if s.OwnedBy(conn) {
			out = append(out, user)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Release matches by connection rather than by user, so another device of
// the same user closing leaves the call alone.
func (m *CallManager) Release(_ context.Context, user domain.UserID, conn domain.ConnID) (domain.CallSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok || !s.OwnedBy(conn) {
		return domain.CallSession{}, false, nil
	}
	delete(m.sessions, user)
	log.Info().Str("module", "app.calls").Str("user", string(user)).Str("conn", string(conn)).Str("status", string(s.Status)).Msg("call released on disconnect")
	return *s, true, nil
}

func (m *CallManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
