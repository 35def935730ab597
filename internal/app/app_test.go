package app

import (
	"sync"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
)

// fakeSignal records frames and can simulate a full send queue.
type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeSignal) TrySend(b core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSignal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSignal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newSession(id domain.UserID, role domain.Role, conn domain.ConnID) (core.MemberSession, *fakeSignal) {
	sig := &fakeSignal{}
	meta := domain.NewMember(domain.Principal{ID: id, Role: role}, conn)
	return core.NewMemberSession(meta, sig), sig
}

var (
	alice = domain.Principal{ID: "alice", Role: domain.RoleUser, Title: domain.TitleUser}
	coach = domain.Principal{ID: "coach", Role: domain.RoleStaff, Title: domain.TitleTrainer}
	admin = domain.Principal{ID: "admin", Role: domain.RoleStaff, Title: domain.TitleAdmin}
)
