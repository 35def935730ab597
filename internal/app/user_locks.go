package app

import (
	"context"
	"sync"

	"github.com/dkeye/coachline/internal/domain"
)

// UserLocks is the process-local UserLocker: one mutex per user, created on
// demand and dropped when nobody holds or waits for it.
type UserLocks struct {
	mu    sync.Mutex
	locks map[domain.UserID]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[domain.UserID]*userLock)}
}

func (l *UserLocks) Lock(ctx context.Context, id domain.UserID) (func(), error) {
	l.mu.Lock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(id, ul)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-ul.sem
			l.release(id, ul)
		})
	}, nil
}

func (l *UserLocks) release(id domain.UserID, ul *userLock) {
	l.mu.Lock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

// Len is the number of users with a held or awaited lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
