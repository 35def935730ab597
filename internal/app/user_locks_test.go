package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserLocksSerializeOneUser(t *testing.T) {
	ctx := context.Background()
	l := NewUserLocks()

	unlock, err := l.Lock(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan func())
	go func() {
		u, err := l.Lock(ctx, "alice")
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		acquired <- u
	}()

	other, err := l.Lock(ctx, "bob")
	if err != nil {
		t.Fatalf("another user must not wait: %v", err)
	}
	other()

	select {
	case <-acquired:
		t.Fatal("second lock on alice acquired while held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	unlock()
	select {
	case u := <-acquired:
		u()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	if l.Len() != 0 {
		t.Fatalf("idle locks should be dropped, got %d", l.Len())
	}
}

func TestUserLocksHonourContext(t *testing.T) {
	l := NewUserLocks()
	unlock, _ := l.Lock(context.Background(), "alice")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
