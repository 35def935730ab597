package app

import (
	"context"
	"sync"
	"testing"
)

func TestRegistryLastConnection(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	if n, _ := r.Register(ctx, "u1"); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	if n, _ := r.Register(ctx, "u1"); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
	if last, _ := r.Deregister(ctx, "u1"); last {
		t.Fatal("first of two connections closing must not be last")
	}
	if last, _ := r.Deregister(ctx, "u1"); !last {
		t.Fatal("second connection closing must be last")
	}
	if r.Users() != 0 {
		t.Fatalf("entry should be removed, have %d users", r.Users())
	}
	if last, _ := r.Deregister(ctx, "u1"); last {
		t.Fatal("deregister without entry must not report last")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Register(ctx, "u1")
		}()
	}
	wg.Wait()

	lasts := 0
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if last, _ := r.Deregister(ctx, "u1"); last {
				mu.Lock()
				lasts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if lasts != 1 {
		t.Fatalf("expected exactly one last deregister, got %d", lasts)
	}
}
