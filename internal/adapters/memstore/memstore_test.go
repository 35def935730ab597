package memstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKVExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	kv := NewKV(clk.now)

	if err := kv.Set(ctx, "presence:online:u1", "1", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, "presence:last-seen:u1", "x", 0); err != nil {
		t.Fatal(err)
	}
	if ok, _ := kv.Exists(ctx, "presence:online:u1"); !ok {
		t.Fatal("expected key to exist before expiry")
	}

	clk.advance(time.Minute)
	if ok, _ := kv.Exists(ctx, "presence:online:u1"); ok {
		t.Fatal("expected key to expire")
	}
	if v, ok, _ := kv.Get(ctx, "presence:last-seen:u1"); !ok || v != "x" {
		t.Fatalf("persistent key lost: %q %v", v, ok)
	}
}

func TestKVScanPaginates(t *testing.T) {
	ctx := context.Background()
	kv := NewKV(nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_ = kv.Set(ctx, "presence:online:"+id, "1", time.Minute)
	}
	_ = kv.Set(ctx, "presence:last-seen:a", "x", 0)

	var all []string
	var cursor uint64
	pages := 0
	for {
		keys, next, err := kv.Scan(ctx, cursor, "presence:online:*", 2)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		all = append(all, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 keys, got %v", all)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestMessageStoreAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(nil)

	first, err := s.Append(ctx, core.NewMessage{UserID: "u1", SenderID: "u1", SenderRole: "user", Type: domain.MessageText, Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.Append(ctx, core.NewMessage{UserID: "u1", SenderID: "t1", SenderRole: "trainer", Type: domain.MessageText, Content: strings.Repeat("x", 300)})
	other, _ := s.Append(ctx, core.NewMessage{UserID: "u2", SenderID: "u2", SenderRole: "user", Type: domain.MessageText, Content: "yo"})

	if first.ChatID != second.ChatID {
		t.Fatal("messages of one user should share a chat")
	}
	if first.ChatID == other.ChatID {
		t.Fatal("different users should have different chats")
	}
	if got := s.Messages("u1"); len(got) != 2 || got[0].ID != first.ID {
		t.Fatalf("unexpected history %+v", got)
	}
	if p, _ := s.LastPreview("u1"); len([]rune(p)) != 280 {
		t.Fatalf("expected 280-rune preview, got %d", len(p))
	}
}
