package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/coachline/internal/adapters/memstore"
	"github.com/dkeye/coachline/internal/domain"
)

func TestChatSendTargets(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMessageStore(nil)
	c := NewChatService(store)

	msg, err := c.Send(ctx, alice, "someone-else", "  hello  ", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "hello" || msg.SenderRole != "user" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if got := store.Messages("alice"); len(got) != 1 {
		t.Fatalf("user message should land in own chat, got %d", len(got))
	}

	if _, err := c.Send(ctx, coach, "", "hi", nil); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("staff without target should be bad request, got %v", err)
	}
	reply, err := c.Send(ctx, coach, "alice", "hi there", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.ChatID != msg.ChatID || reply.SenderRole != "trainer" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestChatSendRejectsEmpty(t *testing.T) {
	c := NewChatService(memstore.NewMessageStore(nil))
	_, err := c.Send(context.Background(), alice, "", "   ", []string{" "})
	if !errors.Is(err, domain.ErrBadRequest) || err.Error() != "Message content is required" {
		t.Fatalf("expected bad request, got %v", err)
	}
	if _, err := c.Send(context.Background(), alice, "", "", []string{"m1"}); err != nil {
		t.Fatalf("media-only message should be accepted: %v", err)
	}
}

func TestMessageViews(t *testing.T) {
	ctx := context.Background()
	c := NewChatService(memstore.NewMessageStore(nil))
	msg, _ := c.Send(ctx, coach, "alice", "go", nil)

	uv := UserView("alice", msg)
	if uv.SenderType != "trainer" || uv.IsMine {
		t.Fatalf("unexpected user view %+v", uv)
	}
	sv := StaffView(msg)
	if sv.SenderID != "coach" || sv.ChatID != msg.ChatID || sv.MessageType != domain.MessageText {
		t.Fatalf("unexpected staff view %+v", sv)
	}

	mine, _ := c.Send(ctx, alice, "", "me", nil)
	if v := UserView("alice", mine); !v.IsMine || v.SenderType != "user" {
		t.Fatalf("unexpected own view %+v", v)
	}
}

func TestRecordCall(t *testing.T) {
	store := memstore.NewMessageStore(nil)
	c := NewChatService(store)
	s := domain.CallSession{UserID: "alice", Status: domain.CallRinging}

	msg, err := c.RecordCall(context.Background(), s, alice, domain.CallMissed)
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageType != domain.MessageCall || msg.Content != "missed" {
		t.Fatalf("unexpected history entry %+v", msg)
	}
}
