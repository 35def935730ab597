package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/google/uuid"
)

type chat struct {
	id            string
	lastMessageAt time.Time
	preview       string
}

// MessageStore keeps one chat per end-user and appends messages in call order.
type MessageStore struct {
	mu       sync.Mutex
	chats    map[domain.UserID]*chat
	messages []domain.Message
	now      func() time.Time
}

func NewMessageStore(now func() time.Time) *MessageStore {
	if now == nil {
		now = time.Now
	}
	return &MessageStore{chats: make(map[domain.UserID]*chat), now: now}
}

func (s *MessageStore) Append(_ context.Context, in core.NewMessage) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[in.UserID]
	if !ok {
		c = &chat{id: uuid.NewString()}
		s.chats[in.UserID] = c
	}
	msg := domain.Message{
		ID:          uuid.NewString(),
		ChatID:      c.id,
		SenderID:    in.SenderID,
		SenderRole:  in.SenderRole,
		MessageType: in.Type,
		Content:     in.Content,
		Media:       slices.Clone(in.MediaIDs),
		CreatedAt:   s.now().UTC(),
	}
	s.messages = append(s.messages, msg)
	c.lastMessageAt = msg.CreatedAt
	c.preview = msg.Preview()

	out := msg
	return &out, nil
}

// Messages returns a copy of the chat history of user in append order.
func (s *MessageStore) Messages(user domain.UserID) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[user]
	if !ok {
		return nil
	}
	var out []domain.Message
	for _, m := range s.messages {
		if m.ChatID == c.id {
			out = append(out, m)
		}
	}
	return out
}

// LastPreview returns the chat preview text of user.
func (s *MessageStore) LastPreview(user domain.UserID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[user]
	if !ok {
		return "", false
	}
	return c.preview, true
}
