package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChatService validates and persists chat messages and call-history entries.
// Delivery is the caller's job.
type ChatService struct {
	store core.MessageStore
}

func NewChatService(store core.MessageStore) *ChatService {
	return &ChatService{store: store}
}

// Send appends a text message to the chat of the resolved user.
// End-users always write into their own chat; staff must name the user.
func (c *ChatService) Send(ctx context.Context, sender domain.Principal, target domain.UserID, content string, mediaIDs []string) (*domain.Message, error) {
	owner := sender.ID
	if sender.IsStaff() {
		if target == "" {
			return nil, domain.Errorf(domain.KindBadRequest, "Target userId is required")
		}
		owner = target
	}
	content = strings.TrimSpace(content)
	media := compactIDs(mediaIDs)
	if content == "" && len(media) == 0 {
		return nil, domain.Errorf(domain.KindBadRequest, "Message content is required")
	}
	msg, err := c.store.Append(ctx, core.NewMessage{
		UserID:     owner,
		SenderID:   sender.ID,
		SenderRole: sender.SenderRole(),
		Type:       domain.MessageText,
		Content:    content,
		MediaIDs:   media,
	})
	if err != nil {
		return nil, fmt.Errorf("append chat message: %w", err)
	}
	return msg, nil
}

// RecordCall appends a call-history entry tagged with outcome to the chat of s.UserID.
func (c *ChatService) RecordCall(ctx context.Context, s domain.CallSession, actor domain.Principal, outcome domain.CallOutcome) (*domain.Message, error) {
	msg, err := c.store.Append(ctx, core.NewMessage{
		UserID:     s.UserID,
		SenderID:   actor.ID,
		SenderRole: actor.SenderRole(),
		Type:       domain.MessageCall,
		Content:    string(outcome),
	})
	if err != nil {
		return nil, fmt.Errorf("append call history: %w", err)
	}
	log.Debug().Str("module", "app.chat").Str("user", string(s.UserID)).Str("outcome", string(outcome)).Str("id", msg.ID).Msg("call history recorded")
	return msg, nil
}

func compactIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// UserMessageView is the chat:message shape delivered to an end-user room.
type UserMessageView struct {
	ID          string             `json:"id"`
	MessageType domain.MessageType `json:"messageType"`
	Content     string             `json:"content"`
	Media       []string           `json:"media,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	SenderType  string             `json:"senderType"`
	IsMine      bool               `json:"isMine"`
}

// StaffMessageView is the chat:message shape delivered to the staff room.
type StaffMessageView struct {
	ID          string             `json:"id"`
	ChatID      string             `json:"chatId"`
	SenderID    string             `json:"senderId"`
	SenderRole  string             `json:"senderRole"`
	MessageType domain.MessageType `json:"messageType"`
	Content     string             `json:"content"`
	Media       []string           `json:"media,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func UserView(viewer domain.UserID, m *domain.Message) UserMessageView {
	senderType := domain.TitleTrainer
	if m.SenderRole == domain.TitleUser {
		senderType = domain.TitleUser
	}
	return UserMessageView{
		ID:          m.ID,
		MessageType: m.MessageType,
		Content:     m.Content,
		Media:       m.Media,
		CreatedAt:   m.CreatedAt,
		SenderType:  senderType,
		IsMine:      m.SenderID == viewer,
	}
}

func StaffView(m *domain.Message) StaffMessageView {
	return StaffMessageView{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    string(m.SenderID),
		SenderRole:  m.SenderRole,
		MessageType: m.MessageType,
		Content:     m.Content,
		Media:       m.Media,
		CreatedAt:   m.CreatedAt,
	}
}
