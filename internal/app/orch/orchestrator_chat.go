package orch

import (
	"context"

	"github.com/dkeye/coachline/internal/app"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
)

// ChatRequest is a normalized chat:send. UserID is required for staff senders.
type ChatRequest struct {
	UserID   domain.UserID
	Content  string
	MediaIDs []string
}

// SendChat stores a message and delivers it to the chat owner's room and the staff room.
func (o *Orchestrator) SendChat(ctx context.Context, m *domain.Member, req ChatRequest) error {
	p := m.Principal
	if err := o.allow(p); err != nil {
		return err
	}
	msg, err := o.Chat.Send(ctx, p, req.UserID, req.Content, req.MediaIDs)
	if err != nil {
		return err
	}
	o.touch(ctx, p)

	owner := p.ID
	if p.IsStaff() {
		owner = req.UserID
	}
	o.emit(domain.UserRoom(owner), core.EventChatMessage, app.UserView(owner, msg))
	o.emit(domain.StaffRoom, core.EventChatMessage, app.StaffView(msg))
	return nil
}
