package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
)

// OfferRequest is a normalized call:offer.
type OfferRequest struct {
	Offer json.RawMessage
}

// AnswerRequest is a normalized call:answer.
type AnswerRequest struct {
	UserID domain.UserID
	Answer json.RawMessage
}

// ICERequest is a normalized call:ice-candidate. UserID is ignored for end-users.
type ICERequest struct {
	UserID    domain.UserID
	Candidate json.RawMessage
}

// EndRequest is a normalized call:end. UserID is ignored for end-users.
type EndRequest struct {
	UserID domain.UserID
	Reason string
}

type callerView struct {
	ID   domain.UserID `json:"id"`
	Role domain.Role   `json:"role"`
}

type offerEvent struct {
	UserID domain.UserID   `json:"userId"`
	Offer  json.RawMessage `json:"offer"`
	Caller callerView      `json:"caller"`
}

type answerEvent struct {
	Answer json.RawMessage `json:"answer"`
	UserID domain.UserID   `json:"userId"`
}

type iceEvent struct {
	Candidate json.RawMessage `json:"candidate"`
	UserID    domain.UserID   `json:"userId"`
}

type endEvent struct {
	UserID  domain.UserID      `json:"userId"`
	EndedBy string             `json:"endedBy"`
	Reason  string             `json:"reason,omitempty"`
	Status  domain.CallOutcome `json:"status"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Offer opens a ringing call for the calling end-user and rings every staff connection.
func (o *Orchestrator) Offer(ctx context.Context, m *domain.Member, req OfferRequest) error {
	p := m.Principal
	if p.Role != domain.RoleUser {
		return domain.Errorf(domain.KindForbidden, "only users can start a call")
	}
	if !present(req.Offer) {
		return domain.Errorf(domain.KindBadRequest, "offer is required")
	}
	if err := o.allow(p); err != nil {
		return err
	}
	unlock, err := o.lock(ctx, p.ID)
	if err != nil {
		return err
	}
	s, err := o.Calls.Offer(ctx, p, m.Conn)
	if err != nil {
		unlock()
		return err
	}
	o.Metrics.CallTransition(string(domain.CallStarted))
	if _, err := o.Chat.RecordCall(ctx, s, p, domain.CallStarted); err != nil {
		o.inconsistent(err, "call-started", s.UserID)
	}
	o.emit(domain.StaffRoom, core.EventCallOffer, offerEvent{
		UserID: s.UserID,
		Offer:  req.Offer,
		Caller: callerView{ID: p.ID, Role: p.Role},
	})
	unlock()

	o.touch(ctx, p)
	return nil
}

// Answer attaches the answering staff connection; the first answer wins.
func (o *Orchestrator) Answer(ctx context.Context, m *domain.Member, req AnswerRequest) error {
	p := m.Principal
	if !p.IsStaff() {
		return domain.Errorf(domain.KindForbidden, "only staff can answer a call")
	}
	if req.UserID == "" {
		return domain.Errorf(domain.KindBadRequest, "userId is required")
	}
	if !present(req.Answer) {
		return domain.Errorf(domain.KindBadRequest, "answer is required")
	}
	unlock, err := o.lock(ctx, req.UserID)
	if err != nil {
		return err
	}
	s, err := o.Calls.Answer(ctx, p, m.Conn, req.UserID)
	if err != nil {
		unlock()
		return err
	}
	o.Metrics.CallTransition(string(domain.CallAnswered))
	if _, err := o.Chat.RecordCall(ctx, s, p, domain.CallAnswered); err != nil {
		o.inconsistent(err, "call-answered", s.UserID)
	}
	o.emit(domain.UserRoom(s.UserID), core.EventCallAnswer, answerEvent{Answer: req.Answer, UserID: s.UserID})
	unlock()

	o.touch(ctx, p)
	return nil
}

// ICE relays a candidate to the other leg of the call.
func (o *Orchestrator) ICE(ctx context.Context, m *domain.Member, req ICERequest) error {
	p := m.Principal
	if !present(req.Candidate) {
		return domain.Errorf(domain.KindBadRequest, "candidate is required")
	}
	user, err := callUser(p, req.UserID)
	if err != nil {
		return err
	}
	unlock, err := o.lock(ctx, user)
	if err != nil {
		return err
	}
	defer unlock()
	s, err := o.Calls.Relay(ctx, p, m.Conn, user)
	if err != nil {
		return err
	}

	ev := iceEvent{Candidate: req.Candidate, UserID: s.UserID}
	switch {
	case p.IsStaff():
		o.emit(domain.UserRoom(s.UserID), core.EventCallICE, ev)
	case s.Attached():
		o.emit(domain.ConnRoom(s.StaffConn), core.EventCallICE, ev)
	default:
		o.emit(domain.StaffRoom, core.EventCallICE, ev)
	}
	return nil
}

// End tears the call down. Ending a call that does not exist is a no-op.
func (o *Orchestrator) End(ctx context.Context, m *domain.Member, req EndRequest) error {
	p := m.Principal
	user, err := callUser(p, req.UserID)
	if err != nil {
		return err
	}
	unlock, err := o.lock(ctx, user)
	if err != nil {
		return err
	}
	s, ended, err := o.Calls.End(ctx, p, m.Conn, user)
	if ended {
		o.finishCall(ctx, s, p, req.Reason)
	}
	unlock()
	if err != nil || !ended {
		return err
	}
	o.touch(ctx, p)
	return nil
}

// finishCall records the outcome of a removed session and notifies both legs.
// The caller holds the user lock of s.UserID.
func (o *Orchestrator) finishCall(ctx context.Context, s domain.CallSession, actor domain.Principal, reason string) {
	outcome := domain.EndOutcome(s.Status)
	o.Metrics.CallTransition(string(outcome))
	if _, err := o.Chat.RecordCall(ctx, s, actor, outcome); err != nil {
		o.inconsistent(err, "call-"+string(outcome), s.UserID)
	}

	ev := endEvent{
		UserID:  s.UserID,
		EndedBy: endedBy(actor),
		Reason:  reason,
		Status:  outcome,
	}
	o.emit(domain.UserRoom(s.UserID), core.EventCallEnd, ev)
	if s.Attached() {
		o.emit(domain.ConnRoom(s.StaffConn), core.EventCallEnd, ev)
	} else {
		o.emit(domain.StaffRoom, core.EventCallEnd, ev)
	}
}

// callUser resolves whose call an event refers to: end-users always act on
// their own call, staff must name the user.
func callUser(p domain.Principal, requested domain.UserID) (domain.UserID, error) {
	if !p.IsStaff() {
		return p.ID, nil
	}
	if requested == "" {
		return "", domain.Errorf(domain.KindBadRequest, "userId is required")
	}
	return requested, nil
}

func endedBy(p domain.Principal) string {
	if p.IsStaff() {
		return domain.TitleTrainer
	}
	return domain.TitleUser
}
