package domain

import "time"

type CallStatus string

const (
	CallRinging CallStatus = "ringing"
	CallActive  CallStatus = "active"
)

// CallSession is one in-flight or active call for an end-user.
// Values handed out by call stores are copies.
type CallSession struct {
	UserID        UserID     `json:"userId"`
	InitiatorID   UserID     `json:"initiatorId"`
	InitiatorConn ConnID     `json:"-"`
	Status        CallStatus `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	StaffID       UserID     `json:"staffId,omitempty"`
	StaffConn     ConnID     `json:"-"`
}

// NewCall opens a ringing session for caller. Only end-users start calls.
func NewCall(caller Principal, conn ConnID, now time.Time) (CallSession, error) {
	if caller.Role != RoleUser {
		return CallSession{}, Errorf(KindForbidden, "only users can start a call")
	}
	return CallSession{
		UserID:        caller.ID,
		InitiatorID:   caller.ID,
		InitiatorConn: conn,
		Status:        CallRinging,
		StartedAt:     now,
	}, nil
}

// CanAnswer rejects non-staff answerers before any session lookup.
func CanAnswer(p Principal) error {
	if !p.IsStaff() {
		return Errorf(KindForbidden, "only staff can answer a call")
	}
	return nil
}

// Attach stamps the answering staff connection; a session is answered once.
func (s *CallSession) Attach(staff Principal, conn ConnID) error {
	if err := CanAnswer(staff); err != nil {
		return err
	}
	if s.Status == CallActive {
		return Errorf(KindConflict, "already answered")
	}
	s.Status = CallActive
	s.StaffID = staff.ID
	s.StaffConn = conn
	return nil
}

// Authorize: users act on their own session only; once a staff connection is
// attached, no other staff connection may act on the session.
func (s CallSession) Authorize(actor Principal, conn ConnID) error {
	if !actor.IsStaff() {
		if actor.ID != s.UserID {
			return Errorf(KindForbidden, "not your call")
		}
		return nil
	}
	if s.Attached() && s.StaffConn != conn {
		return Errorf(KindForbidden, "call is handled by another staff member")
	}
	return nil
}

func (s CallSession) Attached() bool { return s.StaffConn != "" }

// OwnedBy reports whether conn is one of the two call legs.
func (s CallSession) OwnedBy(conn ConnID) bool {
	return conn != "" && (s.InitiatorConn == conn || s.StaffConn == conn)
}

// Legs are the connections taking part in the session.
func (s CallSession) Legs() []ConnID {
	legs := []ConnID{s.InitiatorConn}
	if s.Attached() {
		legs = append(legs, s.StaffConn)
	}
	return legs
}

// CallOutcome is the history tag of a call transition.
type CallOutcome string

const (
	CallStarted  CallOutcome = "started"
	CallAnswered CallOutcome = "answered"
	CallEnded    CallOutcome = "ended"
	CallMissed   CallOutcome = "missed"
)

// EndOutcome is the outcome recorded when a session in status s is torn down.
func EndOutcome(s CallStatus) CallOutcome {
	if s == CallActive {
		return CallEnded
	}
	return CallMissed
}
