// Package bus fans room broadcasts out across gateway processes over NATS.
package bus

import (
	"fmt"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const roomHeader = "Coachline-Room"

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSRouter is a RoomRouter whose broadcasts go through one NATS subject.
// Membership stays local; every process, the sender included, delivers a
// received frame to its own members of the room named in the header.
type NATSRouter struct {
	local   core.RoomRouter
	pub     publisher
	subject string
	sub     *nats.Subscription
}

func NewNATSRouter(nc *nats.Conn, subject string, local core.RoomRouter) (*NATSRouter, error) {
	r := &NATSRouter{local: local, pub: nc, subject: subject}
	sub, err := nc.Subscribe(subject, r.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	r.sub = sub
	log.Info().Str("module", "bus").Str("subject", subject).Msg("room fan-out subscribed")
	return r, nil
}

func (r *NATSRouter) Join(room domain.RoomName, ms core.MemberSession) { r.local.Join(room, ms) }

func (r *NATSRouter) Leave(conn domain.ConnID) { r.local.Leave(conn) }

func (r *NATSRouter) List() []core.RoomInfo { return r.local.List() }

// Broadcast publishes the frame; delivery counts are not known at publish time.
// When publishing fails the frame is still delivered to local members.
func (r *NATSRouter) Broadcast(room domain.RoomName, data core.Frame) core.PublishResult {
	msg := nats.NewMsg(r.subject)
	msg.Header.Set(roomHeader, string(room))
	msg.Data = data
	if err := r.pub.PublishMsg(msg); err != nil {
		log.Error().Err(err).Str("module", "bus").Str("room", string(room)).Msg("publish failed, delivering locally")
		return r.local.Broadcast(room, data)
	}
	return core.PublishResult{}
}

func (r *NATSRouter) handle(msg *nats.Msg) {
	room := msg.Header.Get(roomHeader)
	if room == "" {
		log.Warn().Str("module", "bus").Str("subject", msg.Subject).Msg("frame without room")
		return
	}
	r.local.Broadcast(domain.RoomName(room), core.Frame(msg.Data))
}

func (r *NATSRouter) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
