package core

import "encoding/json"

// Protocol event names.
const (
	EventAuth         = "auth"
	EventConnectError = "connect_error"
	EventAck          = "ack"
	EventPing         = "ping"
	EventPong         = "pong"
	EventHeartbeat    = "heartbeat"

	EventChatSend    = "chat:send"
	EventChatMessage = "chat:message"

	EventCallOffer  = "call:offer"
	EventCallAnswer = "call:answer"
	EventCallICE    = "call:ice-candidate"
	EventCallEnd    = "call:end"
)

// Envelope is the wire form of every frame in both directions.
// ID is echoed back on the ack of a client event that carried one.
type Envelope struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data any             `json:"data,omitempty"`
}

// EncodeEvent builds a server event frame.
func EncodeEvent(event string, data any) (Frame, error) {
	return json.Marshal(outbound{Type: event, Data: data})
}

// AckStatus is the data of an ack frame.
type AckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// EncodeAck builds the ack of the client event with the given id.
func EncodeAck(id json.RawMessage, status AckStatus) (Frame, error) {
	return json.Marshal(outbound{Type: EventAck, ID: id, Data: status})
}
