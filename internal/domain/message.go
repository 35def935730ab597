package domain

import "time"

const previewLen = 280

type MessageType string

const (
	MessageText MessageType = "text"
	MessageCall MessageType = "call"
)

// Message is a stored chat or call-history entry. Never mutated after creation.
type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chatId"`
	SenderID    UserID      `json:"senderId"`
	SenderRole  string      `json:"senderRole"`
	MessageType MessageType `json:"messageType"`
	Content     string      `json:"content,omitempty"`
	Media       []string    `json:"media,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// PresenceSnapshot is derived on read, never stored.
type PresenceSnapshot struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}

// Preview is the chat list teaser of m, cut to 280 runes.
func (m Message) Preview() string {
	text := m.Content
	switch {
	case m.MessageType == MessageCall:
		text = "[call] " + m.Content
	case text == "" && len(m.Media) > 0:
		text = "[media]"
	}
	r := []rune(text)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}
