package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MessageStore appends messages to per-user chats.
type MessageStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db, now: time.Now}
}

// Append creates the chat on first use, inserts the message and refreshes
// the chat preview in one transaction.
func (s *MessageStore) Append(ctx context.Context, in core.NewMessage) (*domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var chatID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO chats (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, uuid.NewString(), string(in.UserID)).Scan(&chatID)
	if err != nil {
		return nil, fmt.Errorf("upsert chat: %w", err)
	}

	msg := &domain.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		SenderID:    in.SenderID,
		SenderRole:  in.SenderRole,
		MessageType: in.Type,
		Content:     in.Content,
		Media:       in.MediaIDs,
		CreatedAt:   s.now().UTC(),
	}
	media := msg.Media
	if media == nil {
		media = []string{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, sender_role, message_type, content, media, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		msg.ID,
		msg.ChatID,
		string(msg.SenderID),
		msg.SenderRole,
		string(msg.MessageType),
		msg.Content,
		pq.Array(media),
		msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chats SET last_message_at = $2, last_message_preview = $3 WHERE id = $1
	`, chatID, msg.CreatedAt, msg.Preview())
	if err != nil {
		return nil, fmt.Errorf("update chat preview: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}
