package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestMessageStoreAppend(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMessageStore(db)
	store.now = func() time.Time { return now }

	long := strings.Repeat("a", 300)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chats").
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("chat-1"))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "chat-1", "t1", "trainer", "text", long, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE chats SET last_message_at").
		WithArgs("chat-1", now, strings.Repeat("a", 280)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := store.Append(context.Background(), core.NewMessage{
		UserID:     "u1",
		SenderID:   "t1",
		SenderRole: "trainer",
		Type:       domain.MessageText,
		Content:    long,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ChatID != "chat-1" || msg.ID == "" || !msg.CreatedAt.Equal(now) {
		t.Fatalf("unexpected message %+v", msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMessageStoreAppendRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewMessageStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chats").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("chat-1"))
	mock.ExpectExec("INSERT INTO messages").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.Append(context.Background(), core.NewMessage{UserID: "u1", SenderID: "u1", SenderRole: "user", Type: domain.MessageCall, Content: "started"})
	if err == nil || !strings.Contains(err.Error(), "insert message") {
		t.Fatalf("expected insert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSessionValid(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		want      bool
		wantErr   bool
	}{
		{
			name: "owned session",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT user_id FROM user_sessions").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
			},
			want: true,
		},
		{
			name: "session of another user",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT user_id FROM user_sessions").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u2"))
			},
			want: false,
		},
		{
			name: "missing session",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT user_id FROM user_sessions").
					WithArgs("s1").
					WillReturnError(sql.ErrNoRows)
			},
			want: false,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT user_id FROM user_sessions").
					WithArgs("s1").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.setupMock(mock)

			got, err := NewSessionChecker(db).SessionValid(context.Background(), "s1", "u1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestEnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chats").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
