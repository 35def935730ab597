package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkeye/coachline/internal/domain"
)

// SessionChecker verifies the sessionId claim of access tokens.
type SessionChecker struct {
	db *sql.DB
}

func NewSessionChecker(db *sql.DB) *SessionChecker {
	return &SessionChecker{db: db}
}

// SessionValid reports whether the session exists, belongs to user and is neither revoked nor expired.
func (c *SessionChecker) SessionValid(ctx context.Context, sessionID string, user domain.UserID) (bool, error) {
	var owner string
	err := c.db.QueryRowContext(ctx, `
		SELECT user_id FROM user_sessions
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > now())
	`, sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return owner == string(user), nil
}
