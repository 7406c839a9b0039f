package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Session states.
const (
	SessionActive   = "active"
	SessionInactive = "inactive"
)

// ConversationSession is the active-story pointer tying one user to at most
// one twin-scoped in-progress story. At most one active row exists per
// (user, twin); CurrentStoryID is empty exactly when no story is being told.
type ConversationSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TwinID         string    `json:"twin_id"`
	CurrentStoryID string    `json:"current_story_id,omitempty"`
	SessionState   string    `json:"session_state"`
	StartedAt      time.Time `json:"started_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// GetOrCreateSession returns the active session for (user, twin), creating
// one if none exists.
func (db *DB) GetOrCreateSession(ctx context.Context, userID, twinID string) (*ConversationSession, error) {
	s, err := db.activeSessionForTwin(ctx, userID, twinID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO conversation_sessions (id, user_id, twin_id, session_state) VALUES (?, ?, ?, 'active')`,
		id, userID, twinID,
	)
	if err != nil {
		return nil, err
	}
	return db.activeSessionForTwin(ctx, userID, twinID)
}

// ActiveSession returns the user's single active session across twins, or
// nil, nil when the user has not selected a twin.
func (db *DB) ActiveSession(ctx context.Context, userID string) (*ConversationSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, twin_id, current_story_id, session_state, started_at, last_activity
		 FROM conversation_sessions
		 WHERE user_id = ? AND session_state = 'active'
		 ORDER BY last_activity DESC LIMIT 1`,
		userID,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// SetActiveTwin deactivates any previously active session for the user, then
// creates a fresh active session for the chosen twin (deactivate-then-insert,
// preserving the only-one-active invariant).
func (db *DB) SetActiveTwin(ctx context.Context, userID, twinID string) (*ConversationSession, error) {
	_, err := db.ExecContext(ctx,
		`UPDATE conversation_sessions SET session_state = 'inactive', current_story_id = NULL, last_activity = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND session_state = 'active'`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO conversation_sessions (id, user_id, twin_id, session_state) VALUES (?, ?, ?, 'active')`,
		id, userID, twinID,
	)
	if err != nil {
		return nil, err
	}
	return db.activeSessionForTwin(ctx, userID, twinID)
}

// SetSessionStory points the active (user, twin) session at a story.
func (db *DB) SetSessionStory(ctx context.Context, userID, twinID, storyID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE conversation_sessions SET current_story_id = ?, last_activity = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND twin_id = ? AND session_state = 'active'`,
		storyID, userID, twinID,
	)
	return err
}

// ClearSessionStory nulls the active (user, twin) session's story pointer.
func (db *DB) ClearSessionStory(ctx context.Context, userID, twinID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE conversation_sessions SET current_story_id = NULL, last_activity = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND twin_id = ? AND session_state = 'active'`,
		userID, twinID,
	)
	return err
}

// DeactivateTwinSession deactivates only this twin's active session for the
// user, clearing its story pointer. Other twins' sessions are untouched.
func (db *DB) DeactivateTwinSession(ctx context.Context, userID, twinID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE conversation_sessions SET session_state = 'inactive', current_story_id = NULL, last_activity = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND twin_id = ? AND session_state = 'active'`,
		userID, twinID,
	)
	return err
}

func (db *DB) activeSessionForTwin(ctx context.Context, userID, twinID string) (*ConversationSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, twin_id, current_story_id, session_state, started_at, last_activity
		 FROM conversation_sessions
		 WHERE user_id = ? AND twin_id = ? AND session_state = 'active'
		 ORDER BY started_at DESC LIMIT 1`,
		userID, twinID,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func scanSession(row rowScanner) (*ConversationSession, error) {
	var s ConversationSession
	var storyID sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.TwinID, &storyID, &s.SessionState, &s.StartedAt, &s.LastActivity); err != nil {
		return nil, err
	}
	if storyID.Valid {
		s.CurrentStoryID = storyID.String
	}
	return &s, nil
}
