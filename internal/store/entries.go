package store

import (
	"context"
	"database/sql"
	"time"
)

// ConversationEntry is one user turn in the per-user conversation log.
// Entries for different twins interleave in one ordered log; twin isolation
// is a per-read filter on twin_id, not separate storage. TwinResponse is
// filled by a second write after the reply is generated.
type ConversationEntry struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	TwinID       string     `json:"twin_id"`
	UserMessage  string     `json:"user_message"`
	Extracted    string     `json:"extracted"` // JSON snapshot of extracted facts
	TwinResponse string     `json:"twin_response,omitempty"`
	ResponseAt   *time.Time `json:"response_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AppendEntry inserts a user turn tagged with the twin it was addressed to.
func (db *DB) AppendEntry(ctx context.Context, userID, twinID, userMessage, extractedJSON string) (int64, error) {
	if extractedJSON == "" {
		extractedJSON = "{}"
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO conversation_entries (user_id, twin_id, user_message, extracted) VALUES (?, ?, ?, ?)`,
		userID, twinID, userMessage, extractedJSON,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// TwinEntries returns the user's entries for one twin in chronological order,
// newest-limited to limit (0 = all).
func (db *DB) TwinEntries(ctx context.Context, userID, twinID string, limit int) ([]ConversationEntry, error) {
	query := `SELECT id, user_id, twin_id, user_message, extracted, twin_response, response_at, created_at
		 FROM conversation_entries WHERE user_id = ? AND twin_id = ?
		 ORDER BY id DESC`
	args := []interface{}{userID, twinID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ConversationEntry
	for rows.Next() {
		var e ConversationEntry
		var resp sql.NullString
		var respAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.UserID, &e.TwinID, &e.UserMessage, &e.Extracted, &resp, &respAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		if resp.Valid {
			e.TwinResponse = resp.String
		}
		if respAt.Valid {
			t := respAt.Time
			e.ResponseAt = &t
		}
		out = append(out, e)
	}
	// Reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// FillTwinResponse writes the twin's reply onto the most recent entry for
// this twin lacking a response (searched from the end of the log backward).
// Returns sql.ErrNoRows when no unfilled entry exists.
func (db *DB) FillTwinResponse(ctx context.Context, userID, twinID, response string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE conversation_entries SET twin_response = ?, response_at = CURRENT_TIMESTAMP
		 WHERE id = (
			SELECT id FROM conversation_entries
			WHERE user_id = ? AND twin_id = ? AND twin_response IS NULL
			ORDER BY id DESC LIMIT 1
		 )`,
		response, userID, twinID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TrimEntries keeps only the newest keep entries for the user, across twins.
func (db *DB) TrimEntries(ctx context.Context, userID string, keep int) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM conversation_entries WHERE user_id = ? AND id NOT IN (
			SELECT id FROM conversation_entries WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`,
		userID, userID, keep,
	)
	return err
}

// PurgeTwinEntries removes only this twin's entries for the user, leaving
// other twins' entries untouched.
func (db *DB) PurgeTwinEntries(ctx context.Context, userID, twinID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM conversation_entries WHERE user_id = ? AND twin_id = ?`,
		userID, twinID,
	)
	return err
}
