package store

import (
	"context"
	"database/sql"
	"time"
)

// Completion states for a story progress row.
const (
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// StoryProgress tracks one (user, twin, story) cursor through a story's
// segments.
type StoryProgress struct {
	UserID            string    `json:"user_id"`
	TwinID            string    `json:"twin_id"`
	StoryID           string    `json:"story_id"`
	CurrentSegment    int       `json:"current_segment"`
	SegmentsCompleted []int     `json:"segments_completed"`
	CompletionStatus  string    `json:"completion_status"`
	StartedAt         time.Time `json:"started_at"`
	LastInteraction   time.Time `json:"last_interaction"`
}

// CreateStoryProgress creates (or resets) the progress row at segment 1.
// Re-starting an already-tracked story resets it to 1 / {1} / in_progress.
func (db *DB) CreateStoryProgress(ctx context.Context, userID, twinID, storyID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO story_progress (user_id, twin_id, story_id, current_segment, segments_completed, completion_status, last_interaction)
		 VALUES (?, ?, ?, 1, '[1]', 'in_progress', CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id, twin_id, story_id) DO UPDATE SET
			current_segment=1,
			segments_completed='[1]',
			completion_status='in_progress',
			last_interaction=CURRENT_TIMESTAMP`,
		userID, twinID, storyID,
	)
	return err
}

// GetStoryProgress returns the progress row, or nil, nil if absent.
func (db *DB) GetStoryProgress(ctx context.Context, userID, twinID, storyID string) (*StoryProgress, error) {
	var p StoryProgress
	var completed string
	err := db.QueryRowContext(ctx,
		`SELECT user_id, twin_id, story_id, current_segment, segments_completed, completion_status, started_at, last_interaction
		 FROM story_progress WHERE user_id = ? AND twin_id = ? AND story_id = ?`,
		userID, twinID, storyID,
	).Scan(&p.UserID, &p.TwinID, &p.StoryID, &p.CurrentSegment, &completed, &p.CompletionStatus, &p.StartedAt, &p.LastInteraction)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.SegmentsCompleted = unmarshalInts(completed)
	return &p, nil
}

// AdvanceStoryProgress moves the cursor to segment, adding it to
// segments_completed (deduplicated). No-op if the row is absent.
func (db *DB) AdvanceStoryProgress(ctx context.Context, userID, twinID, storyID string, segment int) error {
	p, err := db.GetStoryProgress(ctx, userID, twinID, storyID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	completed := p.SegmentsCompleted
	seen := false
	for _, s := range completed {
		if s == segment {
			seen = true
			break
		}
	}
	if !seen {
		completed = append(completed, segment)
	}
	_, err = db.ExecContext(ctx,
		`UPDATE story_progress SET current_segment = ?, segments_completed = ?, last_interaction = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND twin_id = ? AND story_id = ?`,
		segment, marshalInts(completed), userID, twinID, storyID,
	)
	return err
}

// CompleteStoryProgress flips the row to completed.
func (db *DB) CompleteStoryProgress(ctx context.Context, userID, twinID, storyID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE story_progress SET completion_status = 'completed', last_interaction = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND twin_id = ? AND story_id = ?`,
		userID, twinID, storyID,
	)
	return err
}

// RecentStoryIDs returns ids of stories this twin started for this user since
// the cutoff, regardless of completion. Used for recency exclusion.
func (db *DB) RecentStoryIDs(ctx context.Context, userID, twinID string, since time.Time) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT story_id FROM story_progress WHERE user_id = ? AND twin_id = ? AND started_at >= ?`,
		userID, twinID, since.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
