package store

import (
	"context"
	"database/sql"
	"time"
)

// Story is an authored content unit owned by one twin. Adaptability is stored
// but unused by orchestration; it is reserved for future style modulation.
type Story struct {
	StoryID       string    `json:"story_id"`
	TwinID        string    `json:"twin_id"`
	Title         string    `json:"title"`
	FullContent   string    `json:"full_content"`
	Themes        []string  `json:"themes"`
	EmotionalTone string    `json:"emotional_tone"`
	Adaptability  float64   `json:"adaptability"`
	KeyFacts      []string  `json:"key_facts"`
	Triggers      []string  `json:"conversation_triggers"`
	CreatedAt     time.Time `json:"created_at"`
}

// StorySegment is one ordered beat of a multi-part story. Order starts at 1
// and is expected contiguous; "next" is always current + 1.
type StorySegment struct {
	StoryID           string   `json:"story_id"`
	SegmentOrder      int      `json:"segment_order"`
	Content           string   `json:"content"`
	TransitionHook    string   `json:"transition_hook,omitempty"`
	InteractionPoints []string `json:"interaction_points"`
}

// UpsertStory inserts or replaces an authored story.
func (db *DB) UpsertStory(ctx context.Context, s *Story) error {
	tone := s.EmotionalTone
	if tone == "" {
		tone = "neutral"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO stories (story_id, twin_id, title, full_content, themes, emotional_tone, adaptability, key_facts, conversation_triggers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(story_id) DO UPDATE SET
			twin_id=excluded.twin_id,
			title=excluded.title,
			full_content=excluded.full_content,
			themes=excluded.themes,
			emotional_tone=excluded.emotional_tone,
			adaptability=excluded.adaptability,
			key_facts=excluded.key_facts,
			conversation_triggers=excluded.conversation_triggers`,
		s.StoryID, s.TwinID, s.Title, s.FullContent, marshalList(s.Themes), tone,
		s.Adaptability, marshalList(s.KeyFacts), marshalList(s.Triggers),
	)
	return err
}

// GetStory retrieves a story by id. Returns nil, nil if not found.
func (db *DB) GetStory(ctx context.Context, storyID string) (*Story, error) {
	row := db.QueryRowContext(ctx,
		`SELECT story_id, twin_id, title, full_content, themes, emotional_tone, adaptability, key_facts, conversation_triggers, created_at
		 FROM stories WHERE story_id = ?`,
		storyID,
	)
	s, err := scanStory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// StoriesByTwin returns a twin's stories in deterministic order (created_at,
// then story_id), so equal relevance scores tie-break first-seen.
func (db *DB) StoriesByTwin(ctx context.Context, twinID string) ([]Story, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT story_id, twin_id, title, full_content, themes, emotional_tone, adaptability, key_facts, conversation_triggers, created_at
		 FROM stories WHERE twin_id = ? ORDER BY created_at, story_id`,
		twinID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanStory(row rowScanner) (*Story, error) {
	var s Story
	var themes, keyFacts, triggers string
	if err := row.Scan(&s.StoryID, &s.TwinID, &s.Title, &s.FullContent, &themes, &s.EmotionalTone, &s.Adaptability, &keyFacts, &triggers, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Themes = unmarshalList(themes)
	s.KeyFacts = unmarshalList(keyFacts)
	s.Triggers = unmarshalList(triggers)
	return &s, nil
}

// ReplaceSegments deletes and rewrites a story's segments in one transaction.
func (db *DB) ReplaceSegments(ctx context.Context, storyID string, segments []StorySegment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM story_segments WHERE story_id = ?`, storyID); err != nil {
		return err
	}
	for _, seg := range segments {
		var hook interface{}
		if seg.TransitionHook != "" {
			hook = seg.TransitionHook
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO story_segments (story_id, segment_order, content, transition_hook, interaction_points) VALUES (?, ?, ?, ?, ?)`,
			storyID, seg.SegmentOrder, seg.Content, hook, marshalList(seg.InteractionPoints),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StorySegments returns a story's segments ordered by segment_order.
func (db *DB) StorySegments(ctx context.Context, storyID string) ([]StorySegment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT story_id, segment_order, content, transition_hook, interaction_points
		 FROM story_segments WHERE story_id = ? ORDER BY segment_order`,
		storyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StorySegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *seg)
	}
	return out, rows.Err()
}

// GetSegment retrieves one segment by (story, order). Returns nil, nil if the
// row does not exist; callers treat that as "story over".
func (db *DB) GetSegment(ctx context.Context, storyID string, order int) (*StorySegment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT story_id, segment_order, content, transition_hook, interaction_points
		 FROM story_segments WHERE story_id = ? AND segment_order = ?`,
		storyID, order,
	)
	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return seg, err
}

func scanSegment(row rowScanner) (*StorySegment, error) {
	var seg StorySegment
	var hook sql.NullString
	var points string
	if err := row.Scan(&seg.StoryID, &seg.SegmentOrder, &seg.Content, &hook, &points); err != nil {
		return nil, err
	}
	if hook.Valid {
		seg.TransitionHook = hook.String
	}
	seg.InteractionPoints = unmarshalList(points)
	return &seg, nil
}
