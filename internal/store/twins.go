package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/twinbot/twinbot/internal/persona"
)

// UpsertTwin inserts or replaces an authored twin persona.
func (db *DB) UpsertTwin(ctx context.Context, t *persona.Twin) error {
	styleJSON, err := json.Marshal(t.Style)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO twins (twin_id, name, personality_traits, conversational_style, background)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(twin_id) DO UPDATE SET
			name=excluded.name,
			personality_traits=excluded.personality_traits,
			conversational_style=excluded.conversational_style,
			background=excluded.background`,
		t.TwinID, t.Name, marshalList(t.Traits), string(styleJSON), t.Background,
	)
	return err
}

// GetTwin retrieves a twin by id. Returns nil, nil if not found.
func (db *DB) GetTwin(ctx context.Context, twinID string) (*persona.Twin, error) {
	row := db.QueryRowContext(ctx,
		`SELECT twin_id, name, personality_traits, conversational_style, background, created_at
		 FROM twins WHERE twin_id = ?`,
		twinID,
	)
	t, err := scanTwin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// AllTwins returns all authored twins ordered by name.
func (db *DB) AllTwins(ctx context.Context) ([]persona.Twin, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT twin_id, name, personality_traits, conversational_style, background, created_at
		 FROM twins ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []persona.Twin
	for rows.Next() {
		t, err := scanTwin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTwin(row rowScanner) (*persona.Twin, error) {
	var t persona.Twin
	var traits, style string
	if err := row.Scan(&t.TwinID, &t.Name, &traits, &style, &t.Background, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Traits = unmarshalList(traits)
	t.Style = persona.DefaultStyle()
	if style != "" {
		if err := json.Unmarshal([]byte(style), &t.Style); err != nil {
			t.Style = persona.DefaultStyle()
		}
	}
	return &t, nil
}
