package store

import (
	"context"
	"database/sql"
	"time"
)

// UserProfile is the durable per-user profile, shared across all twins.
// Profile is a JSON object; merge rules live in the memory manager.
type UserProfile struct {
	UserID          string    `json:"user_id"`
	Profile         string    `json:"profile"` // JSON
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction"`
}

// GetOrCreateProfile retrieves a user's profile, creating an empty one on
// first contact.
func (db *DB) GetOrCreateProfile(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := db.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, profile) VALUES (?, '{}')`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return db.GetProfile(ctx, userID)
}

// GetProfile retrieves a user's profile. Returns sql.ErrNoRows if absent.
func (db *DB) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := db.QueryRowContext(ctx,
		`SELECT user_id, profile, created_at, last_interaction FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.Profile, &p.CreatedAt, &p.LastInteraction)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile replaces the profile JSON and bumps last_interaction.
func (db *DB) UpdateProfile(ctx context.Context, userID, profileJSON string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE user_profiles SET profile = ?, last_interaction = CURRENT_TIMESTAMP WHERE user_id = ?`,
		profileJSON, userID,
	)
	return err
}
