package store

const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	profile TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_interaction DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	twin_id TEXT NOT NULL,
	user_message TEXT NOT NULL,
	extracted TEXT NOT NULL DEFAULT '{}',
	twin_response TEXT,
	response_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_entries_user_twin ON conversation_entries(user_id, twin_id);

CREATE TABLE IF NOT EXISTS twins (
	twin_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	personality_traits TEXT NOT NULL DEFAULT '[]',
	conversational_style TEXT NOT NULL DEFAULT '{}',
	background TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stories (
	story_id TEXT PRIMARY KEY,
	twin_id TEXT NOT NULL,
	title TEXT NOT NULL,
	full_content TEXT NOT NULL DEFAULT '',
	themes TEXT NOT NULL DEFAULT '[]',
	emotional_tone TEXT NOT NULL DEFAULT 'neutral',
	adaptability REAL NOT NULL DEFAULT 0.5,
	key_facts TEXT NOT NULL DEFAULT '[]',
	conversation_triggers TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(twin_id) REFERENCES twins(twin_id)
);
CREATE INDEX IF NOT EXISTS idx_stories_twin ON stories(twin_id);

CREATE TABLE IF NOT EXISTS story_segments (
	story_id TEXT NOT NULL,
	segment_order INTEGER NOT NULL,
	content TEXT NOT NULL,
	transition_hook TEXT,
	interaction_points TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY(story_id, segment_order),
	FOREIGN KEY(story_id) REFERENCES stories(story_id)
);

CREATE TABLE IF NOT EXISTS story_progress (
	user_id TEXT NOT NULL,
	twin_id TEXT NOT NULL,
	story_id TEXT NOT NULL,
	current_segment INTEGER NOT NULL DEFAULT 1,
	segments_completed TEXT NOT NULL DEFAULT '[1]',
	completion_status TEXT NOT NULL DEFAULT 'in_progress', -- in_progress, completed
	started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_interaction DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(user_id, twin_id, story_id)
);

CREATE TABLE IF NOT EXISTS conversation_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	twin_id TEXT NOT NULL,
	current_story_id TEXT,
	session_state TEXT NOT NULL DEFAULT 'active', -- active, inactive
	started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_activity DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_state ON conversation_sessions(user_id, session_state);

CREATE TABLE IF NOT EXISTS system_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	level TEXT NOT NULL,
	component TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON system_logs(level);
`
