package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds runtime configuration. Secrets (e.g. API key) are read from
// the environment or from the config dir at runtime; never committed.
type Config struct {
	// OpenAIAPIKey is set from env OPENAI_API_KEY or from config file.
	OpenAIAPIKey string `json:"openai_api_key"`
	// Model is the chat model id (e.g. gpt-4o-mini).
	Model string `json:"model"`

	// ConfigDir is where config.json and the authored catalog live.
	ConfigDir string `json:"-"`
	// DBPath is the path to twinbot.db.
	DBPath string `json:"-"`
	// CatalogDir is where twins.yaml and stories.yaml live.
	CatalogDir string `json:"-"`

	// StoryHistoryDays is the recency window for "already told" stories.
	StoryHistoryDays int `json:"story_history_days"`
	// MaxConversationHistory caps the per-user conversation log length.
	MaxConversationHistory int `json:"max_conversation_history"`
	// DefaultTwinID, when set, is auto-selected for users who have not
	// picked a twin yet.
	DefaultTwinID string `json:"default_twin_id"`
	// WebhookAddr is the listen address for the webhook channel ("" = off).
	WebhookAddr string `json:"webhook_addr"`
}

// DefaultConfigDir returns the default config directory (project-local
// .twinbot if present, else ~/.config/twinbot).
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".twinbot")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "twinbot")
}

// New builds config from env and optional config dir. ConfigDir can be empty
// to use the default. Values from config.json (if present) overwrite env.
func New(configDir string) *Config {
	if configDir == "" {
		if d := os.Getenv("TWINBOT_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}

	historyDays := 7
	if v := os.Getenv("TWINBOT_STORY_HISTORY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			historyDays = n
		}
	}
	maxHistory := 20
	if v := os.Getenv("TWINBOT_MAX_CONVERSATION_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxHistory = n
		}
	}
	model := os.Getenv("TWINBOT_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := &Config{
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		Model:                  model,
		ConfigDir:              configDir,
		DBPath:                 filepath.Join(configDir, "twinbot.db"),
		CatalogDir:             configDir,
		StoryHistoryDays:       historyDays,
		MaxConversationHistory: maxHistory,
		DefaultTwinID:          os.Getenv("TWINBOT_DEFAULT_TWIN"),
		WebhookAddr:            os.Getenv("TWINBOT_WEBHOOK_ADDR"),
	}

	// Priority: Env < Config File. Keys present in JSON overwrite the struct;
	// keys missing leave the env values untouched.
	configPath := filepath.Join(configDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	return cfg
}
