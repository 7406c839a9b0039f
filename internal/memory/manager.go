package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/store"
)

// listFields are profile fields merged as union-deduplicated lists.
var listFields = map[string]bool{
	"interests":   true,
	"life_events": true,
}

const extractPrompt = `Extract personal information from this user message: %q

Return a JSON object with any of these fields that are mentioned:
{
    "name": "user's name if mentioned",
    "age": "age if mentioned",
    "location": "city/country if mentioned",
    "occupation": "job/profession if mentioned",
    "interests": ["list", "of", "interests", "mentioned"],
    "life_events": ["recent events or experiences shared"],
    "current_situation": "what they're currently doing/feeling"
}

Only include fields that are explicitly mentioned. Return empty object if nothing personal is shared.`

// Manager owns the user profile and the per-twin conversation log.
type Manager struct {
	db         *store.DB
	client     core.LLMClient
	maxEntries int
}

// NewManager creates a memory manager. maxEntries bounds the per-user
// conversation log across twins.
func NewManager(db *store.DB, client core.LLMClient, maxEntries int) *Manager {
	if maxEntries <= 0 {
		maxEntries = 20
	}
	return &Manager{db: db, client: client, maxEntries: maxEntries}
}

// UpdateFromMessage extracts profile facts from the message, merges them into
// the user's global profile, and appends a twin-tagged conversation entry.
// Extraction failure degrades to an empty snapshot; the entry is still
// appended.
func (m *Manager) UpdateFromMessage(ctx context.Context, userID, twinID, text string) error {
	extracted := m.extractInfo(ctx, text)

	if len(extracted) > 0 {
		profile, err := m.db.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		existing := decodeProfile(profile.Profile)
		merged := MergeProfile(existing, extracted)
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if err := m.db.UpdateProfile(ctx, userID, string(raw)); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	} else {
		if _, err := m.db.GetOrCreateProfile(ctx, userID); err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
	}

	snapshot, _ := json.Marshal(extracted)
	if _, err := m.db.AppendEntry(ctx, userID, twinID, text, string(snapshot)); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if err := m.db.TrimEntries(ctx, userID, m.maxEntries); err != nil {
		return fmt.Errorf("trim entries: %w", err)
	}
	return nil
}

// extractInfo asks the model for a JSON fact snapshot. Any failure returns an
// empty map.
func (m *Manager) extractInfo(ctx context.Context, text string) map[string]interface{} {
	reply, err := m.client.Complete(ctx, []core.Message{
		{Role: "user", Content: fmt.Sprintf(extractPrompt, text)},
	}, core.CompletionOptions{Temperature: 0.1, JSONMode: true})
	if err != nil {
		log.Printf("[MEMORY] extraction failed: %v", err)
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		log.Printf("[MEMORY] extraction returned non-JSON, ignoring")
		return map[string]interface{}{}
	}
	return pruneEmpty(out)
}

// pruneEmpty drops empty strings and empty lists so they never overwrite
// known facts.
func pruneEmpty(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out[k] = t
			}
		case []interface{}:
			if len(t) > 0 {
				out[k] = t
			}
		case nil:
		default:
			out[k] = v
		}
	}
	return out
}

// MergeProfile folds extracted facts into an existing profile. Name is
// set-once, list fields union-deduplicate preserving first-seen order, scalar
// fields are last-write. Fields are never deleted.
func MergeProfile(existing, extracted map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(extracted))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range extracted {
		if k == "name" {
			if cur, ok := merged["name"].(string); ok && strings.TrimSpace(cur) != "" {
				continue
			}
			merged[k] = v
			continue
		}
		if listFields[k] {
			merged[k] = unionList(toStrings(merged[k]), toStrings(v))
			continue
		}
		merged[k] = v
	}
	return merged
}

func unionList(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(a, b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func decodeProfile(raw string) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}

// AddTwinResponse fills the most recent unanswered entry for this twin.
func (m *Manager) AddTwinResponse(ctx context.Context, userID, twinID, response string) error {
	return m.db.FillTwinResponse(ctx, userID, twinID, response)
}

// UserContextString formats the user's profile and this twin's recent
// history for inclusion in prompts.
func (m *Manager) UserContextString(ctx context.Context, userID, twinID string) (string, error) {
	profile, err := m.db.GetProfile(ctx, userID)
	var facts map[string]interface{}
	if err != nil || profile == nil {
		facts = map[string]interface{}{}
	} else {
		facts = decodeProfile(profile.Profile)
	}

	var parts []string
	if name, ok := facts["name"].(string); ok && name != "" {
		parts = append(parts, "User's name: "+name)
	}
	if interests := toStrings(facts["interests"]); len(interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(interests, ", "))
	}
	if occ, ok := facts["occupation"].(string); ok && occ != "" {
		parts = append(parts, "Occupation: "+occ)
	}
	if loc, ok := facts["location"].(string); ok && loc != "" {
		parts = append(parts, "Location: "+loc)
	}

	entries, err := m.db.TwinEntries(ctx, userID, twinID, 3)
	if err == nil && len(entries) > 0 {
		parts = append(parts, "Our conversation history:")
		for _, e := range entries {
			parts = append(parts, "- User said: "+truncate(e.UserMessage, 100)+"...")
		}
	}

	if events := toStrings(facts["life_events"]); len(events) > 0 {
		last := events
		if len(last) > 2 {
			last = last[len(last)-2:]
		}
		parts = append(parts, "Personal experiences they've shared: "+strings.Join(last, "; "))
	}

	if len(parts) == 0 {
		return "This is our first conversation.", nil
	}
	return strings.Join(parts, "\n"), nil
}

// RecentConversation renders the last N twin-scoped exchanges as alternating
// User / twin lines.
func (m *Manager) RecentConversation(ctx context.Context, userID, twinID, twinName string, exchanges int) (string, error) {
	if exchanges <= 0 {
		exchanges = 3
	}
	if twinName == "" {
		twinName = "Twin"
	}
	entries, err := m.db.TwinEntries(ctx, userID, twinID, exchanges)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No recent conversation history.", nil
	}
	var lines []string
	for _, e := range entries {
		if e.UserMessage != "" {
			lines = append(lines, "User: "+e.UserMessage)
		}
		if e.TwinResponse != "" {
			lines = append(lines, twinName+": "+e.TwinResponse)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// PurgeTwinHistory deletes this twin's entries for the user and deactivates
// only this twin's session. Other twins' history and sessions are untouched.
func (m *Manager) PurgeTwinHistory(ctx context.Context, userID, twinID string) error {
	if err := m.db.PurgeTwinEntries(ctx, userID, twinID); err != nil {
		return fmt.Errorf("purge entries: %w", err)
	}
	if err := m.db.DeactivateTwinSession(ctx, userID, twinID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
