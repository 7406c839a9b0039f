package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/twinbot/twinbot/internal/persona"
	"github.com/twinbot/twinbot/internal/store"
)

// twinDoc is the authored shape of one twin in twins.yaml.
type twinDoc struct {
	TwinID     string                `yaml:"twin_id"`
	Name       string                `yaml:"name"`
	Traits     []string              `yaml:"personality_traits"`
	Style      persona.StyleSettings `yaml:"conversational_style"`
	Background string                `yaml:"background"`
}

// segmentDoc is one ordered beat of an authored story.
type segmentDoc struct {
	Order             int      `yaml:"order"`
	Content           string   `yaml:"content"`
	TransitionHook    string   `yaml:"transition_hook"`
	InteractionPoints []string `yaml:"interaction_points"`
}

// storyDoc is the authored shape of one story in stories.yaml.
type storyDoc struct {
	StoryID       string       `yaml:"story_id"`
	TwinID        string       `yaml:"twin_id"`
	Title         string       `yaml:"title"`
	FullContent   string       `yaml:"full_content"`
	Themes        []string     `yaml:"themes"`
	EmotionalTone string       `yaml:"emotional_tone"`
	Adaptability  float64      `yaml:"adaptability"`
	KeyFacts      []string     `yaml:"key_facts"`
	Triggers      []string     `yaml:"conversation_triggers"`
	Segments      []segmentDoc `yaml:"segments"`
}

// Load reads twins.yaml and stories.yaml from dir and upserts them into the
// store. Missing files are fine (content can be authored later); malformed
// YAML is an error.
func Load(ctx context.Context, db *store.DB, dir string) error {
	if err := loadTwins(ctx, db, filepath.Join(dir, "twins.yaml")); err != nil {
		return err
	}
	return loadStories(ctx, db, filepath.Join(dir, "stories.yaml"))
}

func loadTwins(ctx context.Context, db *store.DB, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[CATALOG] no twins file at %s, skipping", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var docs []twinDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, d := range docs {
		if d.TwinID == "" || d.Name == "" {
			return fmt.Errorf("%s: twin entries need twin_id and name", path)
		}
		t := persona.Twin{
			TwinID:     d.TwinID,
			Name:       d.Name,
			Traits:     d.Traits,
			Style:      d.Style,
			Background: d.Background,
		}
		if err := db.UpsertTwin(ctx, &t); err != nil {
			return fmt.Errorf("upsert twin %s: %w", d.TwinID, err)
		}
	}
	log.Printf("[CATALOG] loaded %d twins from %s", len(docs), path)
	return nil
}

func loadStories(ctx context.Context, db *store.DB, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[CATALOG] no stories file at %s, skipping", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var docs []storyDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, d := range docs {
		if d.StoryID == "" || d.TwinID == "" {
			return fmt.Errorf("%s: story entries need story_id and twin_id", path)
		}
		s := store.Story{
			StoryID:       d.StoryID,
			TwinID:        d.TwinID,
			Title:         d.Title,
			FullContent:   d.FullContent,
			Themes:        d.Themes,
			EmotionalTone: d.EmotionalTone,
			Adaptability:  d.Adaptability,
			KeyFacts:      d.KeyFacts,
			Triggers:      d.Triggers,
		}
		if err := db.UpsertStory(ctx, &s); err != nil {
			return fmt.Errorf("upsert story %s: %w", d.StoryID, err)
		}

		segments := make([]store.StorySegment, 0, len(d.Segments))
		for i, seg := range d.Segments {
			order := seg.Order
			if order == 0 {
				order = i + 1
			}
			segments = append(segments, store.StorySegment{
				StoryID:           d.StoryID,
				SegmentOrder:      order,
				Content:           seg.Content,
				TransitionHook:    seg.TransitionHook,
				InteractionPoints: seg.InteractionPoints,
			})
		}
		if err := db.ReplaceSegments(ctx, d.StoryID, segments); err != nil {
			return fmt.Errorf("segments for %s: %w", d.StoryID, err)
		}
	}
	log.Printf("[CATALOG] loaded %d stories from %s", len(docs), path)
	return nil
}
