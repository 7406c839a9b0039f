package matcher

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/store"
)

const scoringPrompt = `Rate how relevant this story is to the current conversation context (0.0 to 1.0):

Story: %s
Story themes: %s
Story triggers: %s
Story summary: %s...

User context: %s
Recent conversation: %s

Consider:
1. Semantic relevance to conversation topics (0.4 weight)
2. Relevance to user's interests and background (0.3 weight)
3. Emotional appropriateness for conversation tone (0.2 weight)
4. Natural storytelling opportunity (0.1 weight)

Return only a decimal number between 0.0 and 1.0, where:
- 0.0 = completely irrelevant
- 0.5 = somewhat relevant
- 1.0 = highly relevant and perfect timing`

// Matcher scores a twin's stories against the conversation and picks the
// most relevant one to tell next.
type Matcher struct {
	db          *store.DB
	client      core.LLMClient
	historyDays int
}

// New creates a matcher. historyDays is the recency window: stories started
// within it are excluded from selection regardless of completion.
func New(db *store.DB, client core.LLMClient, historyDays int) *Matcher {
	if historyDays <= 0 {
		historyDays = 7
	}
	return &Matcher{db: db, client: client, historyDays: historyDays}
}

// SelectBestStory returns the twin's most relevant untold story, or nil when
// none is available. It never returns an error to its caller: scoring
// problems degrade per story and selection problems yield nil.
func (m *Matcher) SelectBestStory(ctx context.Context, twinID, userContext, conversationContext, userID string) *store.Story {
	stories, err := m.db.StoriesByTwin(ctx, twinID)
	if err != nil {
		log.Printf("[MATCHER] loading stories for %s: %v", twinID, err)
		return nil
	}
	if len(stories) == 0 {
		return nil
	}

	since := time.Now().AddDate(0, 0, -m.historyDays)
	recent, err := m.db.RecentStoryIDs(ctx, userID, twinID, since)
	if err != nil {
		log.Printf("[MATCHER] loading story history for %s: %v", userID, err)
		return nil
	}
	told := make(map[string]bool, len(recent))
	for _, id := range recent {
		told[id] = true
	}

	var best *store.Story
	bestScore := -1.0
	for i := range stories {
		s := &stories[i]
		if told[s.StoryID] {
			continue
		}
		score := m.StoryRelevance(ctx, s, userContext, conversationContext)
		if score > bestScore {
			best = s
			bestScore = score
		}
	}
	return best
}

// StoryRelevance scores one story in [0, 1]. The model's bare-decimal answer
// is clamped; a non-numeric reply or call failure falls back to deterministic
// keyword matching.
func (m *Matcher) StoryRelevance(ctx context.Context, s *store.Story, userContext, conversationContext string) float64 {
	summary := s.FullContent
	if len(summary) > 200 {
		summary = summary[:200]
	}
	prompt := fmt.Sprintf(scoringPrompt,
		s.Title, strings.Join(s.Themes, ", "), strings.Join(s.Triggers, ", "),
		summary, userContext, conversationContext)

	reply, err := m.client.Complete(ctx, []core.Message{
		{Role: "user", Content: prompt},
	}, core.CompletionOptions{Temperature: 0.1, MaxTokens: 10})
	if err != nil {
		return keywordRelevance(s, userContext, conversationContext)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return keywordRelevance(s, userContext, conversationContext)
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// keywordRelevance is the deterministic fallback: theme substrings are worth
// 0.3 each, trigger substrings 0.4 each, capped at 1.0.
func keywordRelevance(s *store.Story, userContext, conversationContext string) float64 {
	score := 0.0
	search := strings.ToLower(userContext + " " + conversationContext)

	for _, theme := range s.Themes {
		if theme != "" && strings.Contains(search, strings.ToLower(theme)) {
			score += 0.3
		}
	}
	for _, trigger := range s.Triggers {
		if trigger != "" && strings.Contains(search, strings.ToLower(trigger)) {
			score += 0.4
		}
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
