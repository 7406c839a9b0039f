package storyteller

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/persona"
	"github.com/twinbot/twinbot/internal/store"
)

// Canned lines for degraded paths.
const (
	recallTrouble = "That reminds me of something that happened to me once... but I'm having trouble recalling the details right now!"
	lostTrack     = "I think we lost track of that story!"
	nextTrouble   = "Sorry, I'm having trouble remembering what happened next!"
	storyClosing  = "And that's how it all ended! What a journey that was."
)

// continuationPhrases signal the user wants the story to go on. Matched as
// substrings of the lowercased message.
var continuationPhrases = []string{
	"what happened", "then what", "continue", "go on", "and then",
	"tell me more", "what next", "keep going", "more", "wow", "really",
	"that's interesting", "amazing", "incredible", "no way", "seriously",
}

// interjections count as continuation when the whole message is short.
var interjections = []string{"wow", "cool", "nice", "great", "awesome"}

const introPrompt = `You are %s naturally weaving a personal story into conversation.

Your personality: %s
Your style: %s
User context: %s

Transition phrase to use: %q
Story to share: %s

Create a natural, conversational way to share this story that feels spontaneous and relevant.
Include the story content but make it feel like natural storytelling.
%s
Keep it conversational and personal, as if talking to a friend.`

// Teller drives a story through its segments for one (user, twin) pair.
type Teller struct {
	db     *store.DB
	client core.LLMClient
}

// New creates a story teller.
func New(db *store.DB, client core.LLMClient) *Teller {
	return &Teller{db: db, client: client}
}

// Start narrates the story's opening in the twin's voice. State (progress row
// and session story pointer) is written only after narration succeeds; on
// failure the canned recall line is returned and nothing changes.
func (t *Teller) Start(ctx context.Context, userID string, story *store.Story, twin *persona.Twin, userContext, transition string) string {
	segments, err := t.db.StorySegments(ctx, story.StoryID)
	if err != nil {
		log.Printf("[STORY] loading segments for %s: %v", story.StoryID, err)
		return recallTrouble
	}

	content := story.FullContent
	hook := ""
	if len(segments) > 0 {
		content = segments[0].Content
		hook = segments[0].TransitionHook
	}

	hookLine := ""
	if hook != "" {
		hookLine = "End with: " + hook
	}
	styleJSON, _ := json.Marshal(twin.Style)
	prompt := fmt.Sprintf(introPrompt,
		twin.Name, strings.Join(twin.Traits, ", "), string(styleJSON),
		userContext, transition, content, hookLine)

	response, err := t.client.Complete(ctx, []core.Message{
		{Role: "user", Content: prompt},
	}, core.CompletionOptions{Temperature: 0.7})
	if err != nil {
		log.Printf("[STORY] narrating %s: %v", story.StoryID, err)
		return recallTrouble
	}

	if err := t.db.CreateStoryProgress(ctx, userID, twin.TwinID, story.StoryID); err != nil {
		log.Printf("[STORY] tracking %s: %v", story.StoryID, err)
		return response
	}
	if err := t.db.SetSessionStory(ctx, userID, twin.TwinID, story.StoryID); err != nil {
		log.Printf("[STORY] session pointer for %s: %v", story.StoryID, err)
	}
	return response
}

// Continue advances an active story if the message signals engagement. The
// second return is false exactly when the user changed topic: the session's
// story pointer is cleared and the caller falls through to ordinary chat.
func (t *Teller) Continue(ctx context.Context, userID, twinID, storyID, userMessage string) (string, bool) {
	if !indicatesContinuation(userMessage) {
		if err := t.db.ClearSessionStory(ctx, userID, twinID); err != nil {
			log.Printf("[STORY] clearing session story: %v", err)
		}
		return "", false
	}
	return t.nextSegment(ctx, userID, twinID, storyID), true
}

// indicatesContinuation reports whether the message asks for more of the
// story: a known phrase anywhere in it, or a message of at most three words
// containing an enthusiastic interjection.
func indicatesContinuation(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	if len(strings.Fields(message)) <= 3 {
		for _, word := range interjections {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}

func (t *Teller) nextSegment(ctx context.Context, userID, twinID, storyID string) string {
	progress, err := t.db.GetStoryProgress(ctx, userID, twinID, storyID)
	if err != nil {
		log.Printf("[STORY] loading progress for %s: %v", storyID, err)
		return nextTrouble
	}
	if progress == nil {
		return lostTrack
	}

	next := progress.CurrentSegment + 1
	segment, err := t.db.GetSegment(ctx, storyID, next)
	if err != nil {
		log.Printf("[STORY] loading segment %d of %s: %v", next, storyID, err)
		return nextTrouble
	}

	if segment == nil {
		// No further segments: the story is over.
		if err := t.db.CompleteStoryProgress(ctx, userID, twinID, storyID); err != nil {
			log.Printf("[STORY] completing %s: %v", storyID, err)
			return nextTrouble
		}
		if err := t.db.ClearSessionStory(ctx, userID, twinID); err != nil {
			log.Printf("[STORY] clearing session story: %v", err)
		}
		return storyClosing
	}

	if err := t.db.AdvanceStoryProgress(ctx, userID, twinID, storyID, next); err != nil {
		log.Printf("[STORY] advancing %s to %d: %v", storyID, next, err)
		return nextTrouble
	}

	response := segment.Content
	if segment.TransitionHook != "" {
		response += " " + segment.TransitionHook
	}
	return response
}
