package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/persona"
)

// Action types.
const (
	ActionRegularChat   = "regular_chat"
	ActionShareStory    = "share_story"
	ActionContinueStory = "continue_story"
)

// Action is the classifier's verdict for one user turn.
type Action struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Transition string  `json:"transition"`
}

const judgePrompt = `You are an AI judge helping %s decide how to respond naturally in conversation.

Twin personality: %s
User message: %q
User context: %s
Recent conversation: %s

Determine the best response approach. Choose ONE:

1. "regular_chat" - Continue normal conversation
2. "share_story" - Natural moment to share a personal story
3. "continue_story" - User wants to hear more of current story

Consider:
- Is the user asking about experiences, events, or topics that could trigger a story?
- Does the conversation flow naturally toward storytelling?
- Would a personal anecdote enhance the conversation?
- Is the user showing interest in hearing more?

Respond with JSON:
{
    "type": "regular_chat|share_story|continue_story",
    "confidence": 0.0-1.0,
    "reasoning": "brief explanation",
    "transition": "natural transition phrase if sharing story"
}`

// Judge decides whether a turn stays conversational or opens a story.
type Judge struct {
	client core.LLMClient
}

// New creates a judge backed by the given client.
func New(client core.LLMClient) *Judge {
	return &Judge{client: client}
}

// DetermineAction classifies the turn. It never fails: any model or parse
// problem yields the default regular_chat action.
func (j *Judge) DetermineAction(ctx context.Context, twin *persona.Twin, userMessage, userContext, conversationContext string) Action {
	action, err := j.attemptClassify(ctx, twin, userMessage, userContext, conversationContext)
	if err != nil {
		log.Printf("[JUDGE] classification failed: %v", err)
		return defaultAction()
	}
	return action
}

func (j *Judge) attemptClassify(ctx context.Context, twin *persona.Twin, userMessage, userContext, conversationContext string) (Action, error) {
	prompt := fmt.Sprintf(judgePrompt,
		twin.Name, strings.Join(twin.Traits, ", "), userMessage, userContext, conversationContext)

	reply, err := j.client.Complete(ctx, []core.Message{
		{Role: "user", Content: prompt},
	}, core.CompletionOptions{Temperature: 0.3, JSONMode: true})
	if err != nil {
		return Action{}, err
	}

	var verdict struct {
		Type       string   `json:"type"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
		Transition string   `json:"transition"`
	}
	if err := json.Unmarshal([]byte(reply), &verdict); err != nil {
		return Action{}, fmt.Errorf("decode verdict: %w", err)
	}

	action := Action{
		Type:       verdict.Type,
		Confidence: 0.5,
		Reasoning:  verdict.Reasoning,
		Transition: verdict.Transition,
	}
	if verdict.Confidence != nil {
		action.Confidence = *verdict.Confidence
	}
	switch action.Type {
	case ActionRegularChat, ActionShareStory, ActionContinueStory:
	default:
		action.Type = ActionRegularChat
	}
	if action.Reasoning == "" {
		action.Reasoning = "Default action"
	}
	return action, nil
}

func defaultAction() Action {
	return Action{
		Type:       ActionRegularChat,
		Confidence: 0.5,
		Reasoning:  "Fallback to regular conversation",
		Transition: "",
	}
}
