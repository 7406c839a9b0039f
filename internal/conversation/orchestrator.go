package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/judge"
	"github.com/twinbot/twinbot/internal/matcher"
	"github.com/twinbot/twinbot/internal/memory"
	"github.com/twinbot/twinbot/internal/persona"
	"github.com/twinbot/twinbot/internal/store"
	"github.com/twinbot/twinbot/internal/storyteller"
)

// User-facing fallback lines.
const (
	selectTwinPrompt = "Please select a digital twin first using /twins"
	twinMissing      = "Sorry, I can't find the selected digital twin."
	generalTrouble   = "Sorry, I'm having trouble responding right now. Try again in a moment!"
	chatFallback     = "I hear you! Tell me more about that."
	cannedGreeting   = "Hey there! Great to meet you. I'm excited to share some stories with you!"
)

// shareStoryThreshold gates story starts on classifier confidence (strict).
const shareStoryThreshold = 0.6

const replyPrompt = `You are %s, a digital twin with a rich personal history.

Personality: %s
Background: %s

Style guidelines:
%s

User context: %s
Recent conversation: %s

User just said: %q

Respond naturally as %s. You can:
- Continue the conversation naturally
- Ask engaging follow-up questions
- Share brief relevant thoughts or reactions
- Reference what you know about the user appropriately

Be conversational, engaging, and authentic to your personality.
Keep responses natural and flowing - typically 1-3 sentences unless elaborating on something specific.`

const greetingPrompt = `You are %s, a digital twin with this personality: %s

Background: %s

Style guidelines:
%s

User context: %s

Generate a warm, personal greeting. If this is a returning user, acknowledge what you remember about them.
Keep it conversational and match your personality. Limit to 2-3 sentences.`

// Orchestrator runs the per-turn decision pipeline: memory update, story
// continuation, action classification, story start, contextual reply.
type Orchestrator struct {
	db          *store.DB
	twins       *persona.Cache
	mem         *memory.Manager
	judge       *judge.Judge
	matcher     *matcher.Matcher
	teller      *storyteller.Teller
	client      core.LLMClient
	logs        *store.LogStore
	defaultTwin string
}

// New wires the orchestrator from its collaborators. defaultTwin, when
// non-empty, is auto-selected for users who have not picked a twin.
func New(db *store.DB, twins *persona.Cache, mem *memory.Manager, j *judge.Judge, m *matcher.Matcher, t *storyteller.Teller, client core.LLMClient, logs *store.LogStore, defaultTwin string) *Orchestrator {
	return &Orchestrator{
		db:          db,
		twins:       twins,
		mem:         mem,
		judge:       j,
		matcher:     m,
		teller:      t,
		client:      client,
		logs:        logs,
		defaultTwin: defaultTwin,
	}
}

// HandleUserMessage is the main conversation handler. It never returns an
// error: every failure maps to a user-displayable string.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, userID, twinID, text string) string {
	if twinID == "" {
		session, err := o.db.ActiveSession(ctx, userID)
		if err != nil {
			o.logError("conversation", fmt.Sprintf("session for %s: %v", userID, err))
			return generalTrouble
		}
		switch {
		case session != nil:
			twinID = session.TwinID
		case o.defaultTwin != "":
			twinID = o.defaultTwin
		default:
			return selectTwinPrompt
		}
	}

	twin, err := o.twins.Get(ctx, twinID)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("twin %s: %v", twinID, err))
		return generalTrouble
	}
	if twin == nil {
		return twinMissing
	}

	session, err := o.db.GetOrCreateSession(ctx, userID, twinID)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("session for %s/%s: %v", userID, twinID, err))
		return generalTrouble
	}

	if err := o.mem.UpdateFromMessage(ctx, userID, twinID, text); err != nil {
		o.logError("conversation", fmt.Sprintf("memory update for %s: %v", userID, err))
	}

	userContext, err := o.mem.UserContextString(ctx, userID, twinID)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("user context for %s: %v", userID, err))
		userContext = "This is our first conversation."
	}
	conversationContext, err := o.mem.RecentConversation(ctx, userID, twinID, twin.Name, 3)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("recent conversation for %s: %v", userID, err))
		conversationContext = "No recent conversation history."
	}

	response := o.contextualResponse(ctx, userID, text, twin, userContext, conversationContext, session)

	if err := o.mem.AddTwinResponse(ctx, userID, twinID, response); err != nil {
		o.logError("conversation", fmt.Sprintf("storing response for %s/%s: %v", userID, twinID, err))
	}
	return response
}

func (o *Orchestrator) contextualResponse(ctx context.Context, userID, text string, twin *persona.Twin, userContext, conversationContext string, session *store.ConversationSession) string {
	// An active story gets first claim on the turn. A topic change clears it
	// and falls through to the regular flow.
	if session.CurrentStoryID != "" {
		reply, engaged := o.teller.Continue(ctx, userID, twin.TwinID, session.CurrentStoryID, text)
		if engaged {
			return reply
		}
	}

	action := o.judge.DetermineAction(ctx, twin, text, userContext, conversationContext)

	if action.Type == judge.ActionShareStory && action.Confidence > shareStoryThreshold {
		story := o.matcher.SelectBestStory(ctx, twin.TwinID, userContext, conversationContext, userID)
		if story != nil {
			return o.teller.Start(ctx, userID, story, twin, userContext, action.Transition)
		}
	}

	return o.conversationalReply(ctx, twin, text, userContext, conversationContext)
}

func (o *Orchestrator) conversationalReply(ctx context.Context, twin *persona.Twin, text, userContext, conversationContext string) string {
	prompt := fmt.Sprintf(replyPrompt,
		twin.Name, strings.Join(twin.Traits, ", "), twin.Background,
		twin.StyleInstructions(), userContext, conversationContext, text, twin.Name)

	reply, err := o.client.Complete(ctx, []core.Message{
		{Role: "user", Content: prompt},
	}, core.CompletionOptions{Temperature: 0.7})
	if err != nil {
		o.logError("llm", fmt.Sprintf("conversational reply: %v", err))
		return chatFallback
	}
	return reply
}

// GenerateGreeting produces the twin's opening line at selection time.
func (o *Orchestrator) GenerateGreeting(ctx context.Context, twin *persona.Twin, userID string) string {
	userContext, err := o.mem.UserContextString(ctx, userID, twin.TwinID)
	if err != nil {
		userContext = "This is our first conversation."
	}
	prompt := fmt.Sprintf(greetingPrompt,
		twin.Name, strings.Join(twin.Traits, ", "), twin.Background,
		twin.StyleInstructions(), userContext)

	reply, err := o.client.Complete(ctx, []core.Message{
		{Role: "user", Content: prompt},
	}, core.CompletionOptions{Temperature: 0.7})
	if err != nil {
		o.logError("llm", fmt.Sprintf("greeting: %v", err))
		return cannedGreeting
	}
	return reply
}

// SelectTwin switches the user's active session to the named twin and returns
// its greeting. Unknown ids report back to the user without state changes.
func (o *Orchestrator) SelectTwin(ctx context.Context, userID, twinID string) string {
	twin, err := o.twins.Get(ctx, twinID)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("twin %s: %v", twinID, err))
		return generalTrouble
	}
	if twin == nil {
		return twinMissing
	}
	if _, err := o.db.SetActiveTwin(ctx, userID, twinID); err != nil {
		o.logError("conversation", fmt.Sprintf("selecting twin %s for %s: %v", twinID, userID, err))
		return generalTrouble
	}
	return o.GenerateGreeting(ctx, twin, userID)
}

// PurgeActiveTwin clears the conversation history of the user's active twin.
func (o *Orchestrator) PurgeActiveTwin(ctx context.Context, userID string) string {
	session, err := o.db.ActiveSession(ctx, userID)
	if err != nil {
		o.logError("conversation", fmt.Sprintf("session for %s: %v", userID, err))
		return generalTrouble
	}
	if session == nil {
		return selectTwinPrompt
	}
	if err := o.mem.PurgeTwinHistory(ctx, userID, session.TwinID); err != nil {
		o.logError("conversation", fmt.Sprintf("purging %s/%s: %v", userID, session.TwinID, err))
		return "Sorry, I couldn't clear our history just now."
	}
	return "Our conversation history is cleared. Fresh start!"
}

// ListTwins returns all authored twins for channel display.
func (o *Orchestrator) ListTwins(ctx context.Context) ([]persona.Twin, error) {
	return o.db.AllTwins(ctx)
}

func (o *Orchestrator) logError(component, message string) {
	log.Printf("[%s] %s", strings.ToUpper(component), message)
	if o.logs != nil {
		if err := o.logs.LogError(component, message); err != nil {
			log.Printf("[LOGSTORE] write failed: %v", err)
		}
	}
}
