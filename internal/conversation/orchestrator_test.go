package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/judge"
	"github.com/twinbot/twinbot/internal/matcher"
	"github.com/twinbot/twinbot/internal/memory"
	"github.com/twinbot/twinbot/internal/persona"
	"github.com/twinbot/twinbot/internal/store"
	"github.com/twinbot/twinbot/internal/storyteller"
)

// routeClient routes on prompt markers so one fake serves every pipeline
// stage. Unset routes return their zero value.
type routeClient struct {
	extract   string
	verdict   string
	score     string
	narration string
	reply     string
	greeting  string
	err       error
}

func (r *routeClient) Complete(ctx context.Context, messages []core.Message, opts core.CompletionOptions) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "Extract personal information"):
		if r.extract == "" {
			return "{}", nil
		}
		return r.extract, nil
	case strings.Contains(prompt, "AI judge"):
		return r.verdict, nil
	case strings.Contains(prompt, "Rate how relevant"):
		return r.score, nil
	case strings.Contains(prompt, "naturally weaving"):
		return r.narration, nil
	case strings.Contains(prompt, "warm, personal greeting"):
		return r.greeting, nil
	default:
		return r.reply, nil
	}
}

func newTestOrchestrator(t *testing.T, client core.LLMClient, defaultTwin string) (*Orchestrator, *store.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertTwin(ctx, &persona.Twin{
		TwinID: "sage", Name: "Sage",
		Traits:     []string{"warm", "curious"},
		Style:      persona.DefaultStyle(),
		Background: "Retired mountaineer.",
	}); err != nil {
		t.Fatalf("twin: %v", err)
	}

	orch := New(
		db,
		persona.NewCache(db, 8),
		memory.NewManager(db, client, 20),
		judge.New(client),
		matcher.New(db, client, 7),
		storyteller.New(db, client),
		client,
		store.NewLogStore(db),
		defaultTwin,
	)
	return orch, db
}

func seedStory(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	err := db.UpsertStory(ctx, &store.Story{
		StoryID: "s1", TwinID: "sage", Title: "The Climb",
		FullContent: "Once I climbed a mountain.",
		Themes:      []string{"adventure"}, Triggers: []string{"hiking"},
	})
	if err != nil {
		t.Fatalf("story: %v", err)
	}
	segs := []store.StorySegment{
		{StoryID: "s1", SegmentOrder: 1, Content: "It started at dawn.", TransitionHook: "Want to hear more?"},
		{StoryID: "s1", SegmentOrder: 2, Content: "The summit was frozen."},
	}
	if err := db.ReplaceSegments(ctx, "s1", segs); err != nil {
		t.Fatalf("segments: %v", err)
	}
}

func TestHandleUserMessageNoTwinSelected(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &routeClient{}, "")
	got := orch.HandleUserMessage(context.Background(), "alice", "", "hello")
	if got != selectTwinPrompt {
		t.Errorf("reply = %q, want twin-selection prompt", got)
	}
}

func TestHandleUserMessageDefaultTwin(t *testing.T) {
	client := &routeClient{
		verdict: `{"type":"regular_chat","confidence":0.9}`,
		reply:   "Nice to meet you!",
	}
	orch, db := newTestOrchestrator(t, client, "sage")

	got := orch.HandleUserMessage(context.Background(), "alice", "", "hello")
	if got != "Nice to meet you!" {
		t.Fatalf("reply = %q", got)
	}

	active, err := db.ActiveSession(context.Background(), "alice")
	if err != nil || active == nil || active.TwinID != "sage" {
		t.Errorf("default twin session = (%+v, %v)", active, err)
	}
}

func TestHandleUserMessageRegularChatPersisted(t *testing.T) {
	client := &routeClient{
		extract: `{"name":"Alice"}`,
		verdict: `{"type":"regular_chat","confidence":0.9,"reasoning":"small talk"}`,
		reply:   "Hi Alice! How is your day going?",
	}
	orch, db := newTestOrchestrator(t, client, "")
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")

	got := orch.HandleUserMessage(ctx, "alice", "", "Hi, I'm Alice")
	if got != "Hi Alice! How is your day going?" {
		t.Fatalf("reply = %q", got)
	}

	entries, err := db.TwinEntries(ctx, "alice", "sage", 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = (%v, %v)", entries, err)
	}
	if entries[0].TwinResponse != "Hi Alice! How is your day going?" {
		t.Errorf("stored response = %q", entries[0].TwinResponse)
	}

	p, err := db.GetProfile(ctx, "alice")
	if err != nil || !strings.Contains(p.Profile, "Alice") {
		t.Errorf("profile = (%+v, %v)", p, err)
	}
}

func TestHandleUserMessageStartsStoryOnHighConfidence(t *testing.T) {
	client := &routeClient{
		verdict:   `{"type":"share_story","confidence":0.8,"transition":"That reminds me..."}`,
		score:     "0.9",
		narration: "Funny you mention hiking... it started at dawn. Want to hear more?",
	}
	orch, db := newTestOrchestrator(t, client, "")
	seedStory(t, db)
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")

	got := orch.HandleUserMessage(ctx, "alice", "", "I went hiking last week")
	if !strings.Contains(got, "it started at dawn") {
		t.Fatalf("reply = %q, want story narration", got)
	}

	session, _ := db.GetOrCreateSession(ctx, "alice", "sage")
	if session.CurrentStoryID != "s1" {
		t.Errorf("session story = %q, want s1", session.CurrentStoryID)
	}
}

func TestHandleUserMessageLowConfidenceStaysChat(t *testing.T) {
	client := &routeClient{
		verdict: `{"type":"share_story","confidence":0.6}`,
		reply:   "Just chatting along.",
	}
	orch, db := newTestOrchestrator(t, client, "")
	seedStory(t, db)
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")

	// Confidence exactly at the threshold must NOT start a story (strict >).
	got := orch.HandleUserMessage(ctx, "alice", "", "I went hiking last week")
	if got != "Just chatting along." {
		t.Fatalf("reply = %q, want regular chat", got)
	}
	session, _ := db.GetOrCreateSession(ctx, "alice", "sage")
	if session.CurrentStoryID != "" {
		t.Errorf("story started at threshold confidence: %q", session.CurrentStoryID)
	}
}

func TestHandleUserMessageActiveStoryContinues(t *testing.T) {
	client := &routeClient{
		verdict: `{"type":"regular_chat","confidence":0.9}`,
		reply:   "should not be used",
	}
	orch, db := newTestOrchestrator(t, client, "")
	seedStory(t, db)
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")
	db.CreateStoryProgress(ctx, "alice", "sage", "s1")
	db.SetSessionStory(ctx, "alice", "sage", "s1")

	got := orch.HandleUserMessage(ctx, "alice", "", "tell me more!")
	if got != "The summit was frozen." {
		t.Fatalf("reply = %q, want segment 2", got)
	}
}

func TestHandleUserMessageTopicChangeFallsThrough(t *testing.T) {
	client := &routeClient{
		verdict: `{"type":"regular_chat","confidence":0.9}`,
		reply:   "Sure, my weekend was lovely.",
	}
	orch, db := newTestOrchestrator(t, client, "")
	seedStory(t, db)
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")
	db.CreateStoryProgress(ctx, "alice", "sage", "s1")
	db.SetSessionStory(ctx, "alice", "sage", "s1")

	got := orch.HandleUserMessage(ctx, "alice", "", "anyway, how was your weekend?")
	if got != "Sure, my weekend was lovely." {
		t.Fatalf("reply = %q, want regular reply after topic change", got)
	}
	session, _ := db.GetOrCreateSession(ctx, "alice", "sage")
	if session.CurrentStoryID != "" {
		t.Errorf("story pointer survived topic change: %q", session.CurrentStoryID)
	}
}

func TestHandleUserMessageUnknownTwin(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &routeClient{}, "")
	got := orch.HandleUserMessage(context.Background(), "alice", "ghost", "hello")
	if got != twinMissing {
		t.Errorf("reply = %q, want missing-twin line", got)
	}
}

func TestHandleUserMessageLLMDownFallback(t *testing.T) {
	orch, db := newTestOrchestrator(t, &routeClient{err: errors.New("api down")}, "")
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")

	// Extraction, judge, and reply all fail; the user still gets the canned
	// conversational fallback.
	got := orch.HandleUserMessage(ctx, "alice", "", "hello")
	if got != chatFallback {
		t.Errorf("reply = %q, want %q", got, chatFallback)
	}
}

func TestSelectTwinGreets(t *testing.T) {
	client := &routeClient{greeting: "Hey Alice, good to see you again!"}
	orch, db := newTestOrchestrator(t, client, "")
	ctx := context.Background()

	got := orch.SelectTwin(ctx, "alice", "sage")
	if got != "Hey Alice, good to see you again!" {
		t.Fatalf("greeting = %q", got)
	}
	active, _ := db.ActiveSession(ctx, "alice")
	if active == nil || active.TwinID != "sage" {
		t.Errorf("active session = %+v", active)
	}
}

func TestSelectTwinUnknown(t *testing.T) {
	orch, db := newTestOrchestrator(t, &routeClient{}, "")
	ctx := context.Background()

	if got := orch.SelectTwin(ctx, "alice", "ghost"); got != twinMissing {
		t.Errorf("reply = %q", got)
	}
	active, _ := db.ActiveSession(ctx, "alice")
	if active != nil {
		t.Errorf("session created for unknown twin: %+v", active)
	}
}

func TestGenerateGreetingFallback(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &routeClient{err: errors.New("api down")}, "")
	twin := &persona.Twin{TwinID: "sage", Name: "Sage", Style: persona.DefaultStyle()}

	if got := orch.GenerateGreeting(context.Background(), twin, "alice"); got != cannedGreeting {
		t.Errorf("greeting = %q, want canned", got)
	}
}

func TestPurgeActiveTwin(t *testing.T) {
	client := &routeClient{
		verdict: `{"type":"regular_chat","confidence":0.9}`,
		reply:   "hi!",
	}
	orch, db := newTestOrchestrator(t, client, "")
	ctx := context.Background()
	db.SetActiveTwin(ctx, "alice", "sage")
	orch.HandleUserMessage(ctx, "alice", "", "hello")

	got := orch.PurgeActiveTwin(ctx, "alice")
	if !strings.Contains(got, "cleared") {
		t.Fatalf("purge reply = %q", got)
	}
	entries, _ := db.TwinEntries(ctx, "alice", "sage", 0)
	if len(entries) != 0 {
		t.Errorf("entries after purge = %d", len(entries))
	}
}
