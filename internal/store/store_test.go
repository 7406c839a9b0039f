package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/twinbot/twinbot/internal/persona"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetOrCreateProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.GetOrCreateProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Profile != "{}" {
		t.Errorf("fresh profile = %q, want {}", p.Profile)
	}

	if err := db.UpdateProfile(ctx, "alice", `{"name":"Alice"}`); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, err = db.GetOrCreateProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Profile != `{"name":"Alice"}` {
		t.Errorf("profile = %q after update", p.Profile)
	}
}

func TestGetProfileAbsent(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetProfile(context.Background(), "nobody")
	if err != sql.ErrNoRows {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestEntriesFillAndIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.AppendEntry(ctx, "alice", "sage", "hello", "{}"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := db.AppendEntry(ctx, "alice", "rex", "hi rex", "{}"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := db.AppendEntry(ctx, "alice", "sage", "how are you", "{}"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := db.FillTwinResponse(ctx, "alice", "sage", "doing well"); err != nil {
		t.Fatalf("fill: %v", err)
	}

	entries, err := db.TwinEntries(ctx, "alice", "sage", 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("sage entries = %d, want 2", len(entries))
	}
	if entries[0].UserMessage != "hello" || entries[1].UserMessage != "how are you" {
		t.Errorf("entries out of chronological order: %+v", entries)
	}
	// Fill targets the newest unanswered entry.
	if entries[0].TwinResponse != "" {
		t.Errorf("oldest entry got the response: %+v", entries[0])
	}
	if entries[1].TwinResponse != "doing well" {
		t.Errorf("newest entry response = %q", entries[1].TwinResponse)
	}

	// A second fill with everything answered reports no rows.
	if err := db.FillTwinResponse(ctx, "alice", "sage", "again"); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if err := db.FillTwinResponse(ctx, "alice", "sage", "third"); err != sql.ErrNoRows {
		t.Errorf("fill with no unanswered entry: err = %v, want sql.ErrNoRows", err)
	}

	// Rex's entry is untouched.
	rex, err := db.TwinEntries(ctx, "alice", "rex", 0)
	if err != nil {
		t.Fatalf("rex entries: %v", err)
	}
	if len(rex) != 1 || rex[0].TwinResponse != "" {
		t.Errorf("rex entries affected: %+v", rex)
	}
}

func TestTrimEntriesKeepsNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three", "four"} {
		if _, err := db.AppendEntry(ctx, "alice", "sage", msg, "{}"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := db.TrimEntries(ctx, "alice", 2); err != nil {
		t.Fatalf("trim: %v", err)
	}
	entries, err := db.TwinEntries(ctx, "alice", "sage", 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries after trim = %d, want 2", len(entries))
	}
	if entries[0].UserMessage != "three" || entries[1].UserMessage != "four" {
		t.Errorf("trim kept wrong entries: %+v", entries)
	}
}

func TestPurgeTwinEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.AppendEntry(ctx, "alice", "sage", "for sage", "{}")
	db.AppendEntry(ctx, "alice", "rex", "for rex", "{}")

	if err := db.PurgeTwinEntries(ctx, "alice", "sage"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	sage, _ := db.TwinEntries(ctx, "alice", "sage", 0)
	rex, _ := db.TwinEntries(ctx, "alice", "rex", 0)
	if len(sage) != 0 {
		t.Errorf("sage entries survived purge: %+v", sage)
	}
	if len(rex) != 1 {
		t.Errorf("rex entries purged too: %+v", rex)
	}
}

func TestSessionOnlyOneActive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s1, err := db.SetActiveTwin(ctx, "alice", "sage")
	if err != nil {
		t.Fatalf("select sage: %v", err)
	}
	if s1.TwinID != "sage" || s1.SessionState != SessionActive {
		t.Fatalf("session = %+v", s1)
	}

	s2, err := db.SetActiveTwin(ctx, "alice", "rex")
	if err != nil {
		t.Fatalf("select rex: %v", err)
	}
	if s2.TwinID != "rex" {
		t.Fatalf("active twin = %s, want rex", s2.TwinID)
	}

	active, err := db.ActiveSession(ctx, "alice")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.TwinID != "rex" {
		t.Errorf("active session = %+v, want rex", active)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversation_sessions WHERE user_id = 'alice' AND session_state = 'active'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("active sessions = %d, want 1", count)
	}
}

func TestSessionStoryPointer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.GetOrCreateSession(ctx, "alice", "sage"); err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := db.SetSessionStory(ctx, "alice", "sage", "story-1"); err != nil {
		t.Fatalf("set story: %v", err)
	}
	s, err := db.GetOrCreateSession(ctx, "alice", "sage")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.CurrentStoryID != "story-1" {
		t.Errorf("current story = %q, want story-1", s.CurrentStoryID)
	}

	if err := db.ClearSessionStory(ctx, "alice", "sage"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	s, _ = db.GetOrCreateSession(ctx, "alice", "sage")
	if s.CurrentStoryID != "" {
		t.Errorf("story pointer survived clear: %q", s.CurrentStoryID)
	}
}

func TestDeactivateTwinSessionScoped(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.GetOrCreateSession(ctx, "alice", "sage")
	db.GetOrCreateSession(ctx, "alice", "rex")

	if err := db.DeactivateTwinSession(ctx, "alice", "sage"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := db.ActiveSession(ctx, "alice")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.TwinID != "rex" {
		t.Errorf("active after scoped deactivate = %+v, want rex", active)
	}
}

func TestStoryProgressLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.CreateStoryProgress(ctx, "alice", "sage", "story-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := db.GetStoryProgress(ctx, "alice", "sage", "story-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.CurrentSegment != 1 || p.CompletionStatus != ProgressInProgress {
		t.Fatalf("fresh progress = %+v", p)
	}
	if len(p.SegmentsCompleted) != 1 || p.SegmentsCompleted[0] != 1 {
		t.Fatalf("segments completed = %v, want [1]", p.SegmentsCompleted)
	}

	if err := db.AdvanceStoryProgress(ctx, "alice", "sage", "story-1", 2); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// Advancing to the same segment twice must not duplicate it.
	if err := db.AdvanceStoryProgress(ctx, "alice", "sage", "story-1", 2); err != nil {
		t.Fatalf("re-advance: %v", err)
	}
	p, _ = db.GetStoryProgress(ctx, "alice", "sage", "story-1")
	if p.CurrentSegment != 2 {
		t.Errorf("current segment = %d, want 2", p.CurrentSegment)
	}
	if len(p.SegmentsCompleted) != 2 {
		t.Errorf("segments completed = %v, want [1 2]", p.SegmentsCompleted)
	}

	if err := db.CompleteStoryProgress(ctx, "alice", "sage", "story-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	p, _ = db.GetStoryProgress(ctx, "alice", "sage", "story-1")
	if p.CompletionStatus != ProgressCompleted {
		t.Errorf("status = %q, want completed", p.CompletionStatus)
	}

	// Restart resets to segment 1.
	if err := db.CreateStoryProgress(ctx, "alice", "sage", "story-1"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	p, _ = db.GetStoryProgress(ctx, "alice", "sage", "story-1")
	if p.CurrentSegment != 1 || p.CompletionStatus != ProgressInProgress || len(p.SegmentsCompleted) != 1 {
		t.Errorf("restarted progress = %+v", p)
	}
}

func TestGetStoryProgressAbsent(t *testing.T) {
	db := openTestDB(t)
	p, err := db.GetStoryProgress(context.Background(), "alice", "sage", "missing")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if p != nil {
		t.Errorf("progress = %+v, want nil", p)
	}
}

func TestRecentStoryIDs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.CreateStoryProgress(ctx, "alice", "sage", "story-1")
	db.CreateStoryProgress(ctx, "alice", "rex", "story-2")

	ids, err := db.RecentStoryIDs(ctx, "alice", "sage", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ids) != 1 || ids[0] != "story-1" {
		t.Errorf("recent ids = %v, want [story-1]", ids)
	}

	ids, err = db.RecentStoryIDs(ctx, "alice", "sage", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("recent future cutoff: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids with future cutoff = %v, want none", ids)
	}
}

func TestStoriesAndSegments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := &Story{
		StoryID:     "story-1",
		TwinID:      "sage",
		Title:       "The Climb",
		FullContent: "Once I climbed a mountain.",
		Themes:      []string{"adventure", "mountains"},
		Triggers:    []string{"hiking"},
	}
	if err := db.UpsertStory(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EmotionalTone != "neutral" {
		t.Errorf("tone defaulted to %q, want neutral", got.EmotionalTone)
	}
	if len(got.Themes) != 2 {
		t.Errorf("themes = %v", got.Themes)
	}

	missing, err := db.GetStory(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("absent story = (%+v, %v), want (nil, nil)", missing, err)
	}

	segments := []StorySegment{
		{StoryID: "story-1", SegmentOrder: 1, Content: "It started at dawn.", TransitionHook: "Want to hear what happened at the summit?"},
		{StoryID: "story-1", SegmentOrder: 2, Content: "The summit was frozen."},
	}
	if err := db.ReplaceSegments(ctx, "story-1", segments); err != nil {
		t.Fatalf("segments: %v", err)
	}

	seg, err := db.GetSegment(ctx, "story-1", 2)
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if seg.Content != "The summit was frozen." || seg.TransitionHook != "" {
		t.Errorf("segment 2 = %+v", seg)
	}

	over, err := db.GetSegment(ctx, "story-1", 3)
	if err != nil || over != nil {
		t.Errorf("past-the-end segment = (%+v, %v), want (nil, nil)", over, err)
	}
}

func TestStoriesByTwinOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Same created_at timestamps tie-break on story_id.
	for _, id := range []string{"b-story", "a-story"} {
		if err := db.UpsertStory(ctx, &Story{StoryID: id, TwinID: "sage", Title: id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if _, err := db.Exec(`UPDATE stories SET created_at = '2024-01-01 00:00:00'`); err != nil {
		t.Fatalf("pin timestamps: %v", err)
	}
	stories, err := db.StoriesByTwin(ctx, "sage")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("stories = %d, want 2", len(stories))
	}
	if stories[0].StoryID != "a-story" {
		t.Errorf("order = [%s %s], want a-story first", stories[0].StoryID, stories[1].StoryID)
	}
}

func TestTwinsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tw := &persona.Twin{
		TwinID:     "sage",
		Name:       "Sage",
		Traits:     []string{"curious", "warm"},
		Style:      persona.StyleSettings{Formality: 0.2, HumorFrequency: 0.8, TechnicalDepth: 0.5, ResponseLength: "short"},
		Background: "Retired mountaineer.",
	}
	if err := db.UpsertTwin(ctx, tw); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetTwin(ctx, "sage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Sage" || len(got.Traits) != 2 {
		t.Errorf("twin = %+v", got)
	}
	if got.Style.Formality != 0.2 || got.Style.ResponseLength != "short" {
		t.Errorf("style = %+v", got.Style)
	}

	absent, err := db.GetTwin(ctx, "nobody")
	if err != nil || absent != nil {
		t.Errorf("absent twin = (%+v, %v), want (nil, nil)", absent, err)
	}

	all, err := db.AllTwins(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("all twins = (%v, %v)", all, err)
	}
}

func TestLogStore(t *testing.T) {
	db := openTestDB(t)
	ls := NewLogStore(db)

	if err := ls.LogError("conversation", "something broke"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := ls.LogInfo("gateway", "started"); err != nil {
		t.Fatalf("log: %v", err)
	}

	errs, err := ls.GetErrors(10)
	if err != nil {
		t.Fatalf("get errors: %v", err)
	}
	if len(errs) != 1 || errs[0].Message != "something broke" {
		t.Errorf("errors = %+v", errs)
	}

	n, err := ls.Count()
	if err != nil || n != 2 {
		t.Errorf("count = (%d, %v), want 2", n, err)
	}

	if err := ls.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
