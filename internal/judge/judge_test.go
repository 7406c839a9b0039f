package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/persona"
)

type fakeClient struct {
	reply string
	err   error
}

func (f *fakeClient) Complete(ctx context.Context, messages []core.Message, opts core.CompletionOptions) (string, error) {
	return f.reply, f.err
}

var testTwin = &persona.Twin{TwinID: "sage", Name: "Sage", Traits: []string{"curious"}}

func TestDetermineActionParsesVerdict(t *testing.T) {
	j := New(&fakeClient{reply: `{"type":"share_story","confidence":0.85,"reasoning":"asked about travel","transition":"That reminds me..."}`})

	a := j.DetermineAction(context.Background(), testTwin, "tell me about your travels", "", "")
	if a.Type != ActionShareStory {
		t.Errorf("type = %q, want share_story", a.Type)
	}
	if a.Confidence != 0.85 {
		t.Errorf("confidence = %v", a.Confidence)
	}
	if a.Transition != "That reminds me..." {
		t.Errorf("transition = %q", a.Transition)
	}
}

func TestDetermineActionFallbackOnError(t *testing.T) {
	j := New(&fakeClient{err: errors.New("api down")})

	a := j.DetermineAction(context.Background(), testTwin, "hello", "", "")
	want := Action{Type: ActionRegularChat, Confidence: 0.5, Reasoning: "Fallback to regular conversation", Transition: ""}
	if a != want {
		t.Errorf("fallback action = %+v, want %+v", a, want)
	}
}

func TestDetermineActionFallbackOnBadJSON(t *testing.T) {
	j := New(&fakeClient{reply: "definitely share a story"})

	a := j.DetermineAction(context.Background(), testTwin, "hello", "", "")
	if a.Type != ActionRegularChat || a.Confidence != 0.5 {
		t.Errorf("non-JSON reply action = %+v, want default", a)
	}
}

func TestDetermineActionUnknownTypeCoerced(t *testing.T) {
	j := New(&fakeClient{reply: `{"type":"interpretive_dance","confidence":0.9}`})

	a := j.DetermineAction(context.Background(), testTwin, "hello", "", "")
	if a.Type != ActionRegularChat {
		t.Errorf("type = %q, want regular_chat", a.Type)
	}
	// Confidence from the reply is preserved even when type is coerced.
	if a.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", a.Confidence)
	}
}

func TestDetermineActionMissingConfidenceDefaults(t *testing.T) {
	j := New(&fakeClient{reply: `{"type":"regular_chat"}`})

	a := j.DetermineAction(context.Background(), testTwin, "hello", "", "")
	if a.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 default", a.Confidence)
	}
	if a.Reasoning != "Default action" {
		t.Errorf("reasoning = %q", a.Reasoning)
	}
}
