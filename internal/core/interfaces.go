package core

import (
	"context"
)

// LLMClient abstracts the low-level completion API client (OpenAI, local LLM, etc).
// A failed call returns a non-nil error; callers branch on it and apply their
// own deterministic fallbacks. This layer never retries a policy call.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}
