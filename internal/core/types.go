package core

// Message represents a chat message sent to the language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions tune a single completion call.
type CompletionOptions struct {
	// Temperature controls sampling randomness.
	Temperature float64
	// MaxTokens caps the reply length; 0 = provider default.
	MaxTokens int
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
}
