package registry

import (
	"sync"

	"github.com/twinbot/twinbot/internal/core"
)

// ClientFactory builds an LLM client for an API key and model.
type ClientFactory func(apiKey, model string) (core.LLMClient, error)

var (
	mu         sync.RWMutex
	LLMClients = make(map[string]ClientFactory)
)

func RegisterClient(name string, f ClientFactory) {
	mu.Lock()
	defer mu.Unlock()
	LLMClients[name] = f
}

// GetClientFactory looks up a named factory with a safe read.
func GetClientFactory(name string) (ClientFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := LLMClients[name]
	return f, ok
}
