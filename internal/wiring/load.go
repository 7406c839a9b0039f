package wiring

import (
	"log"

	"github.com/twinbot/twinbot/internal/core"
	"github.com/twinbot/twinbot/internal/registry"
)

// LoadClient attempts to load the named client. Falls back to "default".
func LoadClient(name, apiKey, model string) core.LLMClient {
	factory, ok := registry.GetClientFactory(name)
	if !ok {
		log.Printf("Client '%s' not found. Falling back to 'default'.", name)
		return loadDefaultClient(apiKey, model)
	}
	c, err := safeInitClient(factory, apiKey, model)
	if err != nil {
		log.Printf("Failed to init Client '%s': %v. Falling back to 'default'.", name, err)
		return loadDefaultClient(apiKey, model)
	}
	return c
}

func loadDefaultClient(apiKey, model string) core.LLMClient {
	f, _ := registry.GetClientFactory("default")
	c, _ := f(apiKey, model)
	return c
}

func safeInitClient(f registry.ClientFactory, apiKey, model string) (c core.LLMClient, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = initPanicError{r}
		}
	}()
	return f(apiKey, model)
}

type initPanicError struct {
	Reason interface{}
}

func (e initPanicError) Error() string {
	return "panic during initialization"
}
