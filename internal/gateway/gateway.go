package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Kind discriminates gateway events.
type Kind int

const (
	// KindChat is an ordinary user message addressed to the active twin.
	KindChat Kind = iota
	// KindSelectTwin switches the sender's active twin to Message.TwinID.
	KindSelectTwin
)

// Message represents a generic event flowing through the gateway.
type Message struct {
	SenderID string
	Content  string
	Channel  string // "terminal", "webhook", etc.
	TwinID   string // explicit twin for select events or webhook chats
	Kind     Kind
}

// Channel defines the interface for all communication channels.
type Channel interface {
	// Name returns the unique name of the channel.
	Name() string
	// Start begins listening for messages. It should block until ctx is
	// canceled, piping inbound events into ingress.
	Start(ctx context.Context, ingress chan<- Message) error
	// Send sends a reply back to the channel.
	Send(msg Message) error
}

// Handler reacts to one event and returns the user-facing reply.
type Handler func(ctx context.Context, msg Message) string

// Gateway manages channels and routes events to the conversation handlers.
type Gateway struct {
	channels map[string]Channel
	ingress  chan Message
	onChat   Handler
	onSelect Handler
	mu       sync.RWMutex
}

// New creates a gateway with a chat handler and a twin-selection handler.
func New(onChat, onSelect Handler) *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
		ingress:  make(chan Message, 100), // Buffer somewhat to prevent blocking
		onChat:   onChat,
		onSelect: onSelect,
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.Name()] = c
}

// StartAll starts all registered channels and the ingress processor, blocking
// until ctx is canceled.
func (g *Gateway) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.processIngress(ctx)
	}()

	g.mu.RLock()
	for _, c := range g.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Start(ctx, g.ingress); err != nil {
				fmt.Printf("Error in channel %s: %v\n", ch.Name(), err)
			}
		}(c)
	}
	g.mu.RUnlock()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// processIngress reads events from channels and dispatches them, one
// goroutine per event.
func (g *Gateway) processIngress(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-g.ingress:
			go func(m Message) {
				var reply string
				switch m.Kind {
				case KindSelectTwin:
					reply = g.onSelect(ctx, m)
				default:
					reply = g.onChat(ctx, m)
				}
				g.routeReply(m, reply)
			}(msg)
		}
	}
}

// routeReply sends the reply back to the source channel.
func (g *Gateway) routeReply(originalMsg Message, content string) {
	g.mu.RLock()
	ch, ok := g.channels[originalMsg.Channel]
	g.mu.RUnlock()

	if !ok {
		fmt.Printf("Error: Channel %s not found for reply\n", originalMsg.Channel)
		return
	}

	reply := Message{
		SenderID: originalMsg.SenderID,
		Content:  content,
		Channel:  originalMsg.Channel,
	}

	if err := ch.Send(reply); err != nil {
		fmt.Printf("Error sending reply to %s: %v\n", ch.Name(), err)
	}
}
