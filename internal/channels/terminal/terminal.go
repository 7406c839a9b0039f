package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/twinbot/twinbot/internal/gateway"
	"github.com/twinbot/twinbot/internal/persona"
)

// LocalUserID identifies the single terminal user.
const LocalUserID = "terminal"

// TwinLister enumerates the available personas for /twins.
type TwinLister interface {
	ListTwins(ctx context.Context) ([]persona.Twin, error)
}

// HistoryPurger clears the active twin's history for /purge.
type HistoryPurger interface {
	PurgeActiveTwin(ctx context.Context, userID string) string
}

// Channel is a stdin/stdout chat channel with a few slash commands.
type Channel struct {
	lister TwinLister
	purger HistoryPurger
}

func New(lister TwinLister, purger HistoryPurger) *Channel {
	return &Channel{lister: lister, purger: purger}
}

func (c *Channel) Name() string {
	return "terminal"
}

func (c *Channel) Start(ctx context.Context, ingress chan<- gateway.Message) error {
	fmt.Println("TwinBot — Terminal (Enter to send, Ctrl+C to exit)")
	fmt.Println("Commands: /twins, /twin <id>, /purge")
	fmt.Println()

	// Scanner runs in a goroutine so we can respect ctx.Done(); stdin reads
	// are not interruptible in Go without closing stdin.
	scanner := bufio.NewScanner(os.Stdin)

	go func() {
		for {
			fmt.Print("You: ")
			if !scanner.Scan() {
				return
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			if handled := c.handleCommand(ctx, text, ingress); handled {
				continue
			}

			ingress <- gateway.Message{
				SenderID: LocalUserID,
				Content:  text,
				Channel:  c.Name(),
				Kind:     gateway.KindChat,
			}
		}
	}()

	<-ctx.Done()
	return nil
}

// handleCommand deals with the slash commands locally; /twin goes through the
// gateway as a selection event so the twin can greet.
func (c *Channel) handleCommand(ctx context.Context, text string, ingress chan<- gateway.Message) bool {
	if !strings.HasPrefix(text, "/") {
		return false
	}
	fields := strings.Fields(text)

	switch fields[0] {
	case "/twins":
		twins, err := c.lister.ListTwins(ctx)
		if err != nil {
			fmt.Printf("Could not list twins: %v\n\n", err)
			return true
		}
		if len(twins) == 0 {
			fmt.Println("No twins available yet.")
			fmt.Println()
			return true
		}
		fmt.Println("Available twins:")
		for _, t := range twins {
			fmt.Printf("  %s — %s\n", t.TwinID, t.Name)
		}
		fmt.Println()
		return true

	case "/twin":
		if len(fields) < 2 {
			fmt.Println("Usage: /twin <id>")
			fmt.Println()
			return true
		}
		ingress <- gateway.Message{
			SenderID: LocalUserID,
			Channel:  c.Name(),
			TwinID:   fields[1],
			Kind:     gateway.KindSelectTwin,
		}
		return true

	case "/purge":
		fmt.Println(c.purger.PurgeActiveTwin(ctx, LocalUserID))
		fmt.Println()
		return true

	default:
		fmt.Printf("Unknown command %s\n\n", fields[0])
		return true
	}
}

func (c *Channel) Send(msg gateway.Message) error {
	fmt.Printf("\r\033[K") // Clear line
	fmt.Printf("Twin: %s\n\n", msg.Content)
	fmt.Print("You: ") // Restore prompt
	return nil
}
