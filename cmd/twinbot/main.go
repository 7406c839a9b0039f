// TwinBot is a persona chat engine: digital twins converse with users,
// remember facts about them, and weave pre-authored multi-segment stories
// into the conversation when the moment fits. The process stays running as
// the engine; the terminal and webhook channels are its interfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/twinbot/twinbot/internal/catalog"
	"github.com/twinbot/twinbot/internal/channels/terminal"
	"github.com/twinbot/twinbot/internal/channels/webhook"
	"github.com/twinbot/twinbot/internal/config"
	"github.com/twinbot/twinbot/internal/conversation"
	"github.com/twinbot/twinbot/internal/gateway"
	"github.com/twinbot/twinbot/internal/health"
	"github.com/twinbot/twinbot/internal/judge"
	"github.com/twinbot/twinbot/internal/matcher"
	"github.com/twinbot/twinbot/internal/memory"
	_ "github.com/twinbot/twinbot/internal/openai"
	"github.com/twinbot/twinbot/internal/persona"
	"github.com/twinbot/twinbot/internal/store"
	"github.com/twinbot/twinbot/internal/storyteller"
	"github.com/twinbot/twinbot/internal/wiring"
)

func main() {
	cfg := config.New("")
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key not set: add to config or set OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return fmt.Errorf("model not set: add to config or set TWINBOT_MODEL")
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := catalog.Load(ctx, db, cfg.CatalogDir); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	client := wiring.LoadClient("default", cfg.OpenAIAPIKey, cfg.Model)

	logStore := store.NewLogStore(db)
	twins := persona.NewCache(db, 64)
	mem := memory.NewManager(db, client, cfg.MaxConversationHistory)

	orch := conversation.New(
		db,
		twins,
		mem,
		judge.New(client),
		matcher.New(db, client, cfg.StoryHistoryDays),
		storyteller.New(db, client),
		client,
		logStore,
		cfg.DefaultTwinID,
	)

	checks := health.NewRegistry()
	checks.Register("db", health.ProbeFunc(func() error { return db.Ping() }))
	checks.Register("catalog", health.ProbeFunc(func() error {
		all, err := db.AllTwins(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return fmt.Errorf("no twins loaded")
		}
		return nil
	}))

	gw := gateway.New(
		func(ctx context.Context, msg gateway.Message) string {
			return orch.HandleUserMessage(ctx, msg.SenderID, msg.TwinID, msg.Content)
		},
		func(ctx context.Context, msg gateway.Message) string {
			return orch.SelectTwin(ctx, msg.SenderID, msg.TwinID)
		},
	)

	gw.Register(terminal.New(orch, orch))
	if cfg.WebhookAddr != "" {
		gw.Register(webhook.New(cfg.WebhookAddr, func(ctx context.Context, userID, twinID, text string) string {
			return orch.HandleUserMessage(ctx, userID, twinID, text)
		}, checks))
	}

	fmt.Println("TwinBot starting. Gateway running until interrupt.")
	return gw.StartAll(ctx)
}
