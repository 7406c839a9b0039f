package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/twinbot/twinbot/internal/gateway"
	"github.com/twinbot/twinbot/internal/health"
)

// Handler produces the reply for one webhook message.
type Handler func(ctx context.Context, userID, twinID, text string) string

// Channel serves POST /hook for inline request/reply chat and GET /healthz.
// Replies are written in the HTTP response, so gateway routing is unused.
type Channel struct {
	addr    string
	handler Handler
	checks  *health.Registry
}

func New(addr string, handler Handler, checks *health.Registry) *Channel {
	return &Channel{addr: addr, handler: handler, checks: checks}
}

func (c *Channel) Name() string {
	return "webhook"
}

func (c *Channel) Start(ctx context.Context, _ chan<- gateway.Message) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/hook", c.handleHook)
	mux.HandleFunc("/healthz", c.handleHealthz)

	srv := &http.Server{Addr: c.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[WEBHOOK] listening on %s", c.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type hookRequest struct {
	UserID string `json:"user_id"`
	TwinID string `json:"twin_id"`
	Text   string `json:"text"`
}

type hookResponse struct {
	Reply string `json:"reply"`
}

func (c *Channel) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req hookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Text == "" {
		http.Error(w, "user_id and text are required", http.StatusBadRequest)
		return
	}

	reply := c.handler(r.Context(), req.UserID, req.TwinID, req.Text)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hookResponse{Reply: reply}); err != nil {
		log.Printf("[WEBHOOK] writing reply: %v", err)
	}
}

func (c *Channel) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := "ok"
	if c.checks != nil {
		status = c.checks.Status()
	}
	code := http.StatusOK
	if status == "error" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		log.Printf("[WEBHOOK] writing health: %v", err)
	}
}

// Send is a no-op: webhook replies are written inline by handleHook.
func (c *Channel) Send(msg gateway.Message) error {
	return nil
}
