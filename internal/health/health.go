package health

import (
	"sync"
	"time"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "ok", "degraded", "error"
	Message   string    `json:"message,omitempty"`
	LastOK    time.Time `json:"last_ok"`
	LastError time.Time `json:"last_error,omitempty"`
}

// Report aggregates health from all components.
type Report struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Errors     []LogEntry                 `json:"recent_errors"`
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`     // error, warn, info
	Component string    `json:"component"` // db, llm, conversation, gateway
	Message   string    `json:"message"`
}

// Checker interface for components to implement.
type Checker interface {
	HealthCheck() ComponentHealth
}

// ProbeFunc adapts a plain probe to the Checker interface.
type ProbeFunc func() error

func (f ProbeFunc) HealthCheck() ComponentHealth {
	if err := f(); err != nil {
		return ComponentHealth{Status: "error", Message: err.Error(), LastError: time.Now()}
	}
	return ComponentHealth{Status: "ok", LastOK: time.Now()}
}

// Registry holds health checkers for all components.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates a new health registry.
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
	}
}

// Register adds a component health checker.
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs all health checks and returns a report.
func (r *Registry) Check() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := Report{
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	for name, checker := range r.checkers {
		report.Components[name] = checker.HealthCheck()
	}

	return report
}

// Status returns the overall system status.
func (r *Registry) Status() string {
	report := r.Check()
	for _, c := range report.Components {
		if c.Status == "error" {
			return "error"
		}
	}
	for _, c := range report.Components {
		if c.Status == "degraded" {
			return "degraded"
		}
	}
	return "ok"
}
