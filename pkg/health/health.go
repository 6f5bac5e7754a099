// Package health runs registered dependency probes (the key-value store, the
// Bot API, Kafka) concurrently and serves the aggregate as liveness and
// readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the worst component status plus every component's result.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker is safe for concurrent use. Registering a name twice replaces the
// earlier check.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	last    Status
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check concurrently. Overall status transitions are
// logged once, not on every probe.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Go(func() {
			start := time.Now()
			result := check(ctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	report := Report{
		Status:     worst(results),
		Components: results,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	c.noteTransition(report)
	return report
}

func worst(results map[string]ComponentHealth) Status {
	status := StatusUp
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

func (c *Checker) noteTransition(report Report) {
	c.mu.Lock()
	prev := c.last
	c.last = report.Status
	c.mu.Unlock()
	if prev == report.Status || (prev == "" && report.Status == StatusUp) {
		return
	}
	attrs := []any{"from", prev, "to", report.Status}
	for name, r := range report.Components {
		if r.Status != StatusUp {
			attrs = append(attrs, name, r.Message)
		}
	}
	if report.Status == StatusUp {
		c.logger.Info("health recovered", attrs...)
		return
	}
	c.logger.Warn("health changed", attrs...)
}

// ProbeTimeout bounds every ping so one hung dependency cannot stall the
// readiness probe.
const ProbeTimeout = 2 * time.Second

// PingCheck adapts a ping function, such as kvstore.Store.Ping, into a Check.
// Failures report down.
func PingCheck(ping func(ctx context.Context) error) Check {
	return probe(ping, StatusDown)
}

// OptionalCheck is PingCheck for dependencies the service can run without;
// failures report degraded.
func OptionalCheck(ping func(ctx context.Context) error) Check {
	return probe(ping, StatusDegraded)
}

func probe(ping func(ctx context.Context) error, onFailure Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := resilience.WithTimeout(ctx, ProbeTimeout, "ping", ping); err != nil {
			return ComponentHealth{Status: onFailure, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler always answers 200 while the process serves HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 503 only when a required dependency is down; degraded
// still counts as ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
