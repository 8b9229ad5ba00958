// Package health reports whether the scheduler's dependencies are reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

const defaultCheckTimeout = 3 * time.Second

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Response is the /health body.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Handler runs all checks concurrently on every request.
type Handler struct {
	checks  map[string]Pinger
	timeout time.Duration
	logger  *logging.Logger
}

func NewHandler(logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{checks: make(map[string]Pinger), timeout: defaultCheckTimeout, logger: logger}
}

// WithCheck registers a named dependency such as "redis" or "google_calendar".
func (h *Handler) WithCheck(name string, p Pinger) *Handler {
	if p != nil {
		h.checks[name] = p
	}
	return h
}

func (h *Handler) WithTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Check pings every dependency and reports "healthy" only when all are up.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := Response{Status: "healthy", Services: make(map[string]string, len(h.checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, p := range h.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			state := "up"
			if err := p.Ping(ctx); err != nil {
				h.logger.Error("health check failed", "service", name, "error", err)
				state = "down"
			}
			mu.Lock()
			resp.Services[name] = state
			if state == "down" {
				resp.Status = "unhealthy"
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return resp
}

// Health handles GET /health with 200 when healthy and 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := h.Check(r.Context())
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Live handles GET /health/live and never touches dependencies.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
