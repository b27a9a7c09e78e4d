package api

import (
	"context"
	"net/http"
	"time"
)

// Checker reports whether a backing dependency is reachable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type HealthHandler struct {
	checkers []Checker
	timeout  time.Duration
}

func NewHealthHandler(checkers ...Checker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		timeout:  5 * time.Second,
	}
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{Status: "ok"})
}

func (h *HealthHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{Status: "alive"})
}

func (h *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := healthStatus{Status: "ready", Checks: map[string]string{}}
	code := http.StatusOK

	for _, c := range h.checkers {
		if err := c.Check(ctx); err != nil {
			status.Checks[c.Name()] = err.Error()
			status.Status = "not ready"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[c.Name()] = "ok"
	}

	writeJSON(w, code, status)
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckerName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
