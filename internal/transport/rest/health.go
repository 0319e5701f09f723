package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

const checkTimeout = 2 * time.Second

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ComponentKind decides how a failing check affects readiness: a required
// component takes the whole service out of rotation, an optional one only
// degrades it. The payment gateway is optional because enrollment reads and
// webhook ingestion keep working while it is down.
type ComponentKind int

const (
	ComponentRequired ComponentKind = iota
	ComponentOptional
)

type componentCheck struct {
	kind  ComponentKind
	check func(ctx context.Context) error
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

// HealthHandler serves liveness and readiness for the enrollment service.
// Readiness runs every registered component check with a bounded timeout.
type HealthHandler struct {
	components map[string]componentCheck
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	h := &HealthHandler{components: make(map[string]componentCheck)}
	if db != nil {
		h.AddCheck("postgres", ComponentRequired, db.PingContext)
	}
	return h
}

// AddCheck registers a named component check.
func (h *HealthHandler) AddCheck(name string, kind ComponentKind, check func(ctx context.Context) error) {
	h.components[name] = componentCheck{kind: kind, check: check}
}

// Liveness: the process is up and serving.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// Readiness: run each component check and fold the results.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	overall := HealthHealthy
	entries := make(map[string]CheckEntry, len(h.components))

	for name, component := range h.components {
		entry := h.runCheck(r.Context(), component)
		entries[name] = entry

		if entry.Status != HealthUnhealthy {
			continue
		}
		if component.kind == ComponentRequired {
			overall = HealthUnhealthy
		} else if overall == HealthHealthy {
			overall = HealthDegraded
		}
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:     overall,
		CheckedAt:  time.Now(),
		Components: entries,
	})
}

func (h *HealthHandler) runCheck(ctx context.Context, component componentCheck) CheckEntry {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := component.check(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}
