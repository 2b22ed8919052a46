package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Check es una sonda de dependencia (ping a postgres, redis, ...).
type Check func(ctx context.Context) error

type HealthController struct {
	checks  map[string]Check
	timeout time.Duration
	version string
}

func NewHealthController(checks map[string]Check, version string) *HealthController {
	return &HealthController{checks: checks, timeout: 2 * time.Second, version: version}
}

type healthResponse struct {
	Status     string            `json:"status"` // ready | unavailable
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := healthResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.checks[name](ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
