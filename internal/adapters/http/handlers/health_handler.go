package handlers

import (
	"context"
	"net/http"
	"sort"

	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

const (
	statusOK       = "ok"
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// HealthReport is the readiness body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Failed []string          `json:"failed,omitempty"`
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	report *appctx.Provider[HealthReport]
}

// NewHealthHandler returns a handler backed by registry. The checks run at
// most once per request, however many units ask for the report.
func NewHealthHandler(registry ports.HealthRegistry) *HealthHandler {
	return &HealthHandler{
		report: appctx.NewProvider("health report", func(ctx context.Context) (HealthReport, error) {
			return buildReport(registry.CheckAll(ctx)), nil
		}),
	}
}

// Liveness handles GET /health/live. It always answers 200.
func (h *HealthHandler) Liveness(c *appctx.Context) error {
	c.SetBody(map[string]string{"status": statusOK})
	return nil
}

// Readiness handles GET /health/ready: 200 when every check passes,
// 503 otherwise.
func (h *HealthHandler) Readiness(c *appctx.Context) error {
	report, err := h.Report(c)
	if err != nil {
		return err
	}

	if report.Status != statusReady {
		c.SetStatus(http.StatusServiceUnavailable)
	}
	c.SetBody(report)
	return nil
}

// Report returns this request's readiness report.
func (h *HealthHandler) Report(c *appctx.Context) (HealthReport, error) {
	return h.report.Get(c)
}

func buildReport(results map[string]error) HealthReport {
	report := HealthReport{
		Status: statusReady,
		Checks: make(map[string]string, len(results)),
	}
	for name, err := range results {
		if err == nil {
			report.Checks[name] = statusOK
			continue
		}
		report.Checks[name] = err.Error()
		report.Failed = append(report.Failed, name)
	}
	if len(report.Failed) > 0 {
		report.Status = statusNotReady
		sort.Strings(report.Failed)
	}
	return report
}
