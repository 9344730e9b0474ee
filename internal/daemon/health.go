package daemon

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/depotwatch/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime,omitempty"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall status
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	checks := []HealthCheck{d.checkDaemonHealth(), d.checkCycleHealth()}

	overall := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	resp := &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   version.Version,
		Checks:    checks,
	}
	if started := d.GetStartTime(); !started.IsZero() {
		resp.Uptime = time.Since(started).Round(time.Second).String()
	}
	return resp
}

func (d *Daemon) checkDaemonHealth() HealthCheck {
	status := d.GetStatus()
	check := HealthCheck{Name: "daemon", Message: string(status)}
	switch status {
	case StatusRunning:
		check.Status = HealthStatusHealthy
	case StatusStarting, StatusStopping:
		check.Status = HealthStatusDegraded
	default:
		check.Status = HealthStatusUnhealthy
	}
	return check
}

// checkCycleHealth is degraded while any identifier's last cycle failed.
func (d *Daemon) checkCycleHealth() HealthCheck {
	failing := 0
	for _, st := range d.statuses.list() {
		if st.Outcome == OutcomeFailed {
			failing++
		}
	}
	if failing == 0 {
		return HealthCheck{Name: "cycles", Status: HealthStatusHealthy}
	}
	return HealthCheck{
		Name:    "cycles",
		Status:  HealthStatusDegraded,
		Message: fmt.Sprintf("%d identifier(s) failing", failing),
	}
}
