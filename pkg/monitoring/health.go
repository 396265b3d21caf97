// Package monitoring provides the service's health checks and
// Prometheus metrics plumbing.
package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const checkTimeout = 5 * time.Second

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthStatus is the aggregate reported by /health.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// HealthCheck probes one dependency.
type HealthCheck func() CheckResult

// HealthChecker runs named checks and rolls them up: any unhealthy
// check makes the service unhealthy, otherwise any degraded check makes
// it degraded.
type HealthChecker struct {
	service string
	version string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a named check. Re-registering a name replaces it.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// CheckHealth runs every registered check.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for name, check := range checks {
		result := check()
		status.Checks[name] = result
		switch result.Status {
		case StatusHealthy:
		case StatusDegraded:
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		default:
			status.Status = StatusUnhealthy
		}
	}
	return status
}

// Handler serves the aggregate as JSON; unhealthy maps to 503.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, health)
	}
}

func timedResult(status, message string, since time.Time) CheckResult {
	return CheckResult{
		Status:  status,
		Message: message,
		Latency: time.Since(since).String(),
	}
}

// DatabaseHealthCheck pings the connection pool. The database is a hard
// dependency, so a failed ping is unhealthy.
func DatabaseHealthCheck(db *sql.DB) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return timedResult(StatusUnhealthy, fmt.Sprintf("Database ping failed: %v", err), start)
		}
		return timedResult(StatusHealthy, "Database connection successful", start)
	}
}

// RedisHealthCheck pings Redis. Redis only backs the response cache, so
// a failure degrades rather than fails.
func RedisHealthCheck(pinger interface {
	Ping(context.Context) error
}) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		if pinger == nil {
			return timedResult(StatusDegraded, "Redis not configured", start)
		}

		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			return timedResult(StatusDegraded, fmt.Sprintf("Redis ping failed: %v", err), start)
		}
		return timedResult(StatusHealthy, "Redis connection healthy", start)
	}
}

// HTTPServiceHealthCheck probes a downstream HTTP dependency. An
// unreachable downstream degrades the service; the endpoints that do
// not call it keep working.
func HTTPServiceHealthCheck(serviceName, url string) HealthCheck {
	client := &http.Client{Timeout: checkTimeout}
	return func() CheckResult {
		start := time.Now()
		resp, err := client.Get(url)
		if err != nil {
			return timedResult(StatusDegraded, fmt.Sprintf("%s unreachable: %v", serviceName, err), start)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return timedResult(StatusDegraded, fmt.Sprintf("%s returned %d", serviceName, resp.StatusCode), start)
		}
		return timedResult(StatusHealthy, fmt.Sprintf("%s responding", serviceName), start)
	}
}

// ConfigurationHealthCheck verifies that required settings are present.
func ConfigurationHealthCheck(configs map[string]string) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		var missing []string
		for key, value := range configs {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return timedResult(StatusUnhealthy, fmt.Sprintf("Missing required configuration: %v", missing), start)
		}
		return timedResult(StatusHealthy, "All required configuration present", start)
	}
}
