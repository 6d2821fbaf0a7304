// SPDX-License-Identifier: Apache-2.0
package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "HEALTHY"

	// HealthDegraded indicates the component works with reduced capacity.
	HealthDegraded HealthStatus = "DEGRADED"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Component string        `json:"component"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency"`
	LastCheck time.Time     `json:"last_check"`
}

// HealthChecker checks the health of a component.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// HealthCheckFunc adapts a function returning nil when the component is
// usable into a HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Check implements HealthChecker.
func (f HealthCheckFunc) Check(ctx context.Context) HealthResult {
	if err := f(ctx); err != nil {
		return HealthResult{Status: HealthUnhealthy, Message: err.Error()}
	}
	return HealthResult{Status: HealthHealthy}
}

// HealthRegistry runs registered checkers in registration order, each under
// its own timeout.
type HealthRegistry struct {
	mu       sync.RWMutex
	names    []string
	checkers map[string]HealthChecker
	timeout  time.Duration
	now      func() time.Time
}

// NewHealthRegistry creates a registry. A zero timeout means five seconds.
func NewHealthRegistry(timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthRegistry{
		checkers: make(map[string]HealthChecker),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Register adds or replaces the checker for a component.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.checkers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.checkers[name] = checker
}

// Check runs the checker for one component.
func (r *HealthRegistry) Check(ctx context.Context, name string) (HealthResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return HealthResult{}, fmt.Errorf("checker not registered: %s", name)
	}
	return r.run(ctx, name, checker), nil
}

// CheckAll runs every checker and returns the results with the overall
// status: unhealthy if any component is, else degraded if any is.
func (r *HealthRegistry) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	r.mu.RLock()
	names := append([]string(nil), r.names...)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = r.checkers[name]
	}
	r.mu.RUnlock()

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for i, name := range names {
		res := r.run(ctx, name, checkers[i])
		results = append(results, res)
		switch res.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}

func (r *HealthRegistry) run(ctx context.Context, name string, checker HealthChecker) HealthResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	res := checker.Check(ctx)
	res.Component = name
	res.Latency = r.now().Sub(start)
	if res.LastCheck.IsZero() {
		res.LastCheck = start
	}
	if res.Status == "" {
		res.Status = HealthUnhealthy
	}
	return res
}
